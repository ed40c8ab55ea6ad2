package storage

// Stats is a point-in-time snapshot of a store's counters. Values are
// read atomically per field; the snapshot as a whole is not a
// consistent cut across concurrent writers, which is fine for the
// monitoring it serves.
type Stats struct {
	BlockCount   int    `json:"block_count"`
	TreeCount    int    `json:"tree_count"`
	MemoryUsage  uint64 `json:"memory_usage"`
	LargestBlock uint64 `json:"largest_block"`

	TotalStored  uint64 `json:"total_stored"`
	TotalEvicted uint64 `json:"total_evicted"`
	DedupHits    uint64 `json:"dedup_hits"`
	CacheHits    uint64 `json:"cache_hits"`
	CacheMisses  uint64 `json:"cache_misses"`
}

// HitRate returns the fraction of lookups that found their block, in
// [0, 1]. Zero lookups yield 0.
func (s Stats) HitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(total)
}

// QuotaUsage reports memory accounting against the configured limit.
type QuotaUsage struct {
	Used      uint64 `json:"used"`
	Limit     uint64 `json:"limit"`
	Unlimited bool   `json:"unlimited"`
}

// Fraction returns Used/Limit in [0, 1], or 0 when unlimited.
func (q QuotaUsage) Fraction() float64 {
	if q.Unlimited || q.Limit == 0 {
		return 0
	}
	f := float64(q.Used) / float64(q.Limit)
	if f > 1 {
		return 1
	}
	return f
}
