package detect

import "github.com/loreweave/loreweave/pkg/model"

// ChangeSet is the outcome of one detection run over a set of files.
// Unchanged, Changed, and New carry the fresh hash info of files that
// were scanned; Deleted lists cataloged paths that no longer exist.
type ChangeSet struct {
	Unchanged []model.FileHashInfo
	Changed   []model.FileHashInfo
	New       []model.FileHashInfo
	Deleted   []string
}

// Total returns the number of files the run covered, deleted paths
// included.
func (c *ChangeSet) Total() int {
	return len(c.Unchanged) + len(c.Changed) + len(c.New) + len(c.Deleted)
}

// HasChanges reports whether anything needs reprocessing.
func (c *ChangeSet) HasChanges() bool {
	return len(c.Changed) > 0 || len(c.New) > 0 || len(c.Deleted) > 0
}

// NeedsUpdate returns the files whose content must be re-ingested:
// the changed and new ones.
func (c *ChangeSet) NeedsUpdate() []model.FileHashInfo {
	out := make([]model.FileHashInfo, 0, len(c.Changed)+len(c.New))
	out = append(out, c.Changed...)
	out = append(out, c.New...)
	return out
}
