package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "loreweave.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
algorithm: sha256
memoryLimitMB: 256
enableEvents: true
batchSize: 50
workerCount: 4
logLevel: debug
`)

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256", f.Algorithm)
	assert.Equal(t, uint64(256), f.MemoryLimitMB)
	assert.True(t, f.EnableEvents)
	assert.Equal(t, 50, f.BatchSize)
	assert.Equal(t, 4, f.WorkerCount)
	assert.Equal(t, "debug", f.LogLevel)
}

func TestLoadEmptyFileIsAllDefaults(t *testing.T) {
	f, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, File{}, f)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownAlgorithm(t *testing.T) {
	_, err := Load(writeConfig(t, "algorithm: md5\n"))
	assert.ErrorContains(t, err, "unknown algorithm")
}

func TestLoadRejectsConflictingMemorySettings(t *testing.T) {
	_, err := Load(writeConfig(t, "unlimited: true\nmemoryLimitMB: 100\n"))
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "algorithm: [unclosed"))
	assert.Error(t, err)
}
