package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsComplete(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 10, cfg.Retrieval.Limit)
	assert.Equal(t, 300*time.Millisecond, cfg.Retrieval.SemanticTimeout.Std())
	assert.Equal(t, 2*time.Second, cfg.Retrieval.GraphTimeout.Std())
	assert.Equal(t, 30*time.Minute, cfg.PlanCache.TTL.Std())
	assert.Equal(t, 3, cfg.Worker.MaxRetries)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	body := `
retrieval:
  limit: 25
  graph_timeout: 5s
worker:
  max_retries: 7
graph:
  dir: /var/lib/mnemo/episodes
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Retrieval.Limit)
	assert.Equal(t, 5*time.Second, cfg.Retrieval.GraphTimeout.Std())
	assert.Equal(t, 7, cfg.Worker.MaxRetries)
	assert.Equal(t, "/var/lib/mnemo/episodes", cfg.Graph.Dir)

	// Untouched fields keep their defaults.
	assert.Equal(t, 300*time.Millisecond, cfg.Retrieval.SemanticTimeout.Std())
	assert.Equal(t, 30*time.Minute, cfg.PlanCache.TTL.Std())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: ["), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
