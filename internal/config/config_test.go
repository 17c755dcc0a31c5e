package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"LLBOT_USER", "SPARQL_ENDPOINT", "MAX_CONFLICT_RETRIES", "HTTP_TIMEOUT_SECONDS", "LLBOT_DRY_RUN"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "https://query.wikidata.org/sparql", cfg.SPARQLEndpoint)
	assert.Equal(t, 5, cfg.MaxConflictRetries)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.DryRun)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLBOT_USER", "LinguaLibreBot")
	t.Setenv("MAX_CONFLICT_RETRIES", "2")
	t.Setenv("LOCATION_BATCH_SIZE", "not-a-number")
	t.Setenv("LLBOT_DRY_RUN", "true")

	cfg := Load()
	assert.Equal(t, "LinguaLibreBot", cfg.User)
	assert.Equal(t, 2, cfg.MaxConflictRetries)
	assert.Equal(t, 50, cfg.LocationBatchSize)
	assert.True(t, cfg.DryRun)
}
