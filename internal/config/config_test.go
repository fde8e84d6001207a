package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadWorkerConfigDefaults(t *testing.T) {
	cfg := readWorkerConfig()

	assert.Equal(t, 60*time.Second, cfg.LeaseDuration)
	assert.Equal(t, 45*time.Second, cfg.PipelineTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.FreshnessWindow)
	assert.Equal(t, 50, cfg.SweepBatchSize)
}

func TestReadWorkerConfigKeepsTimeoutBelowLease(t *testing.T) {
	t.Setenv("LEASE_DURATION", "20s")
	t.Setenv("PIPELINE_TIMEOUT", "30s")

	cfg := readWorkerConfig()
	assert.Equal(t, 20*time.Second, cfg.LeaseDuration)
	assert.Equal(t, 15*time.Second, cfg.PipelineTimeout)
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("QUEUE_SUBSCRIBERS", "many")
	t.Setenv("QUEUE_ACK_WAIT", "soon")
	t.Setenv("QUEUE_DRIVER", "memory")

	cfg := readQueueConfig()
	assert.Equal(t, 2, cfg.SubscribersCount)
	assert.Equal(t, 2*time.Minute, cfg.AckWait)
	assert.Equal(t, 5*time.Second, cfg.NakDelay)
	assert.Equal(t, "memory", cfg.Driver)
}

func TestReadAppConfigFormatFollowsEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	assert.Equal(t, "json", readAppConfig().LogFormat)
	assert.True(t, readAppConfig().IsProduction())

	t.Setenv("APP_ENV", "development")
	assert.Equal(t, "console", readAppConfig().LogFormat)
}

const journalsYAML = `
domains:
  information_systems:
    journals:
      - MIS Quarterly
      - name: Information Systems Research
    subdomains:
      hci:
        journals:
          - Human-Computer Interaction
  science:
    journals: [Nature]
`

func TestParseJournalCatalog(t *testing.T) {
	c, err := ParseJournalCatalog([]byte(journalsYAML))
	require.NoError(t, err)

	assert.False(t, c.Open())
	assert.Equal(t, []string{
		"Human-Computer Interaction",
		"Information Systems Research",
		"MIS Quarterly",
		"Nature",
	}, c.Names())
	assert.True(t, c.Contains("Nature"))
	assert.Equal(t, []string{"Cell"}, c.Unknown([]string{"Nature", "Cell"}))
}

func TestLoadJournalCatalog(t *testing.T) {
	open, err := LoadJournalCatalog("")
	require.NoError(t, err)
	assert.True(t, open.Open())
	assert.True(t, open.Contains("anything"))

	path := filepath.Join(t.TempDir(), "journals.yml")
	require.NoError(t, os.WriteFile(path, []byte(journalsYAML), 0o600))
	c, err := LoadJournalCatalog(path)
	require.NoError(t, err)
	assert.False(t, c.Contains("Cell"))

	_, err = LoadJournalCatalog(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
