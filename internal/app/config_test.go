package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/app"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := app.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Notify.MaxVisible)
	assert.Equal(t, 5*time.Second, cfg.Notify.TTL)
	assert.Equal(t, 20*time.Second, cfg.Monitor.PollInterval)
	assert.InDelta(t, 0.95, cfg.Monitor.Threshold, 1e-9)
	assert.Equal(t, analyzer.DefaultTimeout, cfg.Analyzer.Timeout)
	assert.True(t, cfg.Settings.RealtimeShield)
	assert.True(t, cfg.Settings.AnonymousMode)
	assert.Equal(t, "Secure User #721", cfg.Username)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	cases := map[string]func(*app.Config){
		"zero timeout":      func(c *app.Config) { c.Analyzer.Timeout = 0 },
		"no model":          func(c *app.Config) { c.Analyzer.Model = "" },
		"zero max visible":  func(c *app.Config) { c.Notify.MaxVisible = 0 },
		"negative ttl":      func(c *app.Config) { c.Notify.TTL = -time.Second },
		"zero poll":         func(c *app.Config) { c.Monitor.PollInterval = 0 },
		"threshold above 1": func(c *app.Config) { c.Monitor.Threshold = 1.5 },
		"zero threshold":    func(c *app.Config) { c.Monitor.Threshold = 0 },
		"empty addr":        func(c *app.Config) { c.ServerAddr = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := app.DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cyra.yaml")
	yaml := `
analyzer:
  model: test-model
  timeout: 5s
notify:
  ttl: 2s
monitor:
  threshold: 0.5
settings:
  anonymous_mode: false
profile:
  username: Tester
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CYRA_MONITOR_POLL_INTERVAL", "1m")
	t.Setenv("CYRA_ANALYZER_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := app.LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "test-model", cfg.Analyzer.Model)
	assert.Equal(t, 5*time.Second, cfg.Analyzer.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Notify.TTL)
	assert.Equal(t, 3, cfg.Notify.MaxVisible)
	assert.Equal(t, time.Minute, cfg.Monitor.PollInterval)
	assert.InDelta(t, 0.5, cfg.Monitor.Threshold, 1e-9)
	assert.False(t, cfg.Settings.AnonymousMode)
	assert.True(t, cfg.Settings.RealtimeShield)
	assert.Equal(t, "Tester", cfg.Username)
	assert.Equal(t, "gemini-key", cfg.Analyzer.APIKey)
}

func TestLoadConfig_ExplicitKeyWins(t *testing.T) {
	t.Setenv("CYRA_ANALYZER_API_KEY", "cyra-key")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := app.LoadConfig(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "cyra-key", cfg.Analyzer.APIKey)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := app.LoadConfig(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("CYRA_MONITOR_THRESHOLD", "2")
	_, err = app.LoadConfig(viper.New(), "")
	assert.Error(t, err)
}
