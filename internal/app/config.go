package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/links"
	"github.com/raysh454/cyra/internal/model"
	"github.com/raysh454/cyra/internal/monitor"
	"github.com/raysh454/cyra/internal/notify"
	"github.com/raysh454/cyra/internal/webclient"
)

// EnvPrefix is prepended to every environment override, e.g.
// CYRA_ANALYZER_TIMEOUT for analyzer.timeout.
const EnvPrefix = "CYRA"

// Config contains the runtime configuration of the companion.
type Config struct {
	Analyzer  analyzer.Config
	WebClient webclient.Config
	Notify    notify.Config
	Monitor   monitor.Config

	// ServerAddr is the loopback listen address of the local bridge.
	ServerAddr string

	LogLevel string

	// Settings are the initial user settings.
	Settings model.Settings
	Username string

	// Link scanner canonicalization policy.
	Links links.Options
}

// DefaultConfig returns a Config populated with the product defaults.
func DefaultConfig() *Config {
	return &Config{
		Analyzer: analyzer.DefaultConfig(),
		WebClient: webclient.Config{
			Client:    webclient.ClientNetHTTP,
			UserAgent: "cyra/" + Version,
		},
		Notify:     notify.DefaultConfig(),
		Monitor:    monitor.DefaultConfig(),
		ServerAddr: "127.0.0.1:8787",
		LogLevel:   "info",
		Settings: model.Settings{
			Notifications:  true,
			RealtimeShield: true,
			AnonymousMode:  true,
		},
		Username: "Secure User #721",
		Links:    links.DefaultOptions(),
	}
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Analyzer.Timeout <= 0 {
		errs = append(errs, errors.New("analyzer.timeout must be positive"))
	}
	if c.Analyzer.Model == "" {
		errs = append(errs, errors.New("analyzer.model is required"))
	}
	if c.Notify.MaxVisible < 1 {
		errs = append(errs, errors.New("notify.max_visible must be at least 1"))
	}
	if c.Notify.TTL <= 0 {
		errs = append(errs, errors.New("notify.ttl must be positive"))
	}
	if c.Monitor.PollInterval <= 0 {
		errs = append(errs, errors.New("monitor.poll_interval must be positive"))
	}
	if c.Monitor.Threshold <= 0 || c.Monitor.Threshold > 1 {
		errs = append(errs, fmt.Errorf("monitor.threshold %v outside (0,1]", c.Monitor.Threshold))
	}
	if c.ServerAddr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("analyzer.endpoint", d.Analyzer.Endpoint)
	v.SetDefault("analyzer.model", d.Analyzer.Model)
	v.SetDefault("analyzer.api_key", "")
	v.SetDefault("analyzer.timeout", d.Analyzer.Timeout)
	v.SetDefault("webclient.user_agent", d.WebClient.UserAgent)
	v.SetDefault("notify.max_visible", d.Notify.MaxVisible)
	v.SetDefault("notify.ttl", d.Notify.TTL)
	v.SetDefault("monitor.poll_interval", d.Monitor.PollInterval)
	v.SetDefault("monitor.threshold", d.Monitor.Threshold)
	v.SetDefault("server.addr", d.ServerAddr)
	v.SetDefault("log.level", d.LogLevel)
	v.SetDefault("settings.notifications", d.Settings.Notifications)
	v.SetDefault("settings.realtime_shield", d.Settings.RealtimeShield)
	v.SetDefault("settings.anonymous_mode", d.Settings.AnonymousMode)
	v.SetDefault("profile.username", d.Username)
}

// LoadConfig overlays defaults with, in increasing priority, the config file,
// a .env file and the process environment. configFile may be empty, in which
// case cyra.yaml is looked up in the working directory and
// $HOME/.config/cyra and is optional.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}

	// .env never overrides variables already set in the environment.
	for _, p := range []string{".env", "../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	d := DefaultConfig()
	setDefaults(v, d)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("cyra")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/cyra")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := d
	cfg.Analyzer.Endpoint = v.GetString("analyzer.endpoint")
	cfg.Analyzer.Model = v.GetString("analyzer.model")
	cfg.Analyzer.APIKey = v.GetString("analyzer.api_key")
	if cfg.Analyzer.APIKey == "" {
		cfg.Analyzer.APIKey = firstEnv("GEMINI_API_KEY", "API_KEY")
	}
	cfg.Analyzer.Timeout = v.GetDuration("analyzer.timeout")
	cfg.WebClient.Timeout = cfg.Analyzer.Timeout
	cfg.WebClient.UserAgent = v.GetString("webclient.user_agent")
	cfg.Notify.MaxVisible = v.GetInt("notify.max_visible")
	cfg.Notify.TTL = v.GetDuration("notify.ttl")
	cfg.Monitor.PollInterval = v.GetDuration("monitor.poll_interval")
	cfg.Monitor.Threshold = v.GetFloat64("monitor.threshold")
	cfg.ServerAddr = v.GetString("server.addr")
	cfg.LogLevel = v.GetString("log.level")
	cfg.Settings = model.Settings{
		Notifications:  v.GetBool("settings.notifications"),
		RealtimeShield: v.GetBool("settings.realtime_shield"),
		AnonymousMode:  v.GetBool("settings.anonymous_mode"),
	}
	cfg.Username = v.GetString("profile.username")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
