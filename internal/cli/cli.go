// Package cli is the cyra command line: it runs the local bridge and exposes
// one-shot scans and tools for use from a terminal.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/app"
	"github.com/raysh454/cyra/internal/logging"
	"github.com/raysh454/cyra/internal/webclient"
)

// env carries what every subcommand shares: the viper instance the global
// flags are bound to and the output stream.
type env struct {
	v   *viper.Viper
	out io.Writer
	err io.Writer
}

// NewRootCmd builds the command tree. Tests pass their own viper instance.
func NewRootCmd(v *viper.Viper) *cobra.Command {
	if v == nil {
		v = viper.New()
	}
	e := &env{v: v}

	root := &cobra.Command{
		Use:           "cyra",
		Short:         "Personal security companion",
		Long:          "Cyra scans links, files and screenshots with an AI analyzer, keeps a short-lived alert feed and runs a local bridge for the companion UI.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			e.out = cmd.OutOrStdout()
			e.err = cmd.ErrOrStderr()
		},
	}

	// Global flags
	root.PersistentFlags().String("config", "", "Config file (default ./cyra.yaml or ~/.config/cyra/cyra.yaml)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	_ = v.BindPFlag("config", root.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level"))

	// Environment variable support (CYRA_LOG_LEVEL, etc.)
	v.SetEnvPrefix(app.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Subcommands
	root.AddCommand(newServeCmd(e))
	root.AddCommand(newScanCmd(e))
	root.AddCommand(newCheckCmd(e))
	root.AddCommand(newKeygenCmd(e))
	root.AddCommand(newTipsCmd(e))
	root.AddCommand(newVersionCmd(e))
	return root
}

// Execute runs the CLI with os.Args and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd(nil).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (e *env) loadConfig() (*app.Config, error) {
	return app.LoadConfig(e.v, e.v.GetString("config"))
}

func (e *env) logger(cfg *app.Config) logging.Logger {
	return logging.NewLogger(e.err, "cyra", logging.ParseLevel(cfg.LogLevel))
}

// newCompanion builds the Analyzer stack and the companion around it. When
// oneShot is set the realtime shield is forced off so a single command does
// not start the background monitor.
func (e *env) newCompanion(oneShot bool) (*app.Companion, *app.Config, logging.Logger, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if oneShot {
		cfg.Settings.RealtimeShield = false
	}
	logger := e.logger(cfg)

	wc, err := webclient.NewWebClient(cfg.WebClient, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating web client: %w", err)
	}
	an, err := analyzer.NewGenAIAnalyzer(cfg.Analyzer, wc, logger)
	if err != nil {
		_ = wc.Close()
		return nil, nil, nil, fmt.Errorf("creating analyzer: %w", err)
	}
	if cfg.Analyzer.APIKey == "" {
		logger.Warn("no analyzer API key configured; set CYRA_ANALYZER_API_KEY or GEMINI_API_KEY")
	}

	c, err := app.NewCompanion(cfg, an, nil, nil, logger)
	if err != nil {
		_ = an.Close()
		return nil, nil, nil, err
	}
	return c, cfg, logger, nil
}
