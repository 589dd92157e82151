package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/reposource"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries the state shared by every subcommand.
type app struct {
	cfgPath  string
	logLevel string
	verbose  bool

	cfg    *config.Config
	logger *logrus.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: logrus.New()}

	cmd := &cobra.Command{
		Use:   "sentinel",
		Short: "Audit a GitHub repository into a single enriched manifest",
		Long: `sentinel inventories a remote GitHub repository and enriches the
resulting manifest in phases: file inventory, token and cost accounting,
LLM classification, and vulnerability scanning with risk scoring.

All results accumulate in one JSON manifest that later phases and reruns
extend without discarding earlier work.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(a.logLevel)
			if err != nil {
				level = logrus.InfoLevel
			}
			if a.verbose {
				level = logrus.DebugLevel
			}
			a.logger.SetLevel(level)
			a.logger.SetOutput(os.Stderr)

			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newAnalyzeCmd(a),
		newShowCmd(a),
		newCostPreviewCmd(a),
		newAnalyzeTokensCmd(a),
		newTestConnectionCmd(a),
		newTestLLMCmd(a),
		newTestScannerCmd(a),
		newConfigureCmd(a),
	)
	return cmd
}

// signalContext returns a context cancelled by SIGINT or SIGTERM, so an
// interrupted run checkpoints instead of dying mid-write.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newSource builds the GitHub-backed source for repoURL, with the blob
// cache attached when configured.
func (a *app) newSource(repoURL string) (reposource.Source, error) {
	var cache *reposource.BlobCache
	if dir := a.cfg.Source.CacheDir; dir != "" {
		c, err := reposource.OpenBlobCache(dir)
		if err != nil {
			a.logger.WithError(err).Warn("blob cache unavailable, continuing without")
		} else {
			cache = c
		}
	}
	return reposource.NewClient(repoURL, a.cfg.Source.Token, a.cfg.Source.BaseURL, a.cfg.Source.RateLimit, cache, a.logger)
}
