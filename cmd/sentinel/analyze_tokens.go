package main

import (
	"fmt"
	"os"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/output"
	"github.com/codesentinel/codesentinel-go/internal/phase"
	"github.com/codesentinel/codesentinel-go/internal/tokens"
	"github.com/spf13/cobra"
)

func newAnalyzeTokensCmd(a *app) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "analyze-tokens [manifest-path]",
		Short: "Compute token and cost accounting for an inventoried manifest",
		Long: `Runs the token accounting phase against an existing manifest and writes
a standalone token analysis report next to it. The repository is read
from the manifest itself.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			path := a.cfg.ManifestPath()
			if len(args) == 1 {
				path = args[0]
			}
			m, err := manifest.NewStore().Load(path)
			if err != nil {
				if err == manifest.ErrNotFound {
					return errors.Newf(errors.KindConfigInvalid,
						"no manifest at %s; run 'sentinel analyze' first", path)
				}
				return err
			}

			source, err := a.newSource(m.Repository.URL)
			if err != nil {
				return err
			}

			controller := phase.NewController(source, a.cfg, manifest.NewStore(), a.logger)
			result, err := controller.Run(ctx, phase.Options{
				ManifestPath: path,
				Phases:       []phase.Phase{phase.Tokens},
				Provider:     provider,
				TokenReport:  true,
			})
			if err != nil {
				return err
			}

			providerName := provider
			if providerName == "" {
				providerName = a.cfg.LLM.DefaultProvider
			}
			pc := a.cfg.Provider(providerName)
			report := tokens.BuildReport(result.Manifest, providerName, pc.Model, pc.InputRatePer1K, pc.OutputRatePer1K)
			output.TokenReport(os.Stdout, report)
			fmt.Printf("\nReport written to %s\n", a.cfg.TokenAnalysisPath(result.ManifestPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider to price against")
	return cmd
}
