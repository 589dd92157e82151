package main

import (
	"context"
	"os"
	"path"
	"strings"
	"time"

	"github.com/codesentinel/codesentinel-go/internal/analyzer"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/output"
	"github.com/codesentinel/codesentinel-go/internal/reposource"
	"github.com/codesentinel/codesentinel-go/internal/tokens"
	"github.com/spf13/cobra"
)

func newCostPreviewCmd(a *app) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "cost-preview <repo-url>",
		Short: "Project the cost of classifying a repository",
		Long: `Inventories the repository in memory, samples a few candidate files,
and extrapolates token usage and cost for a full classification run.
Nothing is written and no LLM is called.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			source, err := a.newSource(args[0])
			if err != nil {
				return err
			}
			m, err := inventoryInMemory(ctx, source)
			if err != nil {
				return err
			}

			providerName := provider
			if providerName == "" {
				providerName = a.cfg.LLM.DefaultProvider
			}
			an := analyzer.NewForPreview(source, providerName, a.cfg, a.logger)
			acct := tokens.NewAccountant(tokens.NewEncoder(a.logger), a.cfg.Provider(providerName))

			p, err := an.Preview(ctx, m, acct)
			if err != nil {
				return err
			}
			output.Preview(os.Stdout, p)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider to price against")
	return cmd
}

// inventoryInMemory resolves the head commit and lists files into a fresh
// manifest without touching disk.
func inventoryInMemory(ctx context.Context, source reposource.Source) (*manifest.Manifest, error) {
	branch, sha, err := source.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	files, err := source.ListFiles(ctx, sha)
	if err != nil {
		return nil, err
	}

	m := manifest.New(source.URL(), branch, sha, time.Now())
	for _, f := range files {
		m.Files = append(m.Files, manifest.FileEntry{
			Path:      f.Path,
			BlobID:    f.BlobID,
			Size:      f.Size,
			Extension: strings.ToLower(path.Ext(f.Path)),
		})
	}
	return m, nil
}
