package main

import (
	"fmt"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/llm"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/scanner"
	"github.com/spf13/cobra"
)

func newTestConnectionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection <repo-url>",
		Short: "Verify GitHub access to a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			source, err := a.newSource(args[0])
			if err != nil {
				return err
			}
			branch, sha, err := source.Resolve(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("OK: %s @ %s (%s)\n", args[0], branch, sha)
			return nil
		},
	}
}

func newTestLLMCmd(a *app) *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "test-llm",
		Short: "Verify LLM provider credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			providerName := provider
			if providerName == "" {
				providerName = a.cfg.LLM.DefaultProvider
			}
			p, err := llm.New(providerName, a.cfg, a.logger)
			if err != nil {
				return err
			}
			if err := p.TestConnection(ctx); err != nil {
				return err
			}
			fmt.Printf("OK: %s (%s)\n", providerName, a.cfg.Provider(providerName).Model)
			return nil
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (openai, bedrock)")
	return cmd
}

func newTestScannerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test-vulnerability-scanner",
		Short: "Check which vulnerability scanners are ready",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			runner := scanner.NewRunner(nil, a.cfg, manifest.NewStore(), a.logger)
			available := 0
			for _, name := range runner.Names() {
				if err := runner.Check(ctx, name); err != nil {
					fmt.Printf("%-10s unavailable: %v\n", name, err)
					continue
				}
				fmt.Printf("%-10s ok\n", name)
				available++
			}
			if available == 0 {
				return errors.New(errors.KindScannerUnavailable, "no scanner is available")
			}
			return nil
		},
	}
}
