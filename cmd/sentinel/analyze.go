package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/codesentinel/codesentinel-go/internal/analyzer"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/output"
	"github.com/codesentinel/codesentinel-go/internal/phase"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		phases       []string
		provider     string
		manifestPath string
		scanVulns    bool
		scanners     []string
		skipPreview  bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <repo-url>",
		Short: "Run enrichment phases against a repository",
		Long: `Runs the selected phases against the repository's default branch head
and accumulates results in the manifest. Without --phase, the inventory,
token accounting and classification phases run; --scan-vulnerabilities
adds the scanning and risk scoring phase.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			selected := phases
			if len(selected) == 0 {
				selected = []string{"1", "1.5", "2.5"}
				if scanVulns {
					selected = append(selected, "3")
				}
			}
			parsed, err := phase.Parse(selected)
			if err != nil {
				return err
			}

			source, err := a.newSource(args[0])
			if err != nil {
				return err
			}

			controller := phase.NewController(source, a.cfg, manifest.NewStore(), a.logger)
			result, err := controller.Run(ctx, phase.Options{
				ManifestPath:    manifestPath,
				Phases:          parsed,
				Provider:        provider,
				Scanners:        scanners,
				SkipCostPreview: skipPreview,
				ConfirmPreview:  confirmPreview(a),
			})
			if err != nil {
				return err
			}
			if result.PreviewDeclined {
				fmt.Println("Aborted.")
				return nil
			}

			fmt.Printf("Manifest written to %s\n", result.ManifestPath)
			if s := result.Classify; s != nil {
				fmt.Printf("Classified %d of %d candidate files", s.Classified, s.Candidates)
				if s.Placeholders > 0 {
					fmt.Printf(" (%d failed)", s.Placeholders)
				}
				fmt.Println()
			}
			if s := result.Scan; s != nil {
				fmt.Printf("Scanners %v found %d finding(s) in %d file(s)\n",
					s.ScannersRun, s.TotalFindings, s.FilesWithFindings)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&phases, "phase", nil, "phases to run (1, 1.5, 2.5, 3, all)")
	cmd.Flags().StringVar(&provider, "provider", "", "LLM provider (openai, bedrock)")
	cmd.Flags().StringVarP(&manifestPath, "output", "o", "", "manifest path")
	cmd.Flags().BoolVar(&scanVulns, "scan-vulnerabilities", false, "also run the vulnerability scanning phase")
	cmd.Flags().StringSliceVar(&scanners, "scanners", nil, "scanners to run (semgrep, bandit)")
	cmd.Flags().BoolVar(&skipPreview, "skip-cost-preview", false, "skip the cost confirmation before classification")
	return cmd
}

// confirmPreview shows the projected cost and asks before spending. A
// non-interactive stdin proceeds with a warning, since there is nobody to
// ask.
func confirmPreview(a *app) func(*analyzer.Preview) bool {
	return func(p *analyzer.Preview) bool {
		output.Preview(os.Stdout, p)
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			a.logger.Warn("stdin is not a terminal, proceeding without confirmation")
			return true
		}
		fmt.Print("Proceed? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
