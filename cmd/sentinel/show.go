package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/codesentinel/codesentinel-go/internal/manifest"
	"github.com/codesentinel/codesentinel-go/internal/output"
	"github.com/spf13/cobra"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		filePath string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "show [manifest-path]",
		Short: "Display an analysis manifest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfg.ManifestPath()
			if len(args) == 1 {
				path = args[0]
			}
			m, err := manifest.NewStore().Load(path)
			if err != nil {
				if err == manifest.ErrNotFound {
					return errors.Newf(errors.KindConfigInvalid, "no manifest at %s", path)
				}
				return err
			}

			if filePath != "" {
				entry := m.Entry(filePath)
				if entry == nil {
					return errors.Newf(errors.KindConfigInvalid, "no entry for %q in manifest", filePath)
				}
				if asJSON {
					return printJSON(entry)
				}
				output.NewFormatter(os.Stdout).File(entry)
				return nil
			}

			if asJSON {
				return printJSON(m)
			}
			output.NewFormatter(os.Stdout).Summary(m)
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "show one file entry")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "encode output")
	}
	fmt.Println(string(data))
	return nil
}
