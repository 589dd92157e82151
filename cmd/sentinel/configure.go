package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/codesentinel/codesentinel-go/internal/config"
	"github.com/codesentinel/codesentinel-go/internal/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newConfigureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Store credentials in the OS keychain",
		Long: `Prompts for the OpenAI API key and GitHub token and stores them in the
OS keychain. Either prompt may be left empty to keep the current value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return errors.New(errors.KindConfigInvalid, "configure needs an interactive terminal")
			}
			km := config.NewKeyringManager()
			if !km.IsAvailable() {
				return errors.New(errors.KindConfigInvalid,
					"OS keychain not available; set OPENAI_API_KEY and GITHUB_TOKEN instead")
			}

			current, _ := km.GetAPIKey()
			fmt.Printf("OpenAI API key [%s]: ", config.MaskAPIKey(current))
			apiKey, err := readSecret()
			if err != nil {
				return err
			}
			if apiKey != "" {
				if err := km.SaveAPIKey(apiKey); err != nil {
					return errors.Wrap(err, errors.KindConfigInvalid, "save API key")
				}
				fmt.Println("OpenAI API key saved.")
			}

			currentToken, _ := km.GetSourceToken()
			fmt.Printf("GitHub token [%s]: ", config.MaskAPIKey(currentToken))
			token, err := readSecret()
			if err != nil {
				return err
			}
			if token != "" {
				if err := km.SetSourceToken(token); err != nil {
					return errors.Wrap(err, errors.KindConfigInvalid, "save GitHub token")
				}
				fmt.Println("GitHub token saved.")
			}
			return nil
		},
	}
}

func readSecret() (string, error) {
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", errors.Wrap(err, errors.KindConfigInvalid, "read input")
	}
	return strings.TrimSpace(string(raw)), nil
}
