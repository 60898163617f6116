package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thoughtful-python/infra/internal/catalog"
	"github.com/thoughtful-python/infra/internal/models"
)

var errValueSource = errors.New("exactly one of --value, --from-env or --file is required")

// newSecretCmd creates the "secret" command group.
func newSecretCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage platform secret values",
	}
	cmd.AddCommand(newSecretSetCmd(a))
	return cmd
}

func newSecretSetCmd(a *app) *cobra.Command {
	var value, fromEnv, file string

	cmd := &cobra.Command{
		Use:   "set <id>",
		Short: "Store a value in a platform secret",
		Long: `Set stores a new value in one of the catalog secrets. The secret must
already be deployed.

Examples:
    deployer secret set chatbotApiKey --from-env CHATBOT_API_KEY
    deployer secret set chatbotApiKey --file ./key.txt --stack prod`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := a.target()
			if err != nil {
				return err
			}

			cat := catalog.New(catalogConfig(target))
			spec, ok := cat.Secret(models.SecretID(args[0]))
			if !ok {
				ids := make([]string, 0, len(cat.Secrets))
				for _, s := range cat.Secrets {
					ids = append(ids, string(s.ID))
				}
				return fmt.Errorf("secret %q (known: %s): %w", args[0], strings.Join(ids, ", "), catalog.ErrUnknownTarget)
			}

			secretValue, err := readSecretValue(value, fromEnv, file)
			if err != nil {
				return err
			}

			manager, err := a.secretManager(cmd.Context(), target.Region)
			if err != nil {
				return err
			}
			version, err := manager.PutValue(cmd.Context(), spec.Name, secretValue)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Stored %s (version %s)\n", spec.Name, version)
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Secret value (visible in shell history)")
	cmd.Flags().StringVar(&fromEnv, "from-env", "", "Read the value from this environment variable")
	cmd.Flags().StringVar(&file, "file", "", "Read the value from this file")
	return cmd
}

// readSecretValue returns the value from the single source that was given.
func readSecretValue(value, fromEnv, file string) (string, error) {
	given := 0
	for _, s := range []string{value, fromEnv, file} {
		if s != "" {
			given++
		}
	}
	if given != 1 {
		return "", errValueSource
	}

	switch {
	case fromEnv != "":
		v, ok := os.LookupEnv(fromEnv)
		if !ok || v == "" {
			return "", fmt.Errorf("environment variable %s is not set", fromEnv)
		}
		return v, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read secret file: %w", err)
		}
		return string(data), nil
	default:
		return value, nil
	}
}
