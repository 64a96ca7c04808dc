package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a secret value",
	Long: `Get the value of a secret by key.

The decrypted value is printed to stdout. Messages go to stderr,
making this command pipe-friendly.

Examples:
  vaulty get DATABASE_URL
  vaulty get API_KEY --json
  DB_URL=$(vaulty get DATABASE_URL)`,
	Aliases: []string{"g"},
	Args:    cobra.ExactArgs(1),
	RunE:    runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(_ *cobra.Command, args []string) error {
	token := getToken()
	if token == "" {
		return fmt.Errorf("not logged in. Run 'vaulty login' first")
	}

	client := NewClient(getAPIURL(), token)
	secret, err := client.GetSecret(getProject(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get secret: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]string{
			"key":   secret.Key,
			"value": secret.Value,
		})
	}

	fmt.Print(secret.Value)
	return nil
}
