package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	envFormat string
	envExport bool
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Export secrets as environment variables",
	Long: `Export all secrets as environment variables in various formats.

The output can be used with shell eval or saved to an .env file.

Examples:
  eval $(vaulty env)
  vaulty env --format=dotenv > .env
  vaulty env --format=json > secrets.json
  source <(vaulty env)`,
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().StringVarP(&envFormat, "format", "f", "shell", "Output format: shell, dotenv, json")
	envCmd.Flags().BoolVarP(&envExport, "export", "e", true, "Include 'export' prefix (shell format only)")
}

func runEnv(_ *cobra.Command, _ []string) error {
	token := getToken()
	if token == "" {
		return fmt.Errorf("not logged in. Run 'vaulty login' first")
	}

	client := NewClient(getAPIURL(), token)
	secrets, err := client.ExportSecrets(getProject())
	if err != nil {
		return fmt.Errorf("failed to export secrets: %w", err)
	}

	if len(secrets) == 0 {
		return nil
	}

	// Sort keys for consistent output.
	keys := make([]string, 0, len(secrets))
	for k := range secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch envFormat {
	case "shell":
		for _, k := range keys {
			escaped := escapeShellValue(secrets[k])
			if envExport {
				fmt.Printf("export %s=%s\n", k, escaped)
			} else {
				fmt.Printf("%s=%s\n", k, escaped)
			}
		}
	case "dotenv":
		for _, k := range keys {
			fmt.Printf("%s=%s\n", k, escapeDotenvValue(secrets[k]))
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(secrets)
	default:
		return fmt.Errorf("unknown format: %s", envFormat)
	}

	return nil
}

// escapeShellValue single-quotes a value for POSIX shells.
func escapeShellValue(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `'\''`) + "'"
}

// escapeDotenvValue quotes a value when it contains characters that would
// break a naive KEY=VALUE parser.
func escapeDotenvValue(v string) string {
	if !strings.ContainsAny(v, " \t\n\"'#") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return `"` + v + `"`
}
