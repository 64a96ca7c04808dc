package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var useCmd = &cobra.Command{
	Use:   "use <project>",
	Short: "Select a project to use",
	Long:  "Select a project to use for subsequent commands.",
	Args:  cobra.ExactArgs(1),
	RunE:  runUse,
}

func init() {
	rootCmd.AddCommand(useCmd)
}

func runUse(_ *cobra.Command, args []string) error {
	token := getToken()
	if token == "" {
		return fmt.Errorf("not logged in. Run 'vaulty login' first")
	}

	name := args[0]

	// Validate the project exists
	client := NewClient(getAPIURL(), token)
	project, err := client.GetProject(name)
	if err != nil {
		return fmt.Errorf("failed to verify project: %w", err)
	}

	// Save the project
	viper.Set("project", project.Name)
	if err := viper.WriteConfigAs(getConfigPath()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("Now using project: %s\n", project.Name)
	fmt.Println()
	fmt.Println("You can now manage secrets:")
	fmt.Println("  vaulty set KEY VALUE    Set a secret")
	fmt.Println("  vaulty get KEY          Get a secret")
	fmt.Println("  vaulty list             List all secrets")
	fmt.Println("  vaulty run <command>    Run with secrets as env vars")

	return nil
}
