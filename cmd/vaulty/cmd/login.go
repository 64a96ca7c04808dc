package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with a Vaulty server",
	Long: `Authenticate with a Vaulty server using an access token.

The token can be a master token or a project token. Ask your server
operator for one, or mint one with 'vaulty tokens create'.

The token will be stored in ~/.vaulty/config.yaml`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

// readToken reads the token without echoing when stdin is a terminal.
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}

	reader := bufio.NewReader(os.Stdin)
	token, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(token), nil
}

func runLogin(_ *cobra.Command, _ []string) error {
	fmt.Println("Vaulty Login")
	fmt.Println("============")
	fmt.Println()
	PrintKeyValue("Server", getAPIURL())
	fmt.Println()
	fmt.Print("Enter your access token: ")

	token, err := readToken()
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	// Validate the token by listing the projects it can see
	client := NewClient(getAPIURL(), token)
	projects, err := client.ListProjects()
	if err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}

	// Save the token
	viper.Set("token", token)
	configPath := getConfigPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := viper.WriteConfigAs(configPath); err != nil {
		if err := viper.SafeWriteConfigAs(configPath); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
	}
	// Restrict to owner read/write only
	if err := os.Chmod(configPath, 0o600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Println()
	Success("Logged in (%d project(s) visible)", len(projects))
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  vaulty projects list     List your projects")
	fmt.Println("  vaulty use <project>     Select a project")
	fmt.Println("  vaulty set KEY VALUE     Set a secret")

	return nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of Vaulty",
	Long:  "Remove stored credentials from your machine.",
	RunE:  runLogout,
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}

func runLogout(_ *cobra.Command, _ []string) error {
	viper.Set("token", "")
	viper.Set("project", "")

	if err := viper.WriteConfigAs(getConfigPath()); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println("Logged out successfully")
	return nil
}
