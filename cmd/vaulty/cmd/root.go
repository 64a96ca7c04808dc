// Package cmd provides the CLI commands for vaulty.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile     string
	serverURL   string
	projectName string
	jsonOutput  bool
	verbose     bool
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "vaulty",
	Short: "Vaulty CLI - project-scoped secrets over a simple API",
	Long: `Vaulty CLI talks to a Vaulty server to manage projects, secrets,
devices, and access tokens.

Get started:
  vaulty login             Store your access token
  vaulty use <project>     Select a project
  vaulty set KEY VALUE     Set a secret
  vaulty get KEY           Get a secret value
  vaulty run -- CMD        Run command with secrets as env vars

Examples:
  vaulty login
  vaulty set DATABASE_URL "postgres://..."
  vaulty get DATABASE_URL
  vaulty run -- npm start
  vaulty env --format dotenv > .env`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.vaulty/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "project name")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".vaulty")
		viper.AddConfigPath(configDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("VAULTY")
	viper.AutomaticEnv()

	// Load config file if it exists.
	_ = viper.ReadInConfig()
}

// getConfigPath returns the path where credentials are stored.
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".vaulty", "config.yaml")
}

// getAPIURL returns the server base URL from the flag, config, or default.
func getAPIURL() string {
	if serverURL != "" {
		return serverURL
	}
	if url := viper.GetString("server"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// getToken returns the stored access token.
func getToken() string {
	return viper.GetString("token")
}

// getProject returns the selected project: the flag wins over the config.
func getProject() string {
	if projectName != "" {
		return projectName
	}
	return viper.GetString("project")
}

// isVerbose returns whether verbose mode is enabled.
func isVerbose() bool {
	if verbose {
		return true
	}
	return viper.GetBool("verbose")
}
