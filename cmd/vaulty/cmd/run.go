package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a command with secrets as environment variables",
	Long: `Run a command with all project secrets injected as environment variables.

This is useful for running applications that need access to secrets
without exposing them in shell history or scripts.

Examples:
  vaulty run npm start
  vaulty run python manage.py runserver
  vaulty run -- docker compose up`,
	DisableFlagParsing: true,
	RunE:               runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("command is required")
	}

	// Handle -- separator
	if args[0] == "--" {
		args = args[1:]
		if len(args) == 0 {
			return fmt.Errorf("command is required after --")
		}
	}

	token := getToken()
	if token == "" {
		return fmt.Errorf("not logged in. Run 'vaulty login' first")
	}

	client := NewClient(getAPIURL(), token)
	secrets, err := client.ExportSecrets(getProject())
	if err != nil {
		return fmt.Errorf("failed to export secrets: %w", err)
	}

	// Build environment
	env := os.Environ()
	for key, value := range secrets {
		env = append(env, fmt.Sprintf("%s=%s", key, value))
	}

	executable, err := exec.LookPath(args[0])
	if err != nil {
		return fmt.Errorf("command not found: %s", args[0])
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	execCmd := exec.CommandContext(ctx, executable, args[1:]...)
	execCmd.Env = env
	execCmd.Stdin = os.Stdin
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := execCmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	// Forward signals to the child process
	go func() {
		sig := <-sigChan
		if execCmd.Process != nil {
			_ = execCmd.Process.Signal(sig)
		}
	}()

	if err := execCmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		return fmt.Errorf("command failed: %w", err)
	}

	return nil
}
