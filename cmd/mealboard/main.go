// Package main is the mealboard terminal client: log in against a server,
// then plan the week on an interactive board.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ovenlight/mealboard/internal/engine/remote"
	"github.com/ovenlight/mealboard/internal/tui"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "mealboard",
	Short: "Terminal meal planner",
	Long:  "mealboard plans meals on a shared calendar: a week board with clipboard, drag-free rearrangement, recurring meals, and bulk week copies.",
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Authenticate and store a session token",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogin,
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Open the interactive week board",
	RunE:  runBoard,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("MEALBOARD_SERVER", "http://localhost:8080"), "mealboard server base URL")
	rootCmd.AddCommand(loginCmd, boardCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := args[0]

	fmt.Fprint(os.Stderr, "password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	token, err := remote.Login(context.Background(), serverURL, email, string(password))
	if err != nil {
		return err
	}
	if err := saveToken(token); err != nil {
		return err
	}
	fmt.Println("logged in")
	return nil
}

func runBoard(cmd *cobra.Command, args []string) error {
	token, err := loadToken()
	if err != nil {
		return fmt.Errorf("not logged in: run `mealboard login <email>` first")
	}

	client := remote.New(serverURL, token)
	program := tea.NewProgram(tui.NewBoard(client), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

// tokenPath is where the session token lives, under the user config dir.
func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mealboard", "token"), nil
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func loadToken() (string, error) {
	if token := os.Getenv("MEALBOARD_TOKEN"); token != "" {
		return token, nil
	}
	path, err := tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
