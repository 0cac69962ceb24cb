package main

import (
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"jaco-backend/internal/logging"
	"jaco-backend/internal/tui"
)

func NewTUICommand() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "tui CHAT_ID",
		Short: "Interactive view with step controls, side chats and topic splits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}

			// The TUI owns the terminal, so logs go to a file.
			closer, err := logging.ToFile(logFile, logLevel)
			if err != nil {
				return errors.Wrap(err, "open log file")
			}
			defer closer.Close()

			app := tui.NewApp(newClient(), token, chatID)
			if _, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
				return errors.Wrap(err, "run tui")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", filepath.Join(os.TempDir(), "jaco-tui.log"), "Where the TUI writes its log")

	return cmd
}
