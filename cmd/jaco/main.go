package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"jaco-backend/internal/config"
	"jaco-backend/internal/logging"
	"jaco-backend/pkg/jacoclient"
)

var (
	logLevel string
	apiURL   string
	token    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jaco",
	Short: "Command line client for Jaco side chats, steps and topic splits",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logLevel, "development")
	},
	SilenceUsage: true,
}

func main() {
	cfg := config.LoadClient()

	rootCmd.AddCommand(
		NewTokenCommand(),
		NewSideChatCommand(),
		NewStepsCommand(),
		NewTopicCommand(),
		NewTUICommand(),
	)

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level (trace,debug,info,warn,error)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", cfg.APIURL,
		"Jaco API root (env JACO_API_URL)")
	rootCmd.PersistentFlags().StringVar(&token, "token", cfg.Token,
		"Bearer token (env JACO_TOKEN)")

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func newClient() *jacoclient.Client {
	return jacoclient.New(jacoclient.WithBaseURL(apiURL), jacoclient.WithLogger(log.Logger))
}

func parseID(s, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Wrapf(err, "invalid %s id %q", what, s)
	}
	return id, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
