package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"jaco-backend/pkg/jacoclient"
)

func NewStepsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "Walk through a chat's stepped plan",
	}

	next := jsonAction("next CHAT_ID", "Reveal the next step",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			chatID, err := parseID(id, "chat")
			if err != nil {
				return nil, err
			}
			return c.NextStep(cmd.Context(), token, chatID)
		})

	all := jsonAction("all CHAT_ID", "Show the full plan",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			chatID, err := parseID(id, "chat")
			if err != nil {
				return nil, err
			}
			return c.AllSteps(cmd.Context(), token, chatID)
		})

	mode := &cobra.Command{
		Use:   "mode CHAT_ID on|off",
		Short: "Turn step mode on or off",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			enabled, err := parseSwitch(args[1])
			if err != nil {
				return err
			}
			sc, err := newClient().SetStepMode(cmd.Context(), token, chatID, enabled)
			if err != nil {
				return err
			}
			return printJSON(cmd, sc)
		},
	}

	cmd.AddCommand(next, all, mode)
	return cmd
}

func parseSwitch(s string) (bool, error) {
	switch s {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errors.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
