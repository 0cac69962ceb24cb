package main

import (
	"github.com/spf13/cobra"

	"jaco-backend/internal/models"
	"jaco-backend/pkg/jacoclient"
)

func NewSideChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "side-chat",
		Aliases: []string{"sc"},
		Short:   "Manage side chats attached to plan steps",
	}

	var (
		step    int
		content string
	)
	create := &cobra.Command{
		Use:   "create CHAT_ID",
		Short: "Open a side chat on one step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			sc, err := newClient().CreateSideChat(cmd.Context(), token, jacoclient.CreateSideChatRequest{
				ChatID:              chatID,
				StepNumber:          step,
				OriginalStepContent: content,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, sc)
		},
	}
	create.Flags().IntVar(&step, "step", 0, "Step number the side chat belongs to")
	create.Flags().StringVar(&content, "content", "", "Original step content")
	create.MarkFlagRequired("content")

	list := &cobra.Command{
		Use:   "list CHAT_ID",
		Short: "List the side chats of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			res, err := newClient().ListSideChatsByChat(cmd.Context(), token, chatID)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	get := jsonAction("get SIDE_CHAT_ID", "Show a side chat with its messages",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			sid, err := parseID(id, "side chat")
			if err != nil {
				return nil, err
			}
			return c.GetSideChat(cmd.Context(), token, sid)
		})

	var role string
	add := &cobra.Command{
		Use:   "add SIDE_CHAT_ID MESSAGE",
		Short: "Append a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sid, err := parseID(args[0], "side chat")
			if err != nil {
				return err
			}
			msg, err := newClient().AddSideChatMessage(cmd.Context(), token, sid, jacoclient.AddMessageRequest{
				Role:    role,
				Content: args[1],
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, msg)
		},
	}
	add.Flags().StringVar(&role, "role", models.RoleUser, "Message role (user|assistant)")

	reply := jsonAction("reply SIDE_CHAT_ID", "Ask the assistant to answer the latest message",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			sid, err := parseID(id, "side chat")
			if err != nil {
				return nil, err
			}
			return c.ReplySideChat(cmd.Context(), token, sid)
		})

	combine := jsonAction("combine SIDE_CHAT_ID", "Merge the side chat back into its step",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			sid, err := parseID(id, "side chat")
			if err != nil {
				return nil, err
			}
			return c.CombineSideChat(cmd.Context(), token, sid)
		})

	discard := jsonAction("discard SIDE_CHAT_ID", "Delete the side chat and its messages",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			sid, err := parseID(id, "side chat")
			if err != nil {
				return nil, err
			}
			return c.DeleteSideChat(cmd.Context(), token, sid)
		})

	cmd.AddCommand(create, list, get, add, reply, combine, discard)
	return cmd
}

// jsonAction builds a one-argument subcommand that prints the result as JSON.
func jsonAction(use, short string, run func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := run(cmd, newClient(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}
