package main

import (
	"github.com/spf13/cobra"

	"jaco-backend/pkg/jacoclient"
)

func NewTopicCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topic",
		Short: "Detect topic changes and split chats",
	}

	classify := &cobra.Command{
		Use:   "classify CHAT_ID MESSAGE",
		Short: "Check whether a message starts a new topic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			d, err := newClient().ClassifyTopic(cmd.Context(), token, chatID, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, d)
		},
	}

	var req jacoclient.TopicSplit
	split := &cobra.Command{
		Use:   "split CHAT_ID MESSAGE",
		Short: "Move MESSAGE and what follows into a new chat",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID(args[0], "chat")
			if err != nil {
				return err
			}
			req.TriggeringMessage = args[1]
			job, err := newClient().ConfirmTopicSplit(cmd.Context(), token, chatID, req)
			if err != nil {
				return err
			}
			return printJSON(cmd, job)
		},
	}
	split.Flags().StringVar(&req.NewTopic, "new-topic", "", "Name for the new topic")
	split.Flags().StringVar(&req.OldTopic, "old-topic", "", "Name for the topic being left")
	split.Flags().Float64Var(&req.Confidence, "confidence", 0, "Confidence recorded on the boundary")

	boundaries := jsonAction("boundaries CHAT_ID", "List recorded topic boundaries",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			chatID, err := parseID(id, "chat")
			if err != nil {
				return nil, err
			}
			return c.ListTopicBoundaries(cmd.Context(), token, chatID)
		})

	job := jsonAction("job JOB_ID", "Show a split job",
		func(cmd *cobra.Command, c *jacoclient.Client, id string) (interface{}, error) {
			jobID, err := parseID(id, "job")
			if err != nil {
				return nil, err
			}
			return c.GetJob(cmd.Context(), token, jobID)
		})

	cmd.AddCommand(classify, split, boundaries, job)
	return cmd
}
