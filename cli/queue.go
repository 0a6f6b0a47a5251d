package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/hookline/hookline/pkg/config"
)

func QueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the job queue",
	}
	cmd.AddCommand(queueLenCmd(), queueLsCmd())
	return cmd
}

func queueLenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "len",
		Short: "Print the number of pending jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			q, closeQueue, err := openQueue(ctx, config.FromContext(ctx))
			if err != nil {
				return err
			}
			defer closeQueue()
			pending, err := q.Len(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), pending)
			return nil
		},
	}
}

func queueLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "Print pending jobs in dequeue order without consuming them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, err := cmd.Flags().GetInt64("limit")
			if err != nil {
				return fmt.Errorf("failed to get limit flag: %w", err)
			}
			field, err := cmd.Flags().GetString("field")
			if err != nil {
				return fmt.Errorf("failed to get field flag: %w", err)
			}
			q, closeQueue, err := openQueue(ctx, config.FromContext(ctx))
			if err != nil {
				return err
			}
			defer closeQueue()
			payloads, err := q.Peek(ctx, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, payload := range payloads {
				fmt.Fprintln(out, renderPayload(payload, field))
			}
			return nil
		},
	}
	cmd.Flags().Int64("limit", 10, "Maximum number of jobs to print")
	cmd.Flags().String("field", "", "Print only this field of each job (gjson path, e.g. action.name)")
	return cmd
}

// renderPayload projects one queue payload for display. An empty field prints
// the raw JSON; otherwise the gjson path is resolved against the payload.
func renderPayload(payload []byte, field string) string {
	if field == "" {
		return string(payload)
	}
	value := gjson.GetBytes(payload, field)
	if !value.Exists() {
		return "<absent>"
	}
	return value.String()
}
