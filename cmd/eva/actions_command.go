package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eva/internal/ipc"
	"eva/internal/ledger"
)

func newActionsCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	actionsCmd := &cobra.Command{
		Use:   "actions",
		Short: "Inspect and edit stored action items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Actions(statusFilter)
				if err != nil {
					return err
				}
				if len(resp.Actions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored action items")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Meeting", "Status", "Priority", "Owner", "Deadline", "Description"},
					buildActionRows(resp.Actions),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
	actionsCmd.Flags().StringVarP(&statusFilter, "status", "s", "", "Filter by status (open, in_progress, done, blocked)")

	actionsCmd.AddCommand(newActionsDoneCommand(ctx))
	actionsCmd.AddCommand(newActionsAssignCommand(ctx))

	return actionsCmd
}

func newActionsDoneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "done <action-id>",
		Short: "Mark an action item done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UpdateAction(args[0], "done", "")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Action %s marked done\n", shortID(resp.Action.ID))
				return nil
			})
		},
	}
}

func newActionsAssignCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <action-id> <owner>",
		Short: "Assign an owner to an action item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.UpdateAction(args[0], "", args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Action %s assigned to %s\n", shortID(resp.Action.ID), resp.Action.Owner)
				return nil
			})
		},
	}
}

func buildActionRows(actions []ledger.ActionRecord) [][]string {
	rows := make([][]string, 0, len(actions))
	for _, rec := range actions {
		rows = append(rows, []string{
			shortID(rec.ID),
			rec.MeetingID,
			rec.Status,
			rec.Priority,
			rec.Owner,
			rec.Deadline,
			truncate(rec.Description, 48),
		})
	}
	return rows
}
