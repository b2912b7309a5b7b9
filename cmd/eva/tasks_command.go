package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"eva/internal/ipc"
	"eva/internal/ledger"
)

func newTasksCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <meeting-id>",
		Short: "List stored agent tasks for a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Tasks(args[0])
				if err != nil {
					return err
				}
				if len(resp.Tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored tasks for this meeting")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Agent", "Status", "Priority", "Description", "Result"},
					buildTaskRows(resp.Tasks),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func buildTaskRows(tasks []ledger.TaskRecord) [][]string {
	rows := make([][]string, 0, len(tasks))
	for _, rec := range tasks {
		rows = append(rows, []string{
			shortID(rec.ID),
			rec.AgentType,
			rec.Status,
			rec.Priority,
			truncate(rec.Description, 48),
			truncate(rec.Result, 48),
		})
	}
	return rows
}
