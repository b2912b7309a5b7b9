package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"eva/internal/ipc"
	"eva/internal/ledger"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	var meetingID string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored meeting sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Sessions(meetingID)
				if err != nil {
					return err
				}
				if len(resp.Sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No stored sessions")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Meeting", "Kind", "Mode", "Started", "Duration", "Artifacts"},
					buildSessionRows(resp.Sessions),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&meetingID, "meeting", "m", "", "Limit output to one meeting")
	return cmd
}

func buildSessionRows(sessions []ledger.SessionRecord) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, rec := range sessions {
		rows = append(rows, []string{
			shortID(rec.ID),
			rec.MeetingID,
			rec.Kind,
			rec.Mode,
			formatTimestamp(rec.StartedAt),
			formatDuration(rec.StartedAt, rec.EndedAt),
			sessionArtifacts(rec),
		})
	}
	return rows
}

func sessionArtifacts(rec ledger.SessionRecord) string {
	if rec.Kind == ledger.KindTeam {
		return strconv.Itoa(rec.Tasks) + " tasks"
	}
	return fmt.Sprintf("%d interventions, %d blockers, %d actions",
		rec.Interventions, rec.Blockers, rec.Actions)
}
