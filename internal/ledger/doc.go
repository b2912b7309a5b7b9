// Package ledger persists completed sessions in SQLite: facilitation
// summaries with their interventions, blockers, and action items, and team
// sessions with their task ledger and agent messages. Action items remain
// editable after their session ends; everything else is read only history.
package ledger
