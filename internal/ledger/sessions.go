package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eva/internal/facilitation"
	"eva/internal/team"
)

// SessionKind distinguishes facilitation history from team history.
const (
	KindScrum = "scrum"
	KindTeam  = "team"
)

// SessionRecord is a stored session row plus artifact counts.
type SessionRecord struct {
	ID             string             `json:"id"`
	MeetingID      string             `json:"meetingId"`
	Kind           string             `json:"kind"`
	Mode           string             `json:"mode,omitempty"`
	SprintGoal     string             `json:"sprintGoal,omitempty"`
	StartedAt      time.Time          `json:"startedAt"`
	EndedAt        time.Time          `json:"endedAt"`
	SpeakerSeconds map[string]float64 `json:"speakerSeconds,omitempty"`
	Report         string             `json:"report,omitempty"`
	Interventions  int                `json:"interventions"`
	Blockers       int                `json:"blockers"`
	Actions        int                `json:"actions"`
	Tasks          int                `json:"tasks"`
}

// SaveScrumSession persists a completed facilitation session with its
// interventions, blockers, and action items in one transaction.
func (s *Store) SaveScrumSession(ctx context.Context, meetingID string, summary facilitation.Summary) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		speakerJSON, err := json.Marshal(summary.SpeakerSeconds)
		if err != nil {
			return fmt.Errorf("marshal speaker seconds: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, meeting_id, kind, mode, sprint_goal, started_at, ended_at, speaker_seconds_json)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			summary.SessionID, meetingID, KindScrum, string(summary.Mode),
			nullableString(summary.SprintGoal), formatTime(summary.StartedAt),
			formatTime(summary.EndedAt), string(speakerJSON),
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, iv := range summary.Interventions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO interventions (id, session_id, intervention_type, severity, message, speaker, category, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				iv.ID, summary.SessionID, iv.Type, string(iv.Severity), iv.Message,
				nullableString(iv.Speaker), nullableString(iv.Category), formatTime(iv.Timestamp),
			); err != nil {
				return fmt.Errorf("insert intervention: %w", err)
			}
		}
		for _, blocker := range summary.Blockers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO blockers (id, session_id, description, owner, severity, status)
                 VALUES (?, ?, ?, ?, ?, ?)`,
				blocker.ID, summary.SessionID, blocker.Description,
				nullableString(blocker.Owner), string(blocker.Severity), string(blocker.Status),
			); err != nil {
				return fmt.Errorf("insert blocker: %w", err)
			}
		}
		for _, action := range summary.Actions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO actions (id, session_id, description, owner, deadline, status, priority, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				action.ID, summary.SessionID, action.Description, nullableString(action.Owner),
				nullableString(action.Deadline), string(action.Status), action.Priority,
				formatTime(summary.EndedAt),
			); err != nil {
				return fmt.Errorf("insert action: %w", err)
			}
		}
		return tx.Commit()
	})
}

// SaveTeamSession persists a completed team session, its task ledger, and
// the inter-agent bus history.
func (s *Store) SaveTeamSession(ctx context.Context, sessionID, meetingID, report string, startedAt, endedAt time.Time, tasks []team.Task, messages []team.Message) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, meeting_id, kind, started_at, ended_at, report)
             VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, meetingID, KindTeam, formatTime(startedAt), formatTime(endedAt),
			nullableString(report),
		); err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		for _, task := range tasks {
			var completedAt any
			if task.CompletedAt != nil {
				completedAt = formatTime(*task.CompletedAt)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (id, session_id, agent_type, description, status, result, priority, assigned_by, created_at, completed_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				task.ID, sessionID, task.AgentType, task.Description, string(task.Status),
				nullableString(task.Result), task.Priority, task.AssignedBy,
				formatTime(task.CreatedAt), completedAt,
			); err != nil {
				return fmt.Errorf("insert task: %w", err)
			}
		}
		for _, msg := range messages {
			var metadata any
			if len(msg.Metadata) > 0 {
				data, err := json.Marshal(msg.Metadata)
				if err != nil {
					return fmt.Errorf("marshal message metadata: %w", err)
				}
				metadata = string(data)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO agent_messages (id, session_id, from_agent, to_agent, message_type, content, metadata_json, created_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				msg.ID, sessionID, msg.FromAgent, msg.ToAgent, msg.MessageType,
				msg.Content, metadata, formatTime(msg.CreatedAt),
			); err != nil {
				return fmt.Errorf("insert message: %w", err)
			}
		}
		return tx.Commit()
	})
}

// ListSessions returns stored sessions newest first. An empty meetingID
// returns every meeting's history.
func (s *Store) ListSessions(ctx context.Context, meetingID string) ([]SessionRecord, error) {
	ctx = ensureContext(ctx)
	query := `SELECT s.id, s.meeting_id, s.kind, COALESCE(s.mode, ''), COALESCE(s.sprint_goal, ''),
            s.started_at, s.ended_at, COALESCE(s.speaker_seconds_json, ''), COALESCE(s.report, ''),
            (SELECT COUNT(1) FROM interventions WHERE session_id = s.id),
            (SELECT COUNT(1) FROM blockers WHERE session_id = s.id),
            (SELECT COUNT(1) FROM actions WHERE session_id = s.id),
            (SELECT COUNT(1) FROM tasks WHERE session_id = s.id)
        FROM sessions s`
	args := []any{}
	if meetingID != "" {
		query += " WHERE s.meeting_id = ?"
		args = append(args, meetingID)
	}
	query += " ORDER BY s.started_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var (
			rec                SessionRecord
			startedAt, endedAt string
			speakerJSON        string
		)
		if err := rows.Scan(&rec.ID, &rec.MeetingID, &rec.Kind, &rec.Mode, &rec.SprintGoal,
			&startedAt, &endedAt, &speakerJSON, &rec.Report,
			&rec.Interventions, &rec.Blockers, &rec.Actions, &rec.Tasks); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt = parseTime(startedAt)
		rec.EndedAt = parseTime(endedAt)
		if speakerJSON != "" {
			if err := json.Unmarshal([]byte(speakerJSON), &rec.SpeakerSeconds); err != nil {
				return nil, fmt.Errorf("decode speaker seconds: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetSession fetches one stored session by ID.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*SessionRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT s.id, s.meeting_id, s.kind, COALESCE(s.mode, ''), COALESCE(s.sprint_goal, ''),
            s.started_at, s.ended_at, COALESCE(s.speaker_seconds_json, ''), COALESCE(s.report, ''),
            (SELECT COUNT(1) FROM interventions WHERE session_id = s.id),
            (SELECT COUNT(1) FROM blockers WHERE session_id = s.id),
            (SELECT COUNT(1) FROM actions WHERE session_id = s.id),
            (SELECT COUNT(1) FROM tasks WHERE session_id = s.id)
        FROM sessions s WHERE s.id = ?`, sessionID)

	var (
		rec                SessionRecord
		startedAt, endedAt string
		speakerJSON        string
	)
	err := row.Scan(&rec.ID, &rec.MeetingID, &rec.Kind, &rec.Mode, &rec.SprintGoal,
		&startedAt, &endedAt, &speakerJSON, &rec.Report,
		&rec.Interventions, &rec.Blockers, &rec.Actions, &rec.Tasks)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	rec.StartedAt = parseTime(startedAt)
	rec.EndedAt = parseTime(endedAt)
	if speakerJSON != "" {
		if err := json.Unmarshal([]byte(speakerJSON), &rec.SpeakerSeconds); err != nil {
			return nil, fmt.Errorf("decode speaker seconds: %w", err)
		}
	}
	return &rec, nil
}
