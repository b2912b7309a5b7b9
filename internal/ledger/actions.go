package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ActionRecord is a stored action item. Unlike the rest of a session's
// artifacts, actions stay editable after the session ends.
type ActionRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	MeetingID   string    `json:"meetingId"`
	Description string    `json:"description"`
	Owner       string    `json:"owner,omitempty"`
	Deadline    string    `json:"deadline,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// TaskRecord is a stored agent task.
type TaskRecord struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"sessionId"`
	MeetingID   string     `json:"meetingId"`
	AgentType   string     `json:"agentType"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	Priority    string     `json:"priority"`
	AssignedBy  string     `json:"assignedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

const actionColumns = `a.id, a.session_id, s.meeting_id, a.description,
    COALESCE(a.owner, ''), COALESCE(a.deadline, ''), a.status, a.priority, a.updated_at`

func scanAction(row interface{ Scan(...any) error }) (ActionRecord, error) {
	var (
		rec       ActionRecord
		updatedAt string
	)
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.MeetingID, &rec.Description,
		&rec.Owner, &rec.Deadline, &rec.Status, &rec.Priority, &updatedAt)
	if err != nil {
		return ActionRecord{}, err
	}
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

// ListActions returns stored action items, optionally filtered by status.
func (s *Store) ListActions(ctx context.Context, status string) ([]ActionRecord, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + actionColumns + ` FROM actions a JOIN sessions s ON s.id = a.session_id`
	args := []any{}
	if status = strings.TrimSpace(strings.ToLower(status)); status != "" {
		query += " WHERE a.status = ?"
		args = append(args, status)
	}
	query += " ORDER BY a.updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var records []ActionRecord
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetAction fetches one stored action item.
func (s *Store) GetAction(ctx context.Context, id string) (*ActionRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions a JOIN sessions s ON s.id = a.session_id WHERE a.id = ?`, id)
	rec, err := scanAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan action: %w", err)
	}
	return &rec, nil
}

// UpdateAction changes a stored action item's status and/or owner. Empty
// values leave the field untouched.
func (s *Store) UpdateAction(ctx context.Context, id, status, owner string) (*ActionRecord, error) {
	ctx = ensureContext(ctx)
	sets := []string{"updated_at = ?"}
	args := []any{formatTime(time.Now())}
	if status = strings.TrimSpace(strings.ToLower(status)); status != "" {
		if !validActionStatus(status) {
			return nil, fmt.Errorf("invalid action status %q", status)
		}
		sets = append(sets, "status = ?")
		args = append(args, status)
	}
	if owner = strings.TrimSpace(owner); owner != "" {
		sets = append(sets, "owner = ?")
		args = append(args, owner)
	}
	args = append(args, id)

	res, err := s.execWithRetry(ctx,
		"UPDATE actions SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrNotFound
	}
	return s.GetAction(ctx, id)
}

func validActionStatus(status string) bool {
	switch status {
	case "open", "in_progress", "done", "blocked":
		return true
	}
	return false
}

// TasksForMeeting returns every stored agent task for a meeting, newest
// session first.
func (s *Store) TasksForMeeting(ctx context.Context, meetingID string) ([]TaskRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.session_id, s.meeting_id, t.agent_type, t.description, t.status,
            COALESCE(t.result, ''), t.priority, t.assigned_by, t.created_at, COALESCE(t.completed_at, '')
        FROM tasks t JOIN sessions s ON s.id = t.session_id
        WHERE s.meeting_id = ?
        ORDER BY s.started_at DESC, t.created_at ASC`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var (
			rec                  TaskRecord
			createdAt, completed string
		)
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.MeetingID, &rec.AgentType,
			&rec.Description, &rec.Status, &rec.Result, &rec.Priority, &rec.AssignedBy,
			&createdAt, &completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		rec.CreatedAt = parseTime(createdAt)
		if completed != "" {
			t := parseTime(completed)
			rec.CompletedAt = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
