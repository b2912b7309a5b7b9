package ipc

import "eva/internal/ledger"

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents daemon runtime information.
type StatusResponse struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid"`
	Meetings     []string `json:"meetings"`
	DBPath       string   `json:"db_path"`
	LockPath     string   `json:"lock_path"`
	APIAddress   string   `json:"api_address"`
}

// SessionsRequest lists stored sessions, optionally scoped to one meeting.
type SessionsRequest struct {
	MeetingID string `json:"meeting_id"`
}

// SessionsResponse contains stored session history.
type SessionsResponse struct {
	Sessions []ledger.SessionRecord `json:"sessions"`
}

// TasksRequest lists stored agent tasks for a meeting.
type TasksRequest struct {
	MeetingID string `json:"meeting_id"`
}

// TasksResponse contains stored agent tasks.
type TasksResponse struct {
	Tasks []ledger.TaskRecord `json:"tasks"`
}

// ActionsRequest lists stored action items, optionally filtered by status.
type ActionsRequest struct {
	Status string `json:"status"`
}

// ActionsResponse contains stored action items.
type ActionsResponse struct {
	Actions []ledger.ActionRecord `json:"actions"`
}

// UpdateActionRequest edits a stored action item. Empty fields are left
// untouched.
type UpdateActionRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Owner  string `json:"owner"`
}

// UpdateActionResponse contains the edited action item.
type UpdateActionResponse struct {
	Action ledger.ActionRecord `json:"action"`
}

// StopRequest stops the daemon.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}
