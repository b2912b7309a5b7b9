package protocol

import (
	"encoding/json"
	"strings"
)

// Client to server message types.
const (
	TypeScrumStartSession  = "scrum_start_session"
	TypeScrumStopSession   = "scrum_stop_session"
	TypeScrumTranscript    = "scrum_transcript"
	TypeScrumUpdateConfig  = "scrum_update_config"
	TypeScrumSetSprintGoal = "scrum_set_sprint_goal"
	TypeScrumGetState      = "scrum_get_state"
	TypeTeamStart          = "team_start"
	TypeTeamStop           = "team_stop"
	TypeTeamGetState       = "team_get_state"
	TypeTeamGetTasks       = "team_get_tasks"
)

// Server to client message types.
const (
	TypeScrumSessionStarted = "scrum_session_started"
	TypeScrumSessionEnded   = "scrum_session_ended"
	TypeScrumIntervention   = "scrum_intervention"
	TypeScrumConfigUpdated  = "scrum_config_updated"
	TypeScrumSprintGoalSet  = "scrum_sprint_goal_set"
	TypeScrumState          = "scrum_state"
	TypeScrumTranscriptEcho = "scrum_transcript_partial"
	TypeScrumError          = "scrum_error"
	TypeTeamStarted         = "team_started"
	TypeTeamStopped         = "team_stopped"
	TypeTeamStatus          = "team_status"
	TypeTeamTaskUpdate      = "team_task_update"
	TypeTeamAgentMessage    = "team_agent_message"
	TypeTeamState           = "team_state"
	TypeTeamTasks           = "team_tasks"
	TypeTeamError           = "team_error"
)

// Namespace prefixes used by the hub to route client commands.
const (
	PrefixScrum = "scrum_"
	PrefixTeam  = "team_"
)

// Envelope is the required outer shape of every wire message.
type Envelope struct {
	Type string `json:"type"`
}

// SessionConfig carries facilitation session settings on the wire.
type SessionConfig struct {
	Mode           string `json:"mode,omitempty"`
	TimeboxMinutes int    `json:"timeboxMinutes,omitempty"`
	SprintGoal     string `json:"sprintGoal,omitempty"`
}

// StartSession is the scrum_start_session payload.
type StartSession struct {
	Type   string        `json:"type"`
	Config SessionConfig `json:"config"`
}

// Transcript is the scrum_transcript payload.
type Transcript struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Speaker   string `json:"speaker"`
	Timestamp int64  `json:"timestamp"`
	IsFinal   bool   `json:"isFinal"`
}

// UpdateConfig is the scrum_update_config payload.
type UpdateConfig struct {
	Type   string        `json:"type"`
	Config SessionConfig `json:"config"`
}

// SetSprintGoal is the scrum_set_sprint_goal payload.
type SetSprintGoal struct {
	Type string `json:"type"`
	Goal string `json:"goal"`
}

// TeamStart is the team_start payload.
type TeamStart struct {
	Type   string   `json:"type"`
	Agents []string `json:"agents"`
}

// SessionStarted is the scrum_session_started payload.
type SessionStarted struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// SessionEnded is the scrum_session_ended payload.
type SessionEnded struct {
	Type    string          `json:"type"`
	Summary json.RawMessage `json:"summary,omitempty"`
}

// Intervention is the scrum_intervention payload.
type Intervention struct {
	Type             string `json:"type"`
	ID               string `json:"id"`
	InterventionType string `json:"interventionType"`
	Severity         string `json:"severity"`
	Message          string `json:"message"`
	Speaker          string `json:"speaker,omitempty"`
	Category         string `json:"category,omitempty"`
	Timestamp        int64  `json:"timestamp"`
}

// ConfigUpdated is the scrum_config_updated payload.
type ConfigUpdated struct {
	Type   string        `json:"type"`
	Config SessionConfig `json:"config"`
}

// SprintGoalSet is the scrum_sprint_goal_set payload.
type SprintGoalSet struct {
	Type string `json:"type"`
	Goal string `json:"goal"`
}

// ScrumState is the scrum_state snapshot payload.
type ScrumState struct {
	Type          string             `json:"type"`
	Active        bool               `json:"active"`
	Mode          string             `json:"mode,omitempty"`
	SprintGoal    string             `json:"sprintGoal,omitempty"`
	SpeakerTimes  map[string]float64 `json:"speakerTimes"`
	Interventions json.RawMessage    `json:"interventions"`
	Blockers      json.RawMessage    `json:"blockers"`
	Actions       json.RawMessage    `json:"actions"`
}

// ErrorMessage is the scrum_error / team_error payload.
type ErrorMessage struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// TranscriptEcho is the live-display fan-out of a partial segment.
type TranscriptEcho struct {
	Type      string `json:"type"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	IsFinal   bool   `json:"isFinal"`
}

// TeamStarted is the team_started payload.
type TeamStarted struct {
	Type   string   `json:"type"`
	Agents []string `json:"agents"`
}

// TeamStopped is the team_stopped payload.
type TeamStopped struct {
	Type   string `json:"type"`
	Report string `json:"report,omitempty"`
}

// TeamStatus is the team_status payload.
type TeamStatus struct {
	Type   string          `json:"type"`
	Status string          `json:"status"`
	Agents json.RawMessage `json:"agents"`
}

// TeamTaskUpdate is the team_task_update payload.
type TeamTaskUpdate struct {
	Type string          `json:"type"`
	Task json.RawMessage `json:"task"`
}

// TeamAgentMessage is the team_agent_message payload.
type TeamAgentMessage struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

// TeamState is the team_state snapshot payload.
type TeamState struct {
	Type     string          `json:"type"`
	IsActive bool            `json:"isActive"`
	Agents   json.RawMessage `json:"agents"`
}

// TeamTasks is the team_tasks payload.
type TeamTasks struct {
	Type  string          `json:"type"`
	Tasks json.RawMessage `json:"tasks"`
}

// DecodeType extracts the message type from a raw wire payload. A missing or
// malformed type yields an empty string; per the protocol contract that is
// ignored, not an error.
func DecodeType(data []byte) string {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return strings.TrimSpace(env.Type)
}

// Namespace reports which engine a client message type belongs to: "scrum",
// "team", or "" for unrecognized types.
func Namespace(messageType string) string {
	switch {
	case strings.HasPrefix(messageType, PrefixScrum):
		return "scrum"
	case strings.HasPrefix(messageType, PrefixTeam):
		return "team"
	default:
		return ""
	}
}

// Marshal encodes a server-to-client payload, returning nil on failure so
// callers can skip the broadcast rather than fail the lane.
func Marshal(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
