package facilitation

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a facilitation session.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusActive   Status = "active"
	StatusEnded    Status = "ended"
)

// Mode selects the intervention policy applied to finalized segments.
type Mode string

const (
	// ModeObserver records findings but never emits interventions.
	ModeObserver Mode = "observer"
	// ModeEnforcer emits edge-triggered timebox interventions.
	ModeEnforcer Mode = "enforcer"
	// ModeHardcore escalates enforcer severities and adds immediate
	// interventions on rambling signals.
	ModeHardcore Mode = "hardcore"
)

// ParseMode maps a wire string to a Mode, falling back to the given default.
func ParseMode(value string, fallback Mode) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeObserver:
		return ModeObserver
	case ModeEnforcer:
		return ModeEnforcer
	case ModeHardcore:
		return ModeHardcore
	default:
		return fallback
	}
}

// Severity grades an intervention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Intervention type identifiers.
const (
	InterventionApproaching = "timebox_approaching"
	InterventionExceeded    = "timebox_exceeded"
	InterventionRambling    = "rambling"
	InterventionSystemError = "system_error"
)

// SpeakerTimer tracks cumulative speaking time for one participant. Seconds
// never decrement within a continuous accounting period.
type SpeakerTimer struct {
	Speaker            string  `json:"speaker"`
	AccumulatedSeconds float64 `json:"accumulatedSeconds"`
	LimitSeconds       float64 `json:"limitSeconds"`
}

// Intervention is an append-only facilitation notice. Immutable once created.
type Intervention struct {
	ID        string
	Type      string
	Severity  Severity
	Message   string
	Speaker   string
	Category  string
	Timestamp time.Time
}

// interventionWire is the JSON form of an Intervention. Timestamps travel as
// Unix milliseconds on every surface that carries interventions, matching
// the scrum_intervention event.
type interventionWire struct {
	ID        string   `json:"id"`
	Type      string   `json:"interventionType"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Speaker   string   `json:"speaker,omitempty"`
	Category  string   `json:"category,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

func (i Intervention) MarshalJSON() ([]byte, error) {
	return json.Marshal(interventionWire{
		ID:        i.ID,
		Type:      i.Type,
		Severity:  i.Severity,
		Message:   i.Message,
		Speaker:   i.Speaker,
		Category:  i.Category,
		Timestamp: i.Timestamp.UnixMilli(),
	})
}

func (i *Intervention) UnmarshalJSON(data []byte) error {
	var wire interventionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*i = Intervention{
		ID:        wire.ID,
		Type:      wire.Type,
		Severity:  wire.Severity,
		Message:   wire.Message,
		Speaker:   wire.Speaker,
		Category:  wire.Category,
		Timestamp: time.UnixMilli(wire.Timestamp).UTC(),
	}
	return nil
}

// BlockerStatus tracks whether a blocker is still in the way.
type BlockerStatus string

const (
	BlockerActive   BlockerStatus = "active"
	BlockerResolved BlockerStatus = "resolved"
)

// Blocker is an impediment surfaced from meeting content.
type Blocker struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Owner       string        `json:"owner"`
	Severity    Severity      `json:"severity"`
	Status      BlockerStatus `json:"status"`
}

// ActionStatus tracks the lifecycle of an action item.
type ActionStatus string

const (
	ActionOpen       ActionStatus = "open"
	ActionInProgress ActionStatus = "in_progress"
	ActionDone       ActionStatus = "done"
	ActionBlocked    ActionStatus = "blocked"
)

// ActionItem is follow-up work surfaced from meeting content. Unlike
// interventions it stays editable (status, owner) after the session ends.
type ActionItem struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Owner       string       `json:"owner"`
	Deadline    string       `json:"deadline,omitempty"`
	Status      ActionStatus `json:"status"`
	Priority    string       `json:"priority"`
}

// Settings holds the mutable configuration of an active session.
type Settings struct {
	Mode           Mode
	TimeboxSeconds int
	SprintGoal     string
}

// Summary is the read-only record produced when a session stops.
type Summary struct {
	SessionID         string             `json:"sessionId"`
	Mode              Mode               `json:"mode"`
	SprintGoal        string             `json:"sprintGoal,omitempty"`
	StartedAt         time.Time          `json:"startedAt"`
	EndedAt           time.Time          `json:"endedAt"`
	InterventionCount int                `json:"interventionCount"`
	BlockerCount      int                `json:"blockerCount"`
	ActionCount       int                `json:"actionCount"`
	SpeakerSeconds    map[string]float64 `json:"speakerSeconds"`
	Interventions     []Intervention     `json:"interventions"`
	Blockers          []Blocker          `json:"blockers"`
	Actions           []ActionItem       `json:"actions"`
}

func normalizeSeverity(value string, fallback Severity) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(value))) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityHigh:
		return SeverityHigh
	case SeverityMedium:
		return SeverityMedium
	case SeverityLow:
		return SeverityLow
	case SeverityInfo:
		return SeverityInfo
	default:
		return fallback
	}
}

func normalizePriority(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "low":
		return "low"
	case "high":
		return "high"
	default:
		return "medium"
	}
}
