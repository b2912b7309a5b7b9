package facilitation

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"eva/internal/config"
	"eva/internal/logging"
	"eva/internal/protocol"
	"eva/internal/transcript"
)

// ErrSessionActive is returned when a start command arrives for a meeting
// that already has an active facilitation session.
var ErrSessionActive = errors.New("facilitation: session already active")

// ErrNoSession is returned when a command requires an active session.
var ErrNoSession = errors.New("facilitation: no active session")

// Threshold kinds used for edge-triggered intervention flags.
const (
	thresholdApproaching = "approaching"
	thresholdExceeded    = "exceeded"
)

// Engine is the per-meeting scrum master state machine. It is not safe for
// concurrent use: all calls must happen on the owning meeting's serial lane.
type Engine struct {
	logger   *slog.Logger
	defaults config.Facilitation

	now   func() time.Time
	newID func() string

	status    Status
	sessionID string
	epoch     uint64
	settings  Settings
	startedAt time.Time

	timers      map[string]*SpeakerTimer
	fired       map[string]map[string]bool
	lastFinalMs int64
	lastSpeaker string

	interventions []Intervention
	blockers      []Blocker
	actions       []ActionItem
}

// New constructs an inactive engine with the given defaults.
func New(defaults config.Facilitation, logger *slog.Logger) *Engine {
	return &Engine{
		logger:   logging.NewComponentLogger(logger, "facilitation"),
		defaults: defaults,
		now:      time.Now,
		newID:    uuid.NewString,
		status:   StatusInactive,
	}
}

// WithClock overrides the engine's time source (used in tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	if now != nil {
		e.now = now
	}
	return e
}

// Active reports whether a session is running.
func (e *Engine) Active() bool { return e.status == StatusActive }

// Epoch identifies the current session generation. Classification results
// carry the epoch they were requested under; results from an older epoch are
// discarded.
func (e *Engine) Epoch() uint64 { return e.epoch }

// SessionID returns the active session's identifier, or "".
func (e *Engine) SessionID() string {
	if e.status != StatusActive {
		return ""
	}
	return e.sessionID
}

// Settings returns the active session configuration.
func (e *Engine) Settings() Settings { return e.settings }

// Start activates a new session. Mode and timebox fall back to configured
// defaults when the client omits them.
func (e *Engine) Start(mode string, timeboxMinutes int, sprintGoal string) ([]any, error) {
	if e.status == StatusActive {
		return nil, ErrSessionActive
	}
	if timeboxMinutes <= 0 {
		timeboxMinutes = e.defaults.DefaultTimeboxMinutes
	}
	e.status = StatusActive
	e.sessionID = e.newID()
	e.epoch++
	e.settings = Settings{
		Mode:           ParseMode(mode, Mode(e.defaults.DefaultMode)),
		TimeboxSeconds: timeboxMinutes * 60,
		SprintGoal:     sprintGoal,
	}
	e.startedAt = e.now()
	e.timers = make(map[string]*SpeakerTimer)
	e.fired = make(map[string]map[string]bool)
	e.lastFinalMs = 0
	e.lastSpeaker = ""
	e.interventions = nil
	e.blockers = nil
	e.actions = nil

	e.logger.Info("facilitation session started",
		logging.String(logging.FieldSessionID, e.sessionID),
		logging.String("mode", string(e.settings.Mode)),
		logging.Int("timebox_seconds", e.settings.TimeboxSeconds))

	return []any{protocol.SessionStarted{Type: protocol.TypeScrumSessionStarted, SessionID: e.sessionID}}, nil
}

// Stop ends the active session and produces its read-only summary. The live
// state is discarded; history persistence is the caller's responsibility.
func (e *Engine) Stop() (Summary, []any, error) {
	if e.status != StatusActive {
		return Summary{}, nil, ErrNoSession
	}

	speakerSeconds := make(map[string]float64, len(e.timers))
	for speaker, timer := range e.timers {
		speakerSeconds[speaker] = timer.AccumulatedSeconds
	}
	summary := Summary{
		SessionID:         e.sessionID,
		Mode:              e.settings.Mode,
		SprintGoal:        e.settings.SprintGoal,
		StartedAt:         e.startedAt,
		EndedAt:           e.now(),
		InterventionCount: len(e.interventions),
		BlockerCount:      len(e.blockers),
		ActionCount:       len(e.actions),
		SpeakerSeconds:    speakerSeconds,
		Interventions:     append([]Intervention(nil), e.interventions...),
		Blockers:          append([]Blocker(nil), e.blockers...),
		Actions:           append([]ActionItem(nil), e.actions...),
	}

	e.status = StatusInactive
	e.epoch++
	e.timers = nil
	e.fired = nil
	e.interventions = nil
	e.blockers = nil
	e.actions = nil

	e.logger.Info("facilitation session ended",
		logging.String(logging.FieldSessionID, summary.SessionID),
		logging.Int("interventions", summary.InterventionCount),
		logging.Int("blockers", summary.BlockerCount),
		logging.Int("actions", summary.ActionCount))

	ended := protocol.SessionEnded{
		Type:    protocol.TypeScrumSessionEnded,
		Summary: protocol.Marshal(summary),
	}
	return summary, []any{ended}, nil
}

// UpdateConfig mutates the session in place; the change affects subsequent
// policy evaluations only and never already-emitted interventions.
func (e *Engine) UpdateConfig(mode string, timeboxMinutes int) ([]any, error) {
	if e.status != StatusActive {
		return nil, ErrNoSession
	}
	if mode != "" {
		e.settings.Mode = ParseMode(mode, e.settings.Mode)
	}
	if timeboxMinutes > 0 {
		e.settings.TimeboxSeconds = timeboxMinutes * 60
	}
	updated := protocol.ConfigUpdated{
		Type: protocol.TypeScrumConfigUpdated,
		Config: protocol.SessionConfig{
			Mode:           string(e.settings.Mode),
			TimeboxMinutes: e.settings.TimeboxSeconds / 60,
			SprintGoal:     e.settings.SprintGoal,
		},
	}
	return []any{updated}, nil
}

// SetSprintGoal replaces the session's sprint goal.
func (e *Engine) SetSprintGoal(goal string) ([]any, error) {
	if e.status != StatusActive {
		return nil, ErrNoSession
	}
	e.settings.SprintGoal = goal
	return []any{protocol.SprintGoalSet{Type: protocol.TypeScrumSprintGoalSet, Goal: goal}}, nil
}

// HandleSegment applies one finalized segment: it accumulates the speaker's
// timer and evaluates the mode policy. Partial segments are rejected here;
// the hub must not route them in.
func (e *Engine) HandleSegment(seg transcript.Segment) []any {
	if e.status != StatusActive || !seg.IsFinal {
		return nil
	}

	seconds := transcript.AttributeSeconds(seg, e.lastFinalMs, e.defaults.MaxSegmentSeconds)
	e.lastFinalMs = seg.TimestampMs

	timer, ok := e.timers[seg.Speaker]
	if !ok {
		timer = &SpeakerTimer{Speaker: seg.Speaker}
		e.timers[seg.Speaker] = timer
	}
	if e.defaults.SpeakerAccounting == "turn" && e.lastSpeaker != "" && e.lastSpeaker != seg.Speaker {
		timer.AccumulatedSeconds = 0
		delete(e.fired, seg.Speaker)
	}
	e.lastSpeaker = seg.Speaker
	timer.AccumulatedSeconds += seconds
	timer.LimitSeconds = float64(e.settings.TimeboxSeconds)

	return e.evaluatePolicy(timer)
}

func (e *Engine) evaluatePolicy(timer *SpeakerTimer) []any {
	if e.settings.Mode == ModeObserver || timer.LimitSeconds <= 0 {
		return nil
	}

	warnRatio := float64(e.defaults.WarnThresholdPercent) / 100.0
	ratio := timer.AccumulatedSeconds / timer.LimitSeconds

	var events []any
	if fired := e.checkThreshold(timer, thresholdExceeded, ratio >= 1.0); fired != nil {
		events = append(events, *fired)
	} else if fired := e.checkThreshold(timer, thresholdApproaching, ratio >= warnRatio && ratio < 1.0); fired != nil {
		events = append(events, *fired)
	}
	return events
}

// checkThreshold implements the edge trigger: a threshold fires at most once
// per speaker per continuous over-limit period. Dropping below the threshold
// (timer reset or timebox raised) re-arms it.
func (e *Engine) checkThreshold(timer *SpeakerTimer, kind string, over bool) *protocol.Intervention {
	flags, ok := e.fired[timer.Speaker]
	if !ok {
		flags = make(map[string]bool)
		e.fired[timer.Speaker] = flags
	}
	if !over {
		flags[kind] = false
		return nil
	}
	if flags[kind] {
		return nil
	}
	flags[kind] = true

	var (
		interventionType string
		severity         Severity
		message          string
	)
	switch kind {
	case thresholdExceeded:
		interventionType = InterventionExceeded
		severity = SeverityHigh
		if e.settings.Mode == ModeHardcore {
			severity = SeverityCritical
		}
		message = fmt.Sprintf("%s has exceeded the timebox (%.0fs of %.0fs)",
			timer.Speaker, timer.AccumulatedSeconds, timer.LimitSeconds)
	default:
		interventionType = InterventionApproaching
		severity = SeverityMedium
		if e.settings.Mode == ModeHardcore {
			severity = SeverityHigh
		}
		message = fmt.Sprintf("%s is approaching the timebox (%.0fs of %.0fs)",
			timer.Speaker, timer.AccumulatedSeconds, timer.LimitSeconds)
	}

	intervention := e.appendIntervention(interventionType, severity, message, timer.Speaker, "timebox")
	event := interventionEvent(intervention)
	return &event
}

// ApplyFindings applies an asynchronous classification result. Results from
// a stale epoch (session stopped or restarted meanwhile) are discarded.
func (e *Engine) ApplyFindings(epoch uint64, speaker string, findings Findings) []any {
	if e.status != StatusActive || epoch != e.epoch {
		return nil
	}

	for _, b := range findings.Blockers {
		owner := b.Owner
		if owner == "" {
			owner = speaker
		}
		e.blockers = append(e.blockers, Blocker{
			ID:          e.newID(),
			Description: b.Description,
			Owner:       owner,
			Severity:    normalizeSeverity(b.Severity, SeverityMedium),
			Status:      BlockerActive,
		})
	}
	for _, a := range findings.Actions {
		owner := a.Owner
		if owner == "" {
			owner = speaker
		}
		e.actions = append(e.actions, ActionItem{
			ID:          e.newID(),
			Description: a.Description,
			Owner:       owner,
			Deadline:    a.Deadline,
			Status:      ActionOpen,
			Priority:    normalizePriority(a.Priority),
		})
	}

	var events []any
	if findings.Rambling && e.settings.Mode == ModeHardcore {
		intervention := e.appendIntervention(
			InterventionRambling,
			SeverityCritical,
			fmt.Sprintf("%s is drifting off the sprint goal", speaker),
			speaker,
			"content",
		)
		events = append(events, interventionEvent(intervention))
	}
	if len(findings.Blockers) > 0 || len(findings.Actions) > 0 {
		events = append(events, e.Snapshot())
	}
	return events
}

// RecordClassifierError surfaces a failed classification as a medium
// system_error notice; segment processing continues. Errors from a stale
// epoch (session stopped or restarted meanwhile) are discarded, like
// ApplyFindings results.
func (e *Engine) RecordClassifierError(epoch uint64, err error) []any {
	if e.status != StatusActive || epoch != e.epoch {
		return nil
	}
	e.logger.Warn("classification failed", logging.Error(err))
	intervention := e.appendIntervention(
		InterventionSystemError,
		SeverityMedium,
		"Content analysis temporarily unavailable",
		"",
		"system",
	)
	return []any{
		interventionEvent(intervention),
		protocol.ErrorMessage{Type: protocol.TypeScrumError, Content: "classification failed"},
	}
}

// Snapshot returns a full, self-consistent scrum_state payload. This is the
// only recovery path for reconnecting clients.
func (e *Engine) Snapshot() protocol.ScrumState {
	state := protocol.ScrumState{
		Type:          protocol.TypeScrumState,
		Active:        e.status == StatusActive,
		SpeakerTimes:  map[string]float64{},
		Interventions: protocol.Marshal(emptyIfNil(e.interventions)),
		Blockers:      protocol.Marshal(emptyIfNil(e.blockers)),
		Actions:       protocol.Marshal(emptyIfNil(e.actions)),
	}
	if e.status == StatusActive {
		state.Mode = string(e.settings.Mode)
		state.SprintGoal = e.settings.SprintGoal
		for speaker, timer := range e.timers {
			state.SpeakerTimes[speaker] = timer.AccumulatedSeconds
		}
	}
	return state
}

func (e *Engine) appendIntervention(interventionType string, severity Severity, message, speaker, category string) Intervention {
	intervention := Intervention{
		ID:        e.newID(),
		Type:      interventionType,
		Severity:  severity,
		Message:   message,
		Speaker:   speaker,
		Category:  category,
		Timestamp: e.now(),
	}
	e.interventions = append(e.interventions, intervention)
	return intervention
}

func interventionEvent(i Intervention) protocol.Intervention {
	return protocol.Intervention{
		Type:             protocol.TypeScrumIntervention,
		ID:               i.ID,
		InterventionType: i.Type,
		Severity:         string(i.Severity),
		Message:          i.Message,
		Speaker:          i.Speaker,
		Category:         i.Category,
		Timestamp:        i.Timestamp.UnixMilli(),
	}
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
