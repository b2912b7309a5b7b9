package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"eva/internal/config"
	"eva/internal/facilitation"
	"eva/internal/ledger"
	"eva/internal/llm"
	"eva/internal/logging"
	"eva/internal/team"
)

// Classifier analyzes finalized transcript content for blockers, action
// items, and rambling signals.
type Classifier interface {
	Classify(ctx context.Context, segmentText, sprintGoal string) (facilitation.Findings, error)
}

// Broadcaster fans a payload out to every client attached to a meeting.
// The hub implements it.
type Broadcaster interface {
	Broadcast(meetingID string, payload any)
}

// Sender delivers a payload to a single client.
type Sender interface {
	Send(payload any)
}

// Manager owns the set of live meetings. Each meeting runs a serial lane;
// the manager only creates, hands out, and retires meetings.
type Manager struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *ledger.Store

	classifier   Classifier
	orchestrator team.Orchestrator
	worker       team.Worker
	broadcaster  Broadcaster

	llmTimeout time.Duration

	mu       sync.Mutex
	meetings map[string]*Meeting
	closed   bool

	reaperDone chan struct{}
	reaperStop chan struct{}
}

// NewManager wires the manager's LLM roles from one shared client.
func NewManager(cfg *config.Config, logger *slog.Logger, store *ledger.Store, client *llm.Client) *Manager {
	mgr := &Manager{
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "session"),
		store:        store,
		classifier:   facilitation.NewLLMClassifier(client),
		orchestrator: team.NewLLMOrchestrator(client),
		worker:       team.NewLLMWorker(client),
		llmTimeout:   time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		meetings:     make(map[string]*Meeting),
		reaperDone:   make(chan struct{}),
		reaperStop:   make(chan struct{}),
	}
	go mgr.reap()
	return mgr
}

// SetBroadcaster attaches the hub. Must be called before any client traffic.
func (mgr *Manager) SetBroadcaster(b Broadcaster) { mgr.broadcaster = b }

// Attach returns the meeting for meetingID, creating it on first use, and
// records one more attached client. Returns nil after Close.
func (mgr *Manager) Attach(meetingID string) *Meeting {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	if mgr.closed {
		return nil
	}
	meeting, ok := mgr.meetings[meetingID]
	if !ok {
		meeting = newMeeting(meetingID, mgr)
		mgr.meetings[meetingID] = meeting
		go meeting.run()
		mgr.logger.Info("meeting created", logging.String(logging.FieldMeetingID, meetingID))
	}
	meeting.refs++
	meeting.touch()
	return meeting
}

// Detach records that one client left the meeting. Idle meetings are retired
// later by the reaper, never synchronously.
func (mgr *Manager) Detach(meeting *Meeting) {
	if meeting == nil {
		return
	}
	mgr.mu.Lock()
	if meeting.refs > 0 {
		meeting.refs--
	}
	meeting.touch()
	mgr.mu.Unlock()
}

// MeetingIDs lists the currently live meetings.
func (mgr *Manager) MeetingIDs() []string {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	ids := make([]string, 0, len(mgr.meetings))
	for id := range mgr.meetings {
		ids = append(ids, id)
	}
	return ids
}

// Close retires every meeting and stops the reaper. Active sessions are
// stopped and persisted so daemon shutdown loses nothing.
func (mgr *Manager) Close() {
	mgr.mu.Lock()
	if mgr.closed {
		mgr.mu.Unlock()
		return
	}
	mgr.closed = true
	meetings := make([]*Meeting, 0, len(mgr.meetings))
	for _, meeting := range mgr.meetings {
		meetings = append(meetings, meeting)
	}
	mgr.meetings = make(map[string]*Meeting)
	mgr.mu.Unlock()

	close(mgr.reaperStop)
	<-mgr.reaperDone

	for _, meeting := range meetings {
		meeting.shutdown()
	}
}

func (mgr *Manager) reap() {
	defer close(mgr.reaperDone)
	idle := time.Duration(mgr.cfg.Session.IdleTimeoutSeconds) * time.Second
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	interval := idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-mgr.reaperStop:
			return
		case <-ticker.C:
			mgr.sweep(idle)
		}
	}
}

func (mgr *Manager) sweep(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	mgr.mu.Lock()
	var candidates []*Meeting
	for _, meeting := range mgr.meetings {
		if meeting.refs == 0 && meeting.lastActive().Before(cutoff) {
			candidates = append(candidates, meeting)
		}
	}
	mgr.mu.Unlock()

	for _, meeting := range candidates {
		meeting.submit(func() {
			// Re-checked on the lane: a session may have started since
			// the candidate list was built.
			if meeting.engine.Active() || meeting.coord.Active() {
				return
			}
			mgr.retire(meeting)
		})
	}
}

func (mgr *Manager) retire(meeting *Meeting) {
	mgr.mu.Lock()
	if meeting.refs > 0 || mgr.closed {
		mgr.mu.Unlock()
		return
	}
	delete(mgr.meetings, meeting.id)
	mgr.mu.Unlock()
	meeting.stop()
	mgr.logger.Info("meeting retired", logging.String(logging.FieldMeetingID, meeting.id))
}

func (mgr *Manager) broadcast(meetingID string, payloads []any) {
	if mgr.broadcaster == nil {
		return
	}
	for _, payload := range payloads {
		mgr.broadcaster.Broadcast(meetingID, payload)
	}
}
