package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"eva/internal/facilitation"
	"eva/internal/logging"
	"eva/internal/protocol"
	"eva/internal/team"
	"eva/internal/transcript"
)

// Meeting is one meeting's serial processing lane. Every command from every
// client attached to the meeting runs on a single goroutine, so the
// facilitation engine and team coordinator never need locks. Asynchronous
// LLM results re-enter the lane tagged with the epoch they were started
// under and are discarded when stale.
type Meeting struct {
	id     string
	mgr    *Manager
	logger *slog.Logger

	lane     chan func()
	quit     chan struct{}
	stopOnce sync.Once

	engine *facilitation.Engine
	coord  *team.Coordinator
	newID  func() string

	teamSessionID string
	teamStartedAt time.Time

	refs   int
	active atomic.Int64
}

func newMeeting(id string, mgr *Manager) *Meeting {
	buffer := mgr.cfg.Session.LaneBuffer
	if buffer <= 0 {
		buffer = 64
	}
	logger := mgr.logger.With(logging.String(logging.FieldMeetingID, id))
	return &Meeting{
		id:     id,
		mgr:    mgr,
		logger: logger,
		lane:   make(chan func(), buffer),
		quit:   make(chan struct{}),
		engine: facilitation.New(mgr.cfg.Facilitation, logger),
		coord:  team.NewCoordinator(mgr.cfg.Team, logger),
		newID:  uuid.NewString,
	}
}

// ID returns the meeting identifier.
func (m *Meeting) ID() string { return m.id }

func (m *Meeting) run() {
	for {
		select {
		case fn := <-m.lane:
			fn()
		case <-m.quit:
			return
		}
	}
}

// submit queues fn onto the lane. It reports false once the meeting has
// been retired.
func (m *Meeting) submit(fn func()) bool {
	select {
	case <-m.quit:
		return false
	default:
	}
	select {
	case m.lane <- fn:
		return true
	case <-m.quit:
		return false
	}
}

func (m *Meeting) stop() {
	m.stopOnce.Do(func() { close(m.quit) })
}

// shutdown stops any active sessions, persists them, and retires the lane.
// Used on daemon shutdown so nothing in flight is lost.
func (m *Meeting) shutdown() {
	ack := make(chan struct{})
	if m.submit(func() {
		m.endActiveSessions()
		close(ack)
	}) {
		<-ack
	}
	m.stop()
}

func (m *Meeting) endActiveSessions() {
	if m.engine.Active() {
		if summary, _, err := m.engine.Stop(); err == nil {
			m.persistScrum(summary)
		}
	}
	if m.coord.Active() {
		if report, _, err := m.coord.Stop(); err == nil {
			m.persistTeam(report)
		}
	}
}

func (m *Meeting) touch() {
	m.active.Store(time.Now().UnixNano())
}

func (m *Meeting) lastActive() time.Time {
	return time.Unix(0, m.active.Load())
}

// HandleMessage routes one raw client message onto the lane. Messages with
// a missing or unknown type are ignored per the protocol contract.
func (m *Meeting) HandleMessage(data []byte, client Sender) {
	m.touch()
	msgType := protocol.DecodeType(data)
	if msgType == "" || protocol.Namespace(msgType) == "" {
		return
	}
	m.submit(func() { m.dispatch(msgType, data, client) })
}

// SendState delivers both snapshots to one client, typically on attach.
func (m *Meeting) SendState(client Sender) {
	m.touch()
	m.submit(func() {
		client.Send(m.engine.Snapshot())
		client.Send(m.coord.Snapshot())
	})
}

func (m *Meeting) dispatch(msgType string, data []byte, client Sender) {
	switch msgType {
	case protocol.TypeScrumStartSession:
		var payload protocol.StartSession
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		events, err := m.engine.Start(payload.Config.Mode, payload.Config.TimeboxMinutes, payload.Config.SprintGoal)
		if err != nil {
			m.sendError(client, protocol.TypeScrumError, "a facilitation session is already active")
			return
		}
		m.mgr.broadcast(m.id, events)

	case protocol.TypeScrumStopSession:
		summary, events, err := m.engine.Stop()
		if err != nil {
			m.sendError(client, protocol.TypeScrumError, "no active facilitation session")
			return
		}
		m.persistScrum(summary)
		m.mgr.broadcast(m.id, events)

	case protocol.TypeScrumTranscript:
		var payload protocol.Transcript
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		m.handleTranscript(payload)

	case protocol.TypeScrumUpdateConfig:
		var payload protocol.UpdateConfig
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		events, err := m.engine.UpdateConfig(payload.Config.Mode, payload.Config.TimeboxMinutes)
		if err != nil {
			m.sendError(client, protocol.TypeScrumError, "no active facilitation session")
			return
		}
		m.mgr.broadcast(m.id, events)

	case protocol.TypeScrumSetSprintGoal:
		var payload protocol.SetSprintGoal
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		events, err := m.engine.SetSprintGoal(payload.Goal)
		if err != nil {
			m.sendError(client, protocol.TypeScrumError, "no active facilitation session")
			return
		}
		m.mgr.broadcast(m.id, events)

	case protocol.TypeScrumGetState:
		client.Send(m.engine.Snapshot())

	case protocol.TypeTeamStart:
		var payload protocol.TeamStart
		if err := json.Unmarshal(data, &payload); err != nil {
			return
		}
		events, err := m.coord.Start(payload.Agents)
		if err != nil {
			m.sendError(client, protocol.TypeTeamError, "a team session is already active")
			return
		}
		m.teamSessionID = m.newID()
		m.teamStartedAt = time.Now()
		m.mgr.broadcast(m.id, events)

	case protocol.TypeTeamStop:
		report, events, err := m.coord.Stop()
		if err != nil {
			m.sendError(client, protocol.TypeTeamError, "no active team session")
			return
		}
		m.persistTeam(report)
		m.mgr.broadcast(m.id, events)

	case protocol.TypeTeamGetState:
		client.Send(m.coord.Snapshot())

	case protocol.TypeTeamGetTasks:
		client.Send(m.coord.TasksSnapshot())
	}
}

func (m *Meeting) handleTranscript(payload protocol.Transcript) {
	seg, err := transcript.Normalize(payload.Speaker, payload.Text, payload.Timestamp, payload.IsFinal)
	if err != nil {
		return
	}

	if !seg.IsFinal {
		m.mgr.broadcast(m.id, []any{protocol.TranscriptEcho{
			Type:      protocol.TypeScrumTranscriptEcho,
			Speaker:   seg.Speaker,
			Text:      seg.Text,
			Timestamp: seg.TimestampMs,
			IsFinal:   false,
		}})
		return
	}

	if m.engine.Active() {
		m.mgr.broadcast(m.id, m.engine.HandleSegment(seg))
		epoch := m.engine.Epoch()
		goal := m.engine.Settings().SprintGoal
		go m.classify(epoch, seg.Speaker, seg.Text, goal)
	}
	if m.coord.Active() {
		go m.orchestrate(m.coord.Epoch(), seg.Text)
	}
}

func (m *Meeting) classify(epoch uint64, speaker, text, goal string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.mgr.llmTimeout)
	defer cancel()
	findings, err := m.mgr.classifier.Classify(ctx, text, goal)
	m.submit(func() {
		if err != nil {
			m.mgr.broadcast(m.id, m.engine.RecordClassifierError(epoch, err))
			return
		}
		m.mgr.broadcast(m.id, m.engine.ApplyFindings(epoch, speaker, findings))
	})
}

func (m *Meeting) orchestrate(epoch uint64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.mgr.llmTimeout)
	defer cancel()
	specs, err := m.mgr.orchestrator.ClassifyContent(ctx, text)
	m.submit(func() {
		if err != nil {
			m.logger.Warn("orchestrator classification failed", logging.Error(err))
			return
		}
		dispatch, events := m.coord.ApplyClassification(epoch, specs)
		m.mgr.broadcast(m.id, events)
		for _, task := range dispatch {
			m.launchTask(epoch, task)
		}
	})
}

// launchTask runs on the lane: it marks the task in progress and hands it
// to a worker goroutine.
func (m *Meeting) launchTask(epoch uint64, task team.Task) {
	if events, err := m.coord.StartTask(epoch, task.ID); err == nil {
		m.mgr.broadcast(m.id, events)
	}
	go m.executeTask(epoch, task)
}

func (m *Meeting) executeTask(epoch uint64, task team.Task) {
	ctx, cancel := context.WithTimeout(context.Background(), m.mgr.llmTimeout)
	defer cancel()
	result, err := m.mgr.worker.Execute(ctx, task)
	m.submit(func() {
		var (
			next   []team.Task
			events []any
			opErr  error
		)
		if err != nil {
			next, events, opErr = m.coord.FailTask(epoch, task.ID, err.Error())
		} else {
			next, events, opErr = m.coord.CompleteTask(epoch, task.ID, result)
		}
		if opErr != nil {
			return
		}
		m.mgr.broadcast(m.id, events)
		for _, queued := range next {
			m.launchTask(epoch, queued)
		}
	})
}

func (m *Meeting) persistScrum(summary facilitation.Summary) {
	if m.mgr.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.mgr.store.SaveScrumSession(ctx, m.id, summary); err != nil {
		m.logger.Error("persist facilitation session failed",
			logging.String(logging.FieldSessionID, summary.SessionID),
			logging.Error(err))
	}
}

func (m *Meeting) persistTeam(report string) {
	if m.mgr.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := m.mgr.store.SaveTeamSession(ctx, m.teamSessionID, m.id, report,
		m.teamStartedAt, time.Now(), m.coord.Tasks(), m.coord.Messages())
	if err != nil {
		m.logger.Error("persist team session failed",
			logging.String(logging.FieldSessionID, m.teamSessionID),
			logging.Error(err))
	}
}

func (m *Meeting) sendError(client Sender, errType, content string) {
	if client == nil {
		return
	}
	client.Send(protocol.ErrorMessage{Type: errType, Content: content})
}
