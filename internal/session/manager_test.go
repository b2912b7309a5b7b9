package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"eva/internal/facilitation"
	"eva/internal/llm"
	"eva/internal/logging"
	"eva/internal/protocol"
	"eva/internal/team"
	"eva/internal/testsupport"
)

type recorder struct {
	mu       sync.Mutex
	payloads []any
}

func (r *recorder) Broadcast(meetingID string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

func (r *recorder) Send(payload any) {
	r.Broadcast("", payload)
}

func (r *recorder) typed(msgType string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, payload := range r.payloads {
		data := protocol.Marshal(payload)
		if protocol.DecodeType(data) == msgType {
			out = append(out, payload)
		}
	}
	return out
}

type fakeClassifier struct {
	findings facilitation.Findings
	err      error
}

func (f *fakeClassifier) Classify(ctx context.Context, segmentText, sprintGoal string) (facilitation.Findings, error) {
	return f.findings, f.err
}

type fakeOrchestrator struct {
	specs []team.TaskSpec
}

func (f *fakeOrchestrator) ClassifyContent(ctx context.Context, content string) ([]team.TaskSpec, error) {
	return f.specs, nil
}

type fakeWorker struct {
	result string
	err    error
}

func (f *fakeWorker) Execute(ctx context.Context, task team.Task) (string, error) {
	return f.result, f.err
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestManager(t *testing.T) (*Manager, *recorder) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	mgr := NewManager(cfg, logging.NewNop(), store, llm.NewClient(cfg.LLM))
	mgr.classifier = &fakeClassifier{}
	mgr.orchestrator = &fakeOrchestrator{}
	mgr.worker = &fakeWorker{result: `{"result":"done"}`}
	rec := &recorder{}
	mgr.SetBroadcaster(rec)
	t.Cleanup(mgr.Close)
	return mgr, rec
}

func send(t *testing.T, meeting *Meeting, client Sender, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	meeting.HandleMessage(data, client)
}

func TestAttachReusesMeetingLane(t *testing.T) {
	mgr, _ := newTestManager(t)

	first := mgr.Attach("standup-1")
	second := mgr.Attach("standup-1")
	other := mgr.Attach("standup-2")

	if first != second {
		t.Fatal("same meeting ID produced different lanes")
	}
	if first == other {
		t.Fatal("different meeting IDs share a lane")
	}
	if ids := mgr.MeetingIDs(); len(ids) != 2 {
		t.Fatalf("live meetings = %v, want 2", ids)
	}
}

func TestStartStopFacilitationSession(t *testing.T) {
	mgr, rec := newTestManager(t)
	meeting := mgr.Attach("standup-1")
	client := &recorder{}

	send(t, meeting, client, protocol.StartSession{
		Type:   protocol.TypeScrumStartSession,
		Config: protocol.SessionConfig{Mode: "enforcer", TimeboxMinutes: 2},
	})
	waitFor(t, "session started broadcast", func() bool {
		return len(rec.typed(protocol.TypeScrumSessionStarted)) == 1
	})

	send(t, meeting, client, protocol.Envelope{Type: protocol.TypeScrumStopSession})
	waitFor(t, "session ended broadcast", func() bool {
		return len(rec.typed(protocol.TypeScrumSessionEnded)) == 1
	})

	records, err := mgr.store.ListSessions(context.Background(), "standup-1")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("persisted %d sessions, want 1", len(records))
	}
}

func TestDoubleStartSendsErrorToRequester(t *testing.T) {
	mgr, rec := newTestManager(t)
	meeting := mgr.Attach("standup-1")
	client := &recorder{}

	start := protocol.StartSession{Type: protocol.TypeScrumStartSession}
	send(t, meeting, client, start)
	waitFor(t, "first start", func() bool {
		return len(rec.typed(protocol.TypeScrumSessionStarted)) == 1
	})

	send(t, meeting, client, start)
	waitFor(t, "error reply", func() bool {
		return len(client.typed(protocol.TypeScrumError)) == 1
	})
	if got := len(rec.typed(protocol.TypeScrumSessionStarted)); got != 1 {
		t.Fatalf("broadcast %d session_started events, want 1", got)
	}
}

func TestPartialSegmentsEchoWithoutAccounting(t *testing.T) {
	mgr, rec := newTestManager(t)
	meeting := mgr.Attach("standup-1")
	client := &recorder{}

	send(t, meeting, client, protocol.StartSession{Type: protocol.TypeScrumStartSession})
	send(t, meeting, client, protocol.Transcript{
		Type: protocol.TypeScrumTranscript, Speaker: "alice", Text: "so I was", Timestamp: 1000, IsFinal: false,
	})

	waitFor(t, "partial echo", func() bool {
		return len(rec.typed(protocol.TypeScrumTranscriptEcho)) == 1
	})
	echo := rec.typed(protocol.TypeScrumTranscriptEcho)[0].(protocol.TranscriptEcho)
	if echo.Speaker != "Alice" {
		t.Fatalf("echoed speaker = %q, want normalized Alice", echo.Speaker)
	}

	send(t, meeting, client, protocol.Envelope{Type: protocol.TypeScrumGetState})
	waitFor(t, "state reply", func() bool {
		return len(client.typed(protocol.TypeScrumState)) == 1
	})
	state := client.typed(protocol.TypeScrumState)[0].(protocol.ScrumState)
	if len(state.SpeakerTimes) != 0 {
		t.Fatalf("partial segment accrued speaking time: %v", state.SpeakerTimes)
	}
}

func TestClassifierFindingsReachSnapshot(t *testing.T) {
	mgr, rec := newTestManager(t)
	mgr.classifier = &fakeClassifier{findings: facilitation.Findings{
		Blockers: []facilitation.BlockerFinding{{Description: "CI is red", Severity: "high"}},
		Actions:  []facilitation.ActionFinding{{Description: "File a ticket", Priority: "high"}},
	}}
	meeting := mgr.Attach("standup-1")
	client := &recorder{}

	send(t, meeting, client, protocol.StartSession{Type: protocol.TypeScrumStartSession})
	send(t, meeting, client, protocol.Transcript{
		Type: protocol.TypeScrumTranscript, Speaker: "bob",
		Text: "the CI pipeline is completely red", Timestamp: 2000, IsFinal: true,
	})

	waitFor(t, "findings snapshot", func() bool {
		for _, payload := range rec.typed(protocol.TypeScrumState) {
			state := payload.(protocol.ScrumState)
			var blockers []facilitation.Blocker
			if err := json.Unmarshal(state.Blockers, &blockers); err == nil && len(blockers) == 1 {
				return true
			}
		}
		return false
	})
}

type gatedClassifier struct {
	release  chan struct{}
	returned chan struct{}
	err      error
}

func (g *gatedClassifier) Classify(ctx context.Context, segmentText, sprintGoal string) (facilitation.Findings, error) {
	<-g.release
	defer close(g.returned)
	return facilitation.Findings{}, g.err
}

func TestStaleClassifierErrorDoesNotPolluteNewSession(t *testing.T) {
	mgr, rec := newTestManager(t)
	gate := &gatedClassifier{
		release:  make(chan struct{}),
		returned: make(chan struct{}),
		err:      errors.New("capability unavailable"),
	}
	mgr.classifier = gate
	meeting := mgr.Attach("standup-1")
	client := &recorder{}

	send(t, meeting, client, protocol.StartSession{Type: protocol.TypeScrumStartSession})
	waitFor(t, "first session start", func() bool {
		return len(rec.typed(protocol.TypeScrumSessionStarted)) == 1
	})
	send(t, meeting, client, protocol.Transcript{
		Type: protocol.TypeScrumTranscript, Speaker: "alice",
		Text: "the deploy is stuck", Timestamp: 1000, IsFinal: true,
	})

	// Stop and restart while the classification is still in flight.
	send(t, meeting, client, protocol.Envelope{Type: protocol.TypeScrumStopSession})
	waitFor(t, "session end", func() bool {
		return len(rec.typed(protocol.TypeScrumSessionEnded)) == 1
	})
	send(t, meeting, client, protocol.StartSession{Type: protocol.TypeScrumStartSession})
	waitFor(t, "second session start", func() bool {
		return len(rec.typed(protocol.TypeScrumSessionStarted)) == 2
	})

	close(gate.release)
	<-gate.returned
	time.Sleep(50 * time.Millisecond)

	send(t, meeting, client, protocol.Envelope{Type: protocol.TypeScrumGetState})
	waitFor(t, "state reply", func() bool {
		return len(client.typed(protocol.TypeScrumState)) == 1
	})
	state := client.typed(protocol.TypeScrumState)[0].(protocol.ScrumState)
	if !state.Active {
		t.Fatal("new session should be active")
	}
	var interventions []facilitation.Intervention
	if err := json.Unmarshal(state.Interventions, &interventions); err != nil {
		t.Fatalf("decode interventions: %v", err)
	}
	if len(interventions) != 0 {
		t.Fatalf("stale classifier failure reached the new session: %+v", interventions)
	}
	if got := len(rec.typed(protocol.TypeScrumIntervention)); got != 0 {
		t.Fatalf("stale classifier failure broadcast %d interventions", got)
	}
}

func TestTeamRoundTrip(t *testing.T) {
	mgr, rec := newTestManager(t)
	mgr.orchestrator = &fakeOrchestrator{specs: []team.TaskSpec{
		{Agent: "sop", Description: "Document the fix", Priority: "high"},
	}}
	mgr.worker = &fakeWorker{result: "Runbook updated"}
	meeting := mgr.Attach("standup-1")
	client := &recorder{}

	send(t, meeting, client, protocol.TeamStart{Type: protocol.TypeTeamStart, Agents: []string{"eva", "sop"}})
	waitFor(t, "team started", func() bool {
		return len(rec.typed(protocol.TypeTeamStarted)) == 1
	})

	send(t, meeting, client, protocol.Transcript{
		Type: protocol.TypeScrumTranscript, Speaker: "alice",
		Text: "we fixed the deploy script", Timestamp: 3000, IsFinal: true,
	})

	waitFor(t, "task completed", func() bool {
		for _, payload := range rec.typed(protocol.TypeTeamTaskUpdate) {
			update := payload.(protocol.TeamTaskUpdate)
			var task team.Task
			if err := json.Unmarshal(update.Task, &task); err != nil {
				continue
			}
			if task.Status == team.TaskCompleted && task.Result == "Runbook updated" {
				return true
			}
		}
		return false
	})

	send(t, meeting, client, protocol.Envelope{Type: protocol.TypeTeamStop})
	waitFor(t, "team stopped", func() bool {
		return len(rec.typed(protocol.TypeTeamStopped)) == 1
	})

	tasks, err := mgr.store.TasksForMeeting(context.Background(), "standup-1")
	if err != nil {
		t.Fatalf("tasks for meeting: %v", err)
	}
	if len(tasks) != 1 || tasks[0].AssignedBy != team.AgentEva || tasks[0].AgentType != team.AgentSOP {
		t.Fatalf("persisted tasks = %+v, want one eva-assigned sop task", tasks)
	}
}

func TestMalformedAndUnknownMessagesIgnored(t *testing.T) {
	mgr, rec := newTestManager(t)
	meeting := mgr.Attach("standup-1")
	client := &recorder{}

	meeting.HandleMessage([]byte("not json"), client)
	meeting.HandleMessage([]byte(`{"type":"weather_report"}`), client)
	meeting.HandleMessage([]byte(`{"type":12}`), client)

	send(t, meeting, client, protocol.Envelope{Type: protocol.TypeScrumGetState})
	waitFor(t, "state reply", func() bool {
		return len(client.typed(protocol.TypeScrumState)) == 1
	})
	if got := len(rec.typed(protocol.TypeScrumError)) + len(client.typed(protocol.TypeScrumError)); got != 0 {
		t.Fatalf("garbage input produced %d error events", got)
	}
}

func TestCloseStopsActiveSessionsAndPersists(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	mgr := NewManager(cfg, logging.NewNop(), store, llm.NewClient(cfg.LLM))
	mgr.classifier = &fakeClassifier{}
	mgr.orchestrator = &fakeOrchestrator{}
	mgr.worker = &fakeWorker{}
	rec := &recorder{}
	mgr.SetBroadcaster(rec)

	meeting := mgr.Attach("standup-9")
	client := &recorder{}
	send(t, meeting, client, protocol.StartSession{Type: protocol.TypeScrumStartSession})
	waitFor(t, "session started", func() bool {
		return len(rec.typed(protocol.TypeScrumSessionStarted)) == 1
	})

	mgr.Close()

	records, err := store.ListSessions(context.Background(), "standup-9")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("persisted %d sessions after close, want 1", len(records))
	}
	if mgr.Attach("standup-9") != nil {
		t.Fatal("attach succeeded after close")
	}
}

