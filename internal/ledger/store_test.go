package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"eva/internal/facilitation"
	"eva/internal/ledger"
	"eva/internal/team"
	"eva/internal/testsupport"
)

func sampleSummary() facilitation.Summary {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return facilitation.Summary{
		SessionID:         "sess-1",
		Mode:              facilitation.ModeEnforcer,
		SprintGoal:        "Ship onboarding flow",
		StartedAt:         started,
		EndedAt:           started.Add(15 * time.Minute),
		InterventionCount: 1,
		BlockerCount:      1,
		ActionCount:       2,
		SpeakerSeconds:    map[string]float64{"Alice": 310.5, "Bob": 95.2},
		Interventions: []facilitation.Intervention{{
			ID:        "iv-1",
			Type:      "time_warning",
			Severity:  facilitation.SeverityMedium,
			Message:   "Alice is approaching the timebox",
			Speaker:   "Alice",
			Timestamp: started.Add(5 * time.Minute),
		}},
		Blockers: []facilitation.Blocker{{
			ID:          "bl-1",
			Description: "Staging database is down",
			Owner:       "Bob",
			Severity:    facilitation.SeverityHigh,
			Status:      facilitation.BlockerActive,
		}},
		Actions: []facilitation.ActionItem{
			{ID: "ac-1", Description: "File infra ticket", Owner: "Bob", Status: facilitation.ActionOpen, Priority: "high"},
			{ID: "ac-2", Description: "Update sprint board", Owner: "Alice", Status: facilitation.ActionOpen, Priority: "medium"},
		},
	}
}

func TestSaveAndListScrumSession(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.SaveScrumSession(ctx, "standup-42", sampleSummary()); err != nil {
		t.Fatalf("save scrum session: %v", err)
	}

	records, err := store.ListSessions(ctx, "standup-42")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d sessions, want 1", len(records))
	}
	rec := records[0]
	if rec.Kind != ledger.KindScrum || rec.Mode != "enforcer" || rec.SprintGoal != "Ship onboarding flow" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Interventions != 1 || rec.Blockers != 1 || rec.Actions != 2 {
		t.Fatalf("artifact counts = %d/%d/%d, want 1/1/2", rec.Interventions, rec.Blockers, rec.Actions)
	}
	if rec.SpeakerSeconds["Alice"] != 310.5 {
		t.Fatalf("speaker seconds = %v", rec.SpeakerSeconds)
	}

	if _, err := store.ListSessions(ctx, "other-meeting"); err != nil {
		t.Fatalf("list other meeting: %v", err)
	}
	other, _ := store.ListSessions(ctx, "other-meeting")
	if len(other) != 0 {
		t.Fatalf("other meeting has %d sessions, want 0", len(other))
	}
}

func TestSaveTeamSessionAndTasks(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	done := started.Add(2 * time.Minute)
	tasks := []team.Task{{
		ID:          "task-1",
		AgentType:   team.AgentSOP,
		Description: "Document release steps",
		Status:      team.TaskCompleted,
		Result:      "Runbook drafted",
		Priority:    "high",
		AssignedBy:  team.AgentEva,
		CreatedAt:   started,
		CompletedAt: &done,
	}}
	messages := []team.Message{{
		ID:          "msg-1",
		FromAgent:   team.AgentEva,
		ToAgent:     team.AgentSOP,
		MessageType: team.MessageDelegateTask,
		Content:     "Document release steps",
		Metadata:    map[string]string{"taskId": "task-1"},
		CreatedAt:   started,
	}}

	if err := store.SaveTeamSession(ctx, "sess-t1", "standup-42", "Coordinated Report",
		started, started.Add(10*time.Minute), tasks, messages); err != nil {
		t.Fatalf("save team session: %v", err)
	}

	stored, err := store.TasksForMeeting(ctx, "standup-42")
	if err != nil {
		t.Fatalf("tasks for meeting: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("got %d tasks, want 1", len(stored))
	}
	task := stored[0]
	if task.AgentType != team.AgentSOP || task.Status != "completed" || task.Result != "Runbook drafted" {
		t.Fatalf("unexpected task: %+v", task)
	}
	if task.CompletedAt == nil || !task.CompletedAt.Equal(done) {
		t.Fatalf("completed at = %v, want %v", task.CompletedAt, done)
	}

	session, err := store.GetSession(ctx, "sess-t1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Kind != ledger.KindTeam || session.Report != "Coordinated Report" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestUpdateActionAfterSessionEnds(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.SaveScrumSession(ctx, "standup-42", sampleSummary()); err != nil {
		t.Fatalf("save scrum session: %v", err)
	}

	updated, err := store.UpdateAction(ctx, "ac-1", "done", "")
	if err != nil {
		t.Fatalf("update action: %v", err)
	}
	if updated.Status != "done" || updated.Owner != "Bob" {
		t.Fatalf("updated action = %+v", updated)
	}

	reassigned, err := store.UpdateAction(ctx, "ac-2", "", "Carol")
	if err != nil {
		t.Fatalf("reassign action: %v", err)
	}
	if reassigned.Owner != "Carol" || reassigned.Status != "open" {
		t.Fatalf("reassigned action = %+v", reassigned)
	}

	open, err := store.ListActions(ctx, "open")
	if err != nil {
		t.Fatalf("list open actions: %v", err)
	}
	if len(open) != 1 || open[0].ID != "ac-2" {
		t.Fatalf("open actions = %+v, want only ac-2", open)
	}
}

func TestUpdateActionValidation(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.SaveScrumSession(ctx, "standup-42", sampleSummary()); err != nil {
		t.Fatalf("save scrum session: %v", err)
	}

	if _, err := store.UpdateAction(ctx, "ac-1", "party", ""); err == nil {
		t.Fatal("invalid status accepted")
	}
	if _, err := store.UpdateAction(ctx, "missing", "done", ""); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("update missing action err = %v, want ErrNotFound", err)
	}
	if _, err := store.GetAction(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("get missing action err = %v, want ErrNotFound", err)
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenLedger(t, cfg)
	if err := first.SaveScrumSession(context.Background(), "standup-42", sampleSummary()); err != nil {
		t.Fatalf("save scrum session: %v", err)
	}

	second, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("reopen ledger: %v", err)
	}
	defer second.Close()

	records, err := second.ListSessions(context.Background(), "")
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d sessions after reopen, want 1", len(records))
	}
}
