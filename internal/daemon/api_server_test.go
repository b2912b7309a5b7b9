package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"eva/internal/daemon"
	"eva/internal/facilitation"
	"eva/internal/hub"
	"eva/internal/ledger"
	"eva/internal/llm"
	"eva/internal/logging"
	"eva/internal/session"
	"eva/internal/testsupport"
)

func newAuthedDaemon(t *testing.T, token string) (*daemon.Daemon, *ledger.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = token
	store := testsupport.MustOpenLedger(t, cfg)
	manager := session.NewManager(cfg, logging.NewNop(), store, llm.NewClient(cfg.LLM))
	h := hub.New(manager, logging.NewNop())
	d, err := daemon.New(cfg, store, manager, h, logging.NewNop())
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, store
}

func seedSession(t *testing.T, store *ledger.Store, meetingID string) {
	t.Helper()
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	summary := facilitation.Summary{
		SessionID: "sess-api",
		Mode:      facilitation.ModeEnforcer,
		StartedAt: started,
		EndedAt:   started.Add(10 * time.Minute),
		Actions: []facilitation.ActionItem{{
			ID: "ac-api", Description: "Fix the build", Owner: "Bob",
			Status: facilitation.ActionOpen, Priority: "high",
		}},
	}
	if err := store.SaveScrumSession(context.Background(), meetingID, summary); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func apiRequest(t *testing.T, method, url, token string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestAPIRequiresBearerToken(t *testing.T) {
	d, _ := newAuthedDaemon(t, "secret")
	base := "http://" + d.APIAddress()

	if resp := apiRequest(t, http.MethodGet, base+"/api/status", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}
	if resp := apiRequest(t, http.MethodGet, base+"/api/status", "wrong", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", resp.StatusCode)
	}
	resp := apiRequest(t, http.MethodGet, base+"/api/status", "secret", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("authed status = %d, want 200", resp.StatusCode)
	}
	var status struct {
		Running bool `json:"running"`
		PID     int  `json:"pid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.PID == 0 {
		t.Fatalf("status = %+v", status)
	}
}

func TestSessionsAndTasksEndpoints(t *testing.T) {
	d, store := newAuthedDaemon(t, "")
	seedSession(t, store, "standup-7")
	base := "http://" + d.APIAddress()

	resp := apiRequest(t, http.MethodGet, base+"/api/sessions?meeting=standup-7", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sessions status = %d", resp.StatusCode)
	}
	var sessions struct {
		Sessions []ledger.SessionRecord `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions.Sessions) != 1 || sessions.Sessions[0].Actions != 1 {
		t.Fatalf("sessions = %+v", sessions.Sessions)
	}

	resp = apiRequest(t, http.MethodGet, base+"/api/sessions/standup-7/tasks", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tasks status = %d", resp.StatusCode)
	}

	if resp := apiRequest(t, http.MethodGet, base+"/api/sessions/standup-7/bogus", "", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("bogus subpath status = %d, want 404", resp.StatusCode)
	}
}

func TestPatchActionEndpoint(t *testing.T) {
	d, store := newAuthedDaemon(t, "")
	seedSession(t, store, "standup-7")
	base := "http://" + d.APIAddress()

	body := []byte(`{"status":"done","owner":"Carol"}`)
	resp := apiRequest(t, http.MethodPatch, base+"/api/actions/ac-api", "", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch status = %d", resp.StatusCode)
	}
	var record ledger.ActionRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		t.Fatalf("decode action: %v", err)
	}
	if record.Status != "done" || record.Owner != "Carol" {
		t.Fatalf("patched action = %+v", record)
	}

	if resp := apiRequest(t, http.MethodPatch, base+"/api/actions/missing", "", body); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing action status = %d, want 404", resp.StatusCode)
	}
	bad := []byte(`{"status":"celebrated"}`)
	if resp := apiRequest(t, http.MethodPatch, base+"/api/actions/ac-api", "", bad); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid status code = %d, want 400", resp.StatusCode)
	}

	open := apiRequest(t, http.MethodGet, base+fmt.Sprintf("/api/actions?status=%s", "open"), "", nil)
	var actions struct {
		Actions []ledger.ActionRecord `json:"actions"`
	}
	if err := json.NewDecoder(open.Body).Decode(&actions); err != nil {
		t.Fatalf("decode actions: %v", err)
	}
	if len(actions.Actions) != 0 {
		t.Fatalf("open actions = %+v, want none after patch", actions.Actions)
	}
}
