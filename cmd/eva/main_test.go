package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"eva/internal/config"
	"eva/internal/daemon"
	"eva/internal/facilitation"
	"eva/internal/hub"
	"eva/internal/ipc"
	"eva/internal/ledger"
	"eva/internal/llm"
	"eva/internal/logging"
	"eva/internal/session"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *ledger.Store
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	cancel     context.CancelFunc
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, base)

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}

	logger := logging.NewNop()
	manager := session.NewManager(cfg, logger, store, llm.NewClient(cfg.LLM))
	meetingHub := hub.New(manager, logger)

	d, err := daemon.New(cfg, store, manager, meetingHub, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := filepath.Join(cfg.Paths.LogDir, "cli.sock")
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}

	env := &cliTestEnv{
		cfg:        cfg,
		store:      store,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Close()
	})

	return env
}

func writeTestConfig(t *testing.T, path, base string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
log_dir = %q
api_bind = "127.0.0.1:0"

[llm]
api_key = "test"
`, filepath.Join(base, "logs"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func seedScrumSession(t *testing.T, env *cliTestEnv, meetingID string) {
	t.Helper()
	started := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	summary := facilitation.Summary{
		SessionID:         "sess-cli",
		Mode:              facilitation.ModeEnforcer,
		SprintGoal:        "Ship reporting",
		StartedAt:         started,
		EndedAt:           started.Add(12 * time.Minute),
		InterventionCount: 1,
		BlockerCount:      0,
		ActionCount:       1,
		SpeakerSeconds:    map[string]float64{"Alice": 200},
		Interventions: []facilitation.Intervention{{
			ID:        "iv-cli",
			Type:      "time_warning",
			Severity:  facilitation.SeverityMedium,
			Message:   "Alice is approaching the timebox",
			Speaker:   "Alice",
			Timestamp: started.Add(4 * time.Minute),
		}},
		Actions: []facilitation.ActionItem{{
			ID:          "ac-cli",
			Description: "File infra ticket",
			Owner:       "Bob",
			Status:      facilitation.ActionOpen,
			Priority:    "high",
		}},
	}
	if err := env.store.SaveScrumSession(context.Background(), meetingID, summary); err != nil {
		t.Fatalf("SaveScrumSession: %v", err)
	}
}

func TestCLIStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, stderr, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v (stderr: %s)", err, stderr)
	}
	if !strings.Contains(stdout, "Running") {
		t.Fatalf("status output missing Running:\n%s", stdout)
	}
	if !strings.Contains(stdout, "No meetings attached") {
		t.Fatalf("status output missing meetings section:\n%s", stdout)
	}
}

func TestCLISessionsAndActionsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	seedScrumSession(t, env, "standup-7")

	stdout, stderr, err := runCLI(t, []string{"sessions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions: %v (stderr: %s)", err, stderr)
	}
	if !strings.Contains(stdout, "standup-7") || !strings.Contains(stdout, "enforcer") {
		t.Fatalf("sessions output missing stored session:\n%s", stdout)
	}

	stdout, _, err = runCLI(t, []string{"sessions", "--meeting", "retro-1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("sessions --meeting: %v", err)
	}
	if !strings.Contains(stdout, "No stored sessions") {
		t.Fatalf("expected empty listing for other meeting:\n%s", stdout)
	}

	actions, err := env.store.ListActions(context.Background(), "open")
	if err != nil {
		t.Fatalf("ListActions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("got %d open actions, want 1", len(actions))
	}
	actionID := actions[0].ID

	stdout, _, err = runCLI(t, []string{"actions", "--status", "open"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if !strings.Contains(stdout, "File infra ticket") {
		t.Fatalf("actions output missing seeded item:\n%s", stdout)
	}

	if _, _, err = runCLI(t, []string{"actions", "assign", actionID, "Carol"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("actions assign: %v", err)
	}
	if _, _, err = runCLI(t, []string{"actions", "done", actionID}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("actions done: %v", err)
	}

	updated, err := env.store.GetAction(context.Background(), actionID)
	if err != nil {
		t.Fatalf("GetAction: %v", err)
	}
	if updated.Status != "done" || updated.Owner != "Carol" {
		t.Fatalf("action after edits = %s/%s, want done/Carol", updated.Status, updated.Owner)
	}
}

func TestCLITasksCommandEmpty(t *testing.T) {
	env := setupCLITestEnv(t)
	seedScrumSession(t, env, "standup-8")

	stdout, _, err := runCLI(t, []string{"tasks", "standup-8"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if !strings.Contains(stdout, "No stored tasks") {
		t.Fatalf("expected empty tasks listing:\n%s", stdout)
	}
}

func TestCLIConfigInitCommand(t *testing.T) {
	target := filepath.Join(t.TempDir(), "eva", "config.toml")

	stdout, _, err := runCLI(t, []string{"config", "init", "--path", target}, filepath.Join(t.TempDir(), "none.sock"), "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(stdout, "Wrote sample configuration") {
		t.Fatalf("unexpected init output:\n%s", stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, filepath.Join(t.TempDir(), "none.sock"), ""); err == nil {
		t.Fatal("expected overwrite refusal")
	}
}

func TestCLIConfigShowCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	stdout, _, err := runCLI(t, []string{"config", "show", "--path", env.configPath}, env.socketPath, "")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(stdout, "[paths]") || !strings.Contains(stdout, "api_bind") {
		t.Fatalf("config show output missing sections:\n%s", stdout)
	}
}
