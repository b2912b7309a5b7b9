package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"eva/internal/config"
	"eva/internal/hub"
	"eva/internal/ledger"
	"eva/internal/logging"
	"eva/internal/session"
)

// Daemon ties the session manager, websocket hub, HTTP API, and history
// store together and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *ledger.Store
	manager *session.Manager
	hub     *hub.Hub
	api     *apiServer
	logPath string

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Meetings     []string
	DBPath       string
	LockFilePath string
	APIAddress   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, manager *session.Manager, h *hub.Hub, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil || h == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, manager, hub, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "evad.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		manager:  manager,
		hub:      h,
		logPath:  filepath.Join(cfg.Paths.LogDir, "eva.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the daemon lock and begins serving.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another eva daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			d.ctx = nil
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("eva daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops serving, ends any live sessions, and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.hub.Close()
	d.manager.Close()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("eva daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Sessions lists stored session history, optionally scoped to one meeting.
func (d *Daemon) Sessions(ctx context.Context, meetingID string) ([]ledger.SessionRecord, error) {
	return d.store.ListSessions(ctx, meetingID)
}

// Tasks lists every stored agent task for a meeting.
func (d *Daemon) Tasks(ctx context.Context, meetingID string) ([]ledger.TaskRecord, error) {
	return d.store.TasksForMeeting(ctx, meetingID)
}

// Actions lists stored action items, optionally filtered by status.
func (d *Daemon) Actions(ctx context.Context, status string) ([]ledger.ActionRecord, error) {
	return d.store.ListActions(ctx, status)
}

// UpdateAction edits a stored action item's status and/or owner.
func (d *Daemon) UpdateAction(ctx context.Context, id, status, owner string) (*ledger.ActionRecord, error) {
	return d.store.UpdateAction(ctx, id, status, owner)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// APIAddress returns the bound API listen address, or "" before Start.
func (d *Daemon) APIAddress() string {
	if d.api == nil {
		return ""
	}
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Meetings:     d.manager.MeetingIDs(),
		DBPath:       d.store.Path(),
		LockFilePath: d.lockPath,
		APIAddress:   d.APIAddress(),
	}
}
