package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"eva/internal/daemon"
	"eva/internal/logging"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	serverCtx, cancel := context.WithCancel(ctx)
	svc := &service{daemon: d, logger: logger, ctx: serverCtx, stopFn: cancel}
	if err := rpcServer.RegisterName("Eva", svc); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Done is closed when a Stop RPC asks the daemon process to exit.
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	stopFn context.CancelFunc
}

func (s *service) log() *slog.Logger {
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Meetings = status.Meetings
	resp.DBPath = status.DBPath
	resp.LockPath = status.LockFilePath
	resp.APIAddress = status.APIAddress
	return nil
}

func (s *service) Sessions(req SessionsRequest, resp *SessionsResponse) error {
	records, err := s.daemon.Sessions(s.ctx, req.MeetingID)
	if err != nil {
		return err
	}
	resp.Sessions = records
	return nil
}

func (s *service) Tasks(req TasksRequest, resp *TasksResponse) error {
	if req.MeetingID == "" {
		return errors.New("meeting id is required")
	}
	records, err := s.daemon.Tasks(s.ctx, req.MeetingID)
	if err != nil {
		return err
	}
	resp.Tasks = records
	return nil
}

func (s *service) Actions(req ActionsRequest, resp *ActionsResponse) error {
	records, err := s.daemon.Actions(s.ctx, req.Status)
	if err != nil {
		return err
	}
	resp.Actions = records
	return nil
}

func (s *service) UpdateAction(req UpdateActionRequest, resp *UpdateActionResponse) error {
	if req.ID == "" {
		return errors.New("action id is required")
	}
	record, err := s.daemon.UpdateAction(s.ctx, req.ID, req.Status, req.Owner)
	if err != nil {
		return err
	}
	resp.Action = *record
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("daemon stop requested via ipc")
	resp.Stopped = true
	// Cancellation happens off the RPC goroutine so the reply flushes
	// before the daemon process begins shutdown.
	go s.stopFn()
	return nil
}
