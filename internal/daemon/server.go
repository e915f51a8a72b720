package daemon

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cosmix/skein/internal/obslog"
	"github.com/cosmix/skein/internal/orchestrator"
	"github.com/cosmix/skein/internal/workspace"
)

// MaxConnections caps concurrent client handlers (spec 4.6: "excess
// connections are dropped with a log line").
const MaxConnections = 16

// Server binds the unix socket, runs the scheduler loop, and answers
// RPC requests against it. No lock is taken to keep a second Server
// off the same workspace; the only duplicate guard is `daemon start`
// refusing to launch while the PID file names a live process.
type Server struct {
	ws   *workspace.Workspace
	orch *orchestrator.Orchestrator
	log  *obslog.Logger

	listener net.Listener
	sem      chan struct{}

	mu       sync.Mutex
	shutdown bool
}

// New returns a Server ready to Start.
func New(ws *workspace.Workspace, orch *orchestrator.Orchestrator, logger *obslog.Logger) *Server {
	if logger == nil {
		logger = obslog.NewStderr()
	}
	return &Server{
		ws:   ws,
		orch: orch,
		log:  logger,
		sem:  make(chan struct{}, MaxConnections),
	}
}

// Start performs the startup sequence from spec 4.6 (already
// double-forked by the caller via Detach; this runs inside that
// detached process): remove a stale socket, bind, chmod 0600, write
// the PID file, reconcile orphaned worktrees, then run the scheduler
// loop and accept loop concurrently until ctx is canceled or Stop is
// requested.
func (s *Server) Start(ctx context.Context) error {
	sockPath := s.ws.SocketPath()
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", sockPath, err)
	}
	if err := os.Chmod(sockPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.listener = ln

	if err := WritePIDFile(s.ws.PidFilePath()); err != nil {
		ln.Close()
		return fmt.Errorf("write pid file: %w", err)
	}

	if err := s.orch.Reconcile(); err != nil {
		s.log.Warnf("reconcile: %v", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- s.orch.Run(ctx) }()

	acceptDone := make(chan error, 1)
	go func() { acceptDone <- s.acceptLoop(ctx) }()

	select {
	case err := <-runDone:
		s.closeListener()
		return err
	case err := <-acceptDone:
		s.orch.Stop()
		<-runDone
		return err
	case <-ctx.Done():
		s.orch.Stop()
		s.closeListener()
		<-runDone
		return nil
	}
}

func (s *Server) closeListener() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	s.shutdown = true
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.shutdown
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		select {
		case s.sem <- struct{}{}:
			go func() {
				defer func() { <-s.sem }()
				s.handleConn(ctx, conn)
			}()
		default:
			s.log.Warnf("daemon: connection limit (%d) reached, dropping client", MaxConnections)
			conn.Close()
		}
	}
}

// Cleanup removes the PID file, socket, and completion marker (spec
// 4.6 "do not touch stage files or worktrees").
func (s *Server) Cleanup() {
	os.Remove(s.ws.PidFilePath())
	os.Remove(s.ws.SocketPath())
	os.Remove(s.ws.CompletionMarker())
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	var req Request
	if err := ReadMessage(conn, &req); err != nil {
		if err != io.EOF {
			s.log.Warnf("daemon: read request: %v", err)
		}
		return
	}

	switch req.Kind {
	case ReqStatus:
		s.replyStatus(conn)
	case ReqSubscribeStatus:
		s.streamStatus(ctx, conn)
	case ReqSubscribeLog:
		s.streamLog(ctx, conn)
	case ReqStop:
		s.reply(conn, RespOk, "stopping")
		s.orch.Stop()
	default:
		s.handleStageVerb(conn, req)
	}
}

func (s *Server) handleStageVerb(conn net.Conn, req Request) {
	var err error
	switch req.Kind {
	case ReqStageComplete:
		err = s.orch.CompleteStage(req.StageID, req.Commit)
	case ReqStageBlock:
		err = s.orch.BlockStage(req.StageID, req.Reason)
	case ReqStageReset:
		err = s.orch.ResetStage(req.StageID)
	case ReqStageRetry:
		err = s.orch.RetryStage(req.StageID)
	case ReqMergeComplete:
		err = s.orch.ResolveMerge(req.StageID)
	case ReqStageHold:
		err = s.orch.HoldStage(req.StageID)
	case ReqStageRelease:
		err = s.orch.ReleaseStage(req.StageID)
	case ReqDisputeCriteria:
		err = s.orch.DisputeCriteria(req.StageID, req.Reason)
	case ReqStageVerify:
		err = s.orch.VerifyStage(req.StageID)
	case ReqApproveReview:
		err = s.orch.ApproveReview(req.StageID)
	case ReqRejectReview:
		err = s.orch.RejectReview(req.StageID, req.Reason)
	case ReqForceComplete:
		err = s.orch.ForceCompleteStage(req.StageID, req.Commit, req.AssumeMerged)
	case ReqResume:
		err = s.orch.ResumeStage(req.StageID)
	default:
		s.reply(conn, RespError, fmt.Sprintf("unknown request kind %q", req.Kind))
		return
	}
	if err != nil {
		s.reply(conn, RespError, err.Error())
		return
	}
	s.reply(conn, RespOk, "")
}

func (s *Server) reply(conn net.Conn, kind ResponseKind, message string) {
	if err := WriteMessage(conn, Response{Kind: kind, Message: message}); err != nil {
		s.log.Warnf("daemon: write response: %v", err)
	}
}

// replyStatus answers a one-shot Status request with the next status
// snapshot the scheduler emits, falling back to an empty one after a
// short timeout so the request never blocks indefinitely between
// ticks.
func (s *Server) replyStatus(conn net.Conn) {
	var up orchestrator.StatusUpdate
	select {
	case up = <-s.orch.StatusCh:
	case <-time.After(3 * time.Second):
	}
	if err := WriteMessage(conn, Response{Kind: RespStatusUpdate, Status: &up}); err != nil {
		s.log.Warnf("daemon: write status: %v", err)
	}
}

func (s *Server) streamStatus(ctx context.Context, conn net.Conn) {
	for {
		select {
		case up := <-s.orch.StatusCh:
			if err := WriteMessage(conn, Response{Kind: RespStatusUpdate, Status: &up}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) streamLog(ctx context.Context, conn net.Conn) {
	for {
		select {
		case line := <-s.orch.LogCh:
			if err := WriteMessage(conn, Response{Kind: RespLogLine, Log: &line}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
