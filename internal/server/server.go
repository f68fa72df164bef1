package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"rate_server/internal/eventlog"
	"rate_server/internal/infra"

	"github.com/google/uuid"
)

// Supervisor owns the TCP listen/accept loop. Each accepted connection gets
// its own session goroutine; the accept loop never blocks on session work.
type Supervisor struct {
	addr     string
	resolver Resolver
	events   EventRecorder
	counter  *ConnCounter
	logger   *slog.Logger

	listener net.Listener
	cancel   context.CancelFunc
	sessions sync.Map // session id -> *session
	wg       sync.WaitGroup
	closing  atomic.Bool
}

// NewSupervisor creates a Supervisor listening on addr once started. The
// counter may be shared with other transports (the WebSocket gateway).
func NewSupervisor(addr string, resolver Resolver, events EventRecorder, counter *ConnCounter, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if counter == nil {
		counter = &ConnCounter{}
	}
	return &Supervisor{
		addr:     addr,
		resolver: resolver,
		events:   events,
		counter:  counter,
		logger:   logger,
	}
}

// Start binds the listener and runs the accept loop in the background.
func (s *Supervisor) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	s.listener = listener

	ctx, s.cancel = context.WithCancel(ctx)
	go s.acceptLoop(ctx)

	s.logger.Info("rate server listening", slog.String("addr", listener.Addr().String()))
	return nil
}

func (s *Supervisor) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closing.Load() || ctx.Err() != nil {
				return
			}
			s.logger.Warn("accept failed", slog.Any("error", err))
			continue
		}
		if s.closing.Load() {
			conn.Close()
			return
		}

		host, port := splitRemote(conn.RemoteAddr().String())
		sess := &session{
			id:       uuid.NewString(),
			conn:     conn,
			host:     host,
			port:     port,
			resolver: s.resolver,
			events:   s.events,
			counter:  s.counter,
			logger:   s.logger,
		}

		live := s.counter.Inc()
		infra.ConnectionsLive.Inc()
		infra.ConnectionsTotal.WithLabelValues("tcp").Inc()
		if err := s.events.Record(sess.id, sess.host, sess.port, eventlog.Connect); err != nil {
			s.logger.Warn("failed to record connect event", slog.Any("error", err))
		}
		s.logger.Info("client connected",
			slog.String("session", sess.id),
			slog.String("remote", sess.host+":"+strconv.Itoa(sess.port)),
			slog.Int64("live", live))

		s.sessions.Store(sess.id, sess)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sessions.Delete(sess.id)
			sess.run(ctx)
		}()
	}
}

// Addr returns the bound listen address. Useful when the configured port
// is 0.
func (s *Supervisor) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Connections reports the current live-connection count.
func (s *Supervisor) Connections() int64 {
	return s.counter.Value()
}

// Stop closes the listener and force-closes all live sessions. There is no
// drain: in-flight requests are cut off, matching the operator console's
// abrupt stop. Each session still passes through its close-once path, so
// the counter and the event log stay consistent. Safe to call more than
// once.
func (s *Supervisor) Stop() {
	if !s.closing.CompareAndSwap(false, true) {
		return
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		s.listener.Close()
	}

	s.sessions.Range(func(_, v any) bool {
		v.(*session).close()
		return true
	})
	s.wg.Wait()

	s.logger.Info("rate server stopped")
}
