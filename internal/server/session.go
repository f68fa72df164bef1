package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"rate_server/internal/domain"
	"rate_server/internal/eventlog"
	"rate_server/internal/infra"
	"rate_server/internal/protocol"
)

// Resolver answers GET requests. Implemented by resolver.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, date time.Time, symbols []string) ([]domain.RateQuote, error)
}

// EventRecorder receives connect/disconnect events. Implemented by
// eventlog.Log.
type EventRecorder interface {
	Record(sessionID, host string, port int, kind string) error
}

// dispatch turns one raw client line into the response text. Shared by the
// TCP session and the WebSocket gateway. Command errors map to the two
// protocol error strings; backend failures never surface to the client,
// they degrade to a smaller or empty response inside handleLine.
func dispatch(ctx context.Context, r Resolver, line string) string {
	resp, err := handleLine(ctx, r, line)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCommand) {
			return protocol.MsgInvalidName
		}
		return protocol.MsgInvalidFormat
	}
	return resp
}

func handleLine(ctx context.Context, r Resolver, line string) (string, error) {
	req, err := protocol.Decode(line)
	if err != nil {
		return "", err
	}
	if req.Name != protocol.CommandGet {
		return "", domain.ErrUnknownCommand
	}

	quotes, err := r.Resolve(ctx, req.Date, req.Symbols)
	if err != nil {
		quotes = nil
	}
	return protocol.Encode(quotes), nil
}

// session owns one client connection from greeting to close. Requests are
// handled strictly in arrival order; there is no quit command, only peer
// EOF, a transport error or a supervisor-driven shutdown ends the session.
type session struct {
	id       string
	conn     net.Conn
	host     string
	port     int
	resolver Resolver
	events   EventRecorder
	counter  *ConnCounter
	logger   *slog.Logger

	closeOnce sync.Once
}

// run drives the session loop: greeting, then one response per received
// line until the peer goes away.
func (s *session) run(ctx context.Context) {
	defer s.close()

	if _, err := fmt.Fprintln(s.conn, protocol.Greeting); err != nil {
		return
	}

	scanner := bufio.NewScanner(s.conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if _, err := fmt.Fprintln(s.conn, dispatch(ctx, s.resolver, scanner.Text())); err != nil {
			return
		}
	}
	// scanner.Err() is nil on clean EOF; a transport error ends the
	// session the same way, so no distinction is needed here.
}

// close releases the connection exactly once, whichever path got here
// first: peer EOF, transport error or forced shutdown.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.conn.Close()
		live := s.counter.Dec()
		infra.ConnectionsLive.Dec()

		if err := s.events.Record(s.id, s.host, s.port, eventlog.Disconnect); err != nil {
			s.logger.Warn("failed to record disconnect event", slog.Any("error", err))
		}
		s.logger.Info("client disconnected",
			slog.String("session", s.id),
			slog.String("remote", s.host+":"+strconv.Itoa(s.port)),
			slog.Int64("live", live))
	})
}

// splitRemote extracts host and port from a remote address string. A port
// of 0 means the address was not in host:port form.
func splitRemote(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}
