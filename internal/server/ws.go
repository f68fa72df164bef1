package server

import (
	"log/slog"
	"net/http"

	"rate_server/internal/eventlog"
	"rate_server/internal/infra"
	"rate_server/internal/protocol"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSGateway serves the command protocol over WebSocket for clients that
// cannot open a raw TCP socket. One text message carries one command; each
// command gets exactly one response message. The gateway shares the live
// counter and event log with the TCP supervisor, so a WebSocket client is a
// session like any other.
type WSGateway struct {
	upgrader websocket.Upgrader
	resolver Resolver
	events   EventRecorder
	counter  *ConnCounter
	logger   *slog.Logger
}

// NewWSGateway creates the gateway. An empty allowedOrigin accepts any
// Origin header.
func NewWSGateway(resolver Resolver, events EventRecorder, counter *ConnCounter, logger *slog.Logger, allowedOrigin string) *WSGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if counter == nil {
		counter = &ConnCounter{}
	}
	return &WSGateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return allowedOrigin == "" || r.Header.Get("Origin") == allowedOrigin
			},
		},
		resolver: resolver,
		events:   events,
		counter:  counter,
		logger:   logger,
	}
}

func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	id := uuid.NewString()
	host, port := splitRemote(r.RemoteAddr)

	g.counter.Inc()
	infra.ConnectionsLive.Inc()
	infra.ConnectionsTotal.WithLabelValues("ws").Inc()
	if err := g.events.Record(id, host, port, eventlog.Connect); err != nil {
		g.logger.Warn("failed to record connect event", slog.Any("error", err))
	}

	defer func() {
		conn.Close()
		g.counter.Dec()
		infra.ConnectionsLive.Dec()
		if err := g.events.Record(id, host, port, eventlog.Disconnect); err != nil {
			g.logger.Warn("failed to record disconnect event", slog.Any("error", err))
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(protocol.Greeting)); err != nil {
		return
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		resp := dispatch(r.Context(), g.resolver, string(msg))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(resp)); err != nil {
			return
		}
	}
}
