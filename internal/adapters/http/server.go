package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/transport"
)

const (
	messagesEndpoint = "/v1/messages"
	eventsEndpoint   = "/v1/events"
	healthEndpoint   = "/healthz"

	maxMessageBytes = 1 << 20
	pingInterval    = 30 * time.Second
	writeTimeout    = 10 * time.Second
)

// Server exposes the coordinator to remote clients. Requests are relayed on
// the bus as the client role; broadcasts are streamed over WebSocket.
type Server struct {
	bus            *transport.Bus
	logger         log.Logger
	requestTimeout time.Duration
	httpServer     *http.Server
}

// NewServer creates a server for the coordinator on bus.
func NewServer(bus *transport.Bus, requestTimeout time.Duration, logger log.Logger) *Server {
	s := &Server{
		bus:            bus,
		logger:         log.OrNoop(logger).With(log.String("component", "http")),
		requestTimeout: requestTimeout,
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+messagesEndpoint, s.handleMessage)
	mux.HandleFunc("GET "+eventsEndpoint, s.handleEvents)
	mux.HandleFunc("GET "+healthEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", log.String("addr", ln.Addr().String()))
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg transport.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes)).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, transport.Failure("invalid message: "+err.Error()))
		return
	}

	ctx := r.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	resp, err := s.bus.Request(ctx, transport.RoleClient, transport.RoleCoordinator, msg)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, transport.ErrUnhandled):
			status = http.StatusBadRequest
		case errors.Is(err, transport.ErrUnreachable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("request failed", log.Stringer("type", msg.Type), log.Int("status", status), log.Err(err))
		writeJSON(w, status, transport.Failure(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", log.Err(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := s.bus.Subscribe(transport.RoleClient, transport.DefaultSubscriberBuffer)
	defer sub.Close()
	s.logger.Debug("event stream opened", log.String("subscriber", sub.ID()))

	// Clients never send; CloseRead cancels ctx when they go away.
	ctx := conn.CloseRead(r.Context())

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("event stream closed", log.String("subscriber", sub.ID()))
			return

		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				s.logger.Debug("websocket ping failed", log.Err(err))
				return
			}

		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Error("marshal event", log.Err(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Debug("websocket write failed", log.Err(err))
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
