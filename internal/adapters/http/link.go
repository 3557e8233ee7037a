package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"nhooyr.io/websocket"

	"github.com/bft-labs/modelhost/internal/client"
	"github.com/bft-labs/modelhost/internal/ports"
	"github.com/bft-labs/modelhost/pkg/log"
	"github.com/bft-labs/modelhost/pkg/transport"
)

// Link implements client.Link against a remote Server.
type Link struct {
	baseURL string
	client  ports.HTTPClient
	logger  log.Logger
}

// NewLink creates a link to the server at baseURL.
func NewLink(baseURL string, httpClient ports.HTTPClient, logger log.Logger) *Link {
	return &Link{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		logger:  log.OrNoop(logger),
	}
}

// Request posts msg to the coordinator. A server that cannot be reached, or
// that cannot reach its coordinator, yields transport.ErrUnreachable.
func (l *Link) Request(ctx context.Context, msg transport.Message) (transport.Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return transport.Response{}, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+messagesEndpoint, bytes.NewReader(body))
	if err != nil {
		return transport.Response{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return transport.Response{}, ctxErr
		}
		return transport.Response{}, fmt.Errorf("%w: %v", transport.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var out transport.Response
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageBytes))
	if err != nil {
		return transport.Response{}, fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil && resp.StatusCode/100 == 2 {
		return transport.Response{}, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode/100 != 2 {
		reason := out.Error
		if reason == "" {
			reason = strings.TrimSpace(string(data))
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return transport.Response{}, fmt.Errorf("%w: %s", transport.ErrUnreachable, reason)
		}
		return transport.Response{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, reason)
	}
	return out, nil
}

// Subscribe opens the event stream.
func (l *Link) Subscribe(ctx context.Context) (client.Events, error) {
	url := "ws" + strings.TrimPrefix(l.baseURL, "http") + eventsEndpoint

	dialCtx := ctx
	var opts *websocket.DialOptions
	if hc, ok := l.client.(*http.Client); ok {
		// The stream outlives any per-request timeout; it bounds the dial only.
		wsClient := *hc
		if wsClient.Timeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, wsClient.Timeout)
			defer cancel()
			wsClient.Timeout = 0
		}
		opts = &websocket.DialOptions{HTTPClient: &wsClient}
	}
	conn, _, err := websocket.Dial(dialCtx, url, opts)
	if err != nil {
		return nil, fmt.Errorf("dial event stream: %w", err)
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	s := &stream{
		conn:   conn,
		ch:     make(chan transport.Message, transport.DefaultSubscriberBuffer),
		cancel: cancel,
	}
	go s.readLoop(streamCtx, l.logger)
	return s, nil
}

// stream is a client.Events fed by a WebSocket connection.
type stream struct {
	conn   *websocket.Conn
	ch     chan transport.Message
	cancel context.CancelFunc
	once   sync.Once
}

func (s *stream) C() <-chan transport.Message { return s.ch }

func (s *stream) Close() {
	s.once.Do(func() {
		s.cancel()
		s.conn.Close(websocket.StatusNormalClosure, "")
	})
}

func (s *stream) readLoop(ctx context.Context, logger log.Logger) {
	defer close(s.ch)
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				logger.Debug("event stream ended", log.Err(err))
			}
			return
		}

		var msg transport.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("invalid event", log.Err(err))
			continue
		}
		select {
		case s.ch <- msg:
		default:
			logger.Debug("event dropped", log.Stringer("type", msg.Type))
		}
	}
}
