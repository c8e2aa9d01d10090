// Package gateway connects the engine to the chat platform: a
// websocket subscriber feeding inbound events to the engine handlers,
// and a REST client implementing the chat store interfaces.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mtessier/reactsync/internal/chat"
	"github.com/mtessier/reactsync/internal/engine"
)

// Handler receives decoded gateway events. Implemented by
// engine.Engine.
type Handler interface {
	OnReactionAdded(ctx context.Context, ev engine.ReactionEvent)
	OnReactionRemoved(ctx context.Context, ev engine.ReactionEvent)
	OnMessageDeleted(ctx context.Context, ev engine.MessageDeleteEvent)
}

// Subscriber maintains a websocket connection to the gateway and
// dispatches decoded events to the handler inline, in frame order.
// Per-member ordering matters: a rapid add-then-remove pair must reach
// the queue in that order or the last-writer-wins merge inverts. The
// handlers only touch caches and the queue, so inline dispatch never
// stalls the read pump.
type Subscriber struct {
	url     string
	token   string
	handler Handler
	tokens  engine.TokenGenerator
	dialer  *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSubscriber creates a subscriber for the gateway at url,
// authenticating with the bearer token.
func NewSubscriber(url, token string, handler Handler, tokens engine.TokenGenerator) *Subscriber {
	return &Subscriber{
		url:     url,
		token:   token,
		handler: handler,
		tokens:  tokens,
		dialer:  websocket.DefaultDialer,
	}
}

// Listen dials the gateway and pumps events until the context is
// cancelled or the connection drops. Returns the read error on
// disconnect; the caller decides whether to redial.
func (s *Subscriber) Listen(ctx context.Context) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, _, err := s.dialer.DialContext(ctx, s.url, header)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	// Unblock the read loop when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	slog.Info("gateway connected", "url", s.url)
	return s.readPump(ctx, conn)
}

// Close tears down the current connection, if any.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Subscriber) readPump(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("gateway read loop stopping: context cancelled")
				return ctx.Err()
			}
			slog.Warn("gateway read error", "error", err)
			return fmt.Errorf("read gateway: %w", err)
		}
		s.dispatch(ctx, data)
	}
}

// dispatch decodes one frame and hands it to the handler. Malformed
// frames are logged and dropped; the stream keeps flowing.
func (s *Subscriber) dispatch(ctx context.Context, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		slog.Warn("gateway frame is not valid json", "error", err)
		return
	}

	token := s.tokens.Generate()

	switch env.Type {
	case EventReactionAdd, EventReactionRemove:
		p, symbol, err := decodeReaction(env.Data)
		if err != nil {
			slog.Warn("bad reaction payload", "token", token, "error", err)
			return
		}
		ev := engine.ReactionEvent{
			Ref:    p.Ref(),
			Symbol: symbol,
			Member: chat.MemberID(p.MemberID),
			Token:  token,
		}
		if env.Type == EventReactionAdd {
			s.handler.OnReactionAdded(ctx, ev)
		} else {
			s.handler.OnReactionRemoved(ctx, ev)
		}

	case EventMessageDelete:
		var p MessageDeletePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			slog.Warn("bad message delete payload", "token", token, "error", err)
			return
		}
		s.handler.OnMessageDeleted(ctx, engine.MessageDeleteEvent{Ref: p.Ref(), Token: token})

	default:
		slog.Debug("ignoring gateway event", "type", env.Type)
	}
}
