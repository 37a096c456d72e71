// Package gateway maintains the WebSocket connection to the platform event
// gateway and dispatches incoming lifecycle events to the registered
// handler.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/forgeline/porter/internal/platform"
)

// WebSocket connection constants
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum event size allowed from the gateway (256KB)
	maxMessageSize int64 = 256 * 1024

	// Reconnect backoff bounds
	minBackoff = time.Second
	maxBackoff = time.Minute
)

// envelope is the wire frame of one gateway event: a type tag plus the
// event-specific payload.
type envelope struct {
	Type string          `json:"t"`
	Data json.RawMessage `json:"d"`
}

type Gateway struct {
	url     string
	token   string
	handler platform.EventHandler
}

func New(url, token string, handler platform.EventHandler) *Gateway {
	return &Gateway{url: url, token: token, handler: handler}
}

// Run connects to the gateway and keeps the connection alive until the
// context is cancelled, reconnecting with backoff on failure.
func (g *Gateway) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		if err := g.connectAndRead(ctx); err != nil {
			log.Printf("[Gateway] ❌ Connection lost: %v", err)
		}
		if ctx.Err() != nil {
			return
		}

		// A connection that held for a while resets the backoff
		if time.Since(start) > maxBackoff {
			backoff = minBackoff
		}

		log.Printf("[Gateway] Reconnecting in %s", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (g *Gateway) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bot "+g.token)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	log.Println("[Gateway] ✅ Connected")

	go g.pingLoop(ctx, conn)

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				return err
			}
			return err
		}
		g.dispatch(ctx, message)
	}
}

func (g *Gateway) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			conn.Close()
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch decodes one event frame and hands it to the handler in its own
// goroutine, so a slow handler never stalls the read loop. Handlers are
// shielded by a recover guard; a panic loses one event, not the
// connection.
func (g *Gateway) dispatch(ctx context.Context, message []byte) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		log.Printf("[Gateway] Discarding unparseable frame: %v", err)
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Gateway] Panic handling %s: %v", env.Type, r)
			}
		}()
		g.handle(ctx, &env)
	}()
}

func (g *Gateway) handle(ctx context.Context, env *envelope) {
	switch env.Type {
	case "MEMBER_JOINED":
		var e platform.MemberJoinedEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			log.Printf("[Gateway] Bad %s payload: %v", env.Type, err)
			return
		}
		g.handler.HandleMemberJoined(ctx, &e)

	case "MEMBER_UPDATED":
		var e platform.MemberUpdatedEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			log.Printf("[Gateway] Bad %s payload: %v", env.Type, err)
			return
		}
		g.handler.HandleMemberUpdated(ctx, &e)

	case "MEMBER_REMOVED":
		var e platform.MemberRemovedEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			log.Printf("[Gateway] Bad %s payload: %v", env.Type, err)
			return
		}
		g.handler.HandleMemberRemoved(ctx, &e)

	case "INTERACTION_CREATED":
		var e platform.InteractionEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			log.Printf("[Gateway] Bad %s payload: %v", env.Type, err)
			return
		}
		g.handler.HandleInteractionCreated(ctx, &e)

	case "MESSAGE_CREATED":
		var e platform.MessageCreatedEvent
		if err := json.Unmarshal(env.Data, &e); err != nil {
			log.Printf("[Gateway] Bad %s payload: %v", env.Type, err)
			return
		}
		g.handler.HandleMessageCreated(ctx, &e)

	default:
		// Unknown event types are expected; the gateway sends more than
		// this bot subscribes to.
	}
}
