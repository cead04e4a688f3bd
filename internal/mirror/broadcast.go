// Package mirror publishes the session to read-only observers: a JSON state
// endpoint and a WebSocket stream of every sink event.
package mirror

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/TylerJayP/Orchestrator/internal/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrTooManyConnections is returned by AddClient when the limit is reached.
var ErrTooManyConnections = errors.New("too many connections")

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
	recentLog    = 50
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster is a session.Sink that keeps the latest view of the session
// and forwards every event to connected WebSocket clients. Sink methods
// never block: a client whose buffer is full is disconnected.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	logger   zerolog.Logger

	viewMu sync.RWMutex
	state  session.State
	gating GatingPayload
	log    *logbook.Book
}

var _ session.Sink = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster. maxConns <= 0 means unlimited.
func NewBroadcaster(maxConns int, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		logger:   logger.With().Str("component", "mirror").Logger(),
		state:    session.State{CurrentChoices: []protocol.Choice{}, PlayerState: map[string]any{}},
		log:      logbook.New(recentLog),
	}
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		return nil, ErrTooManyConnections
	}
	c := newClient(conn)
	// The snapshot is queued before the client becomes visible to
	// broadcast, so it is always the first message.
	if data, err := json.Marshal(WSMessage{Type: MsgSnapshot, Payload: b.Snapshot()}); err == nil {
		c.send <- data
	}
	b.clients[c] = true
	b.mu.Unlock()
	return c, nil
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Close disconnects every client.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for c := range b.clients {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Snapshot returns the latest known view of the session.
func (b *Broadcaster) Snapshot() SnapshotPayload {
	b.viewMu.RLock()
	defer b.viewMu.RUnlock()
	return SnapshotPayload{
		State:    b.state.Clone(),
		Mode:     b.state.Mode(),
		Gating:   b.gating,
		Controls: session.ControlsFor(b.state, b.gating.Context),
		Log:      b.log.Entries(),
	}
}

// --- session.Sink ---

func (b *Broadcaster) RenderStatus(s session.State) {
	b.viewMu.Lock()
	b.state = s.Clone()
	b.viewMu.Unlock()
	b.broadcast(MsgStatus, s)
}

func (b *Broadcaster) RenderChoices(choices []protocol.Choice, selection int) {
	b.viewMu.Lock()
	b.state.CurrentChoices = append([]protocol.Choice{}, choices...)
	b.state.CurrentSelection = selection
	b.viewMu.Unlock()
	b.broadcast(MsgChoices, ChoicesPayload{Choices: choices, Selection: selection})
}

func (b *Broadcaster) RenderInputGating(ctx session.GatingContext, awaiting session.InputKind, minigameActive bool) {
	g := GatingPayload{Context: ctx, Awaiting: awaiting, MinigameActive: minigameActive}
	b.viewMu.Lock()
	b.gating = g
	b.viewMu.Unlock()
	b.broadcast(MsgGating, g)
}

func (b *Broadcaster) RenderConnection(connected bool) {
	b.viewMu.Lock()
	b.state.Connected = connected
	b.viewMu.Unlock()
	b.broadcast(MsgConnection, ConnectionPayload{Connected: connected})
}

func (b *Broadcaster) RenderPeerConnection(connected bool) {
	b.viewMu.Lock()
	b.state.PresenterConnected = connected
	b.viewMu.Unlock()
	b.broadcast(MsgPeer, ConnectionPayload{Connected: connected})
}

func (b *Broadcaster) AppendLog(e logbook.Entry) {
	b.viewMu.Lock()
	b.log.Add(e)
	b.viewMu.Unlock()
	b.broadcast(MsgLog, e)
}

func (b *Broadcaster) broadcast(kind MessageType, payload interface{}) {
	data, err := json.Marshal(WSMessage{Type: kind, Payload: payload})
	if err != nil {
		b.logger.Error().Err(err).Str("type", string(kind)).Msg("broadcast marshal error")
		return
	}

	// Sends happen under the read lock so no channel is closed mid-send.
	var slow []*client
	b.mu.RLock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	b.mu.RUnlock()

	for _, c := range slow {
		b.logger.Warn().Msg("ws client too slow, disconnecting")
		b.RemoveClient(c)
	}
}
