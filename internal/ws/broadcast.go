package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// SnapshotFunc produces the full-state message sent to newly connected
// clients and on the periodic snapshot tick.
type SnapshotFunc func() SnapshotPayload

type Broadcaster struct {
	mu             sync.RWMutex
	clients        map[*client]bool
	snapshot       SnapshotFunc
	throttle       time.Duration
	snapshotTicker *time.Ticker

	flushMu        sync.Mutex
	pendingPlayers *PlayersUpdatedPayload
	flushTimer     *time.Timer
}

func NewBroadcaster(snapshot SnapshotFunc, throttle, snapshotInterval time.Duration) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		snapshot: snapshot,
		throttle: throttle,
	}

	b.snapshotTicker = time.NewTicker(snapshotInterval)
	go b.snapshotLoop()

	return b
}

func (b *Broadcaster) AddClient(conn wsConn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	data, _ := json.Marshal(WSMessage{
		Type:    MsgSnapshot,
		Payload: b.snapshot(),
	})

	select {
	case c.send <- data:
	default:
		// Client too slow, drop the snapshot
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// QueuePlayersUpdated coalesces registry changes behind the throttle so a
// bulk catalog import produces one message, not one per player. The latest
// player list wins.
func (b *Broadcaster) QueuePlayersUpdated(payload PlayersUpdatedPayload) {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	b.pendingPlayers = &payload

	if b.flushTimer == nil {
		b.flushTimer = time.AfterFunc(b.throttle, b.flush)
	}
}

// Game transitions and monitoring state changes are rare; they bypass the
// throttle and go out immediately.
func (b *Broadcaster) GameStarted(payload GameStartedPayload) {
	b.broadcast(WSMessage{Type: MsgGameStarted, Payload: payload})
}

func (b *Broadcaster) GameEnded(payload GameEndedPayload) {
	b.broadcast(WSMessage{Type: MsgGameEnded, Payload: payload})
}

func (b *Broadcaster) MonitoringStarted() {
	b.broadcast(WSMessage{Type: MsgMonitoringStarted, Payload: struct{}{}})
}

func (b *Broadcaster) MonitoringStopped() {
	b.broadcast(WSMessage{Type: MsgMonitoringStopped, Payload: struct{}{}})
}

func (b *Broadcaster) APIHealth(payload APIHealthPayload) {
	b.broadcast(WSMessage{Type: MsgAPIHealth, Payload: payload})
}

func (b *Broadcaster) flush() {
	b.flushMu.Lock()
	pending := b.pendingPlayers
	b.pendingPlayers = nil
	b.flushTimer = nil
	b.flushMu.Unlock()

	if pending == nil {
		return
	}

	b.broadcast(WSMessage{Type: MsgPlayersUpdated, Payload: *pending})
}

func (b *Broadcaster) snapshotLoop() {
	for range b.snapshotTicker.C {
		b.broadcast(WSMessage{
			Type:    MsgSnapshot,
			Payload: b.snapshot(),
		})
	}
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up, disconnect it
			log.Printf("ws client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
