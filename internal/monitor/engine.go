// Package monitor runs the polling loop that detects game start/end
// transitions for monitored players.
package monitor

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/riftwatch/backend/internal/registry"
	"github.com/riftwatch/backend/internal/riot"
	"github.com/riftwatch/backend/internal/store"
)

// Spectator reports a player's live game. Implemented by riot.Client and
// the mock source.
type Spectator interface {
	CurrentGame(ctx context.Context, puuid, region string) (*riot.ActiveGame, error)
}

// EventLog persists transition events. Implemented by store.Store.
type EventLog interface {
	RecordStart(ev store.GameEvent) error
	RecordEnd(puuid string, gameID, endedAt int64) error
}

// PlayerSource supplies the live player set. The engine reads a fresh
// snapshot at the top of every cycle, so registry changes take effect
// next cycle without a restart. Implemented by registry.Registry.
type PlayerSource interface {
	List() []registry.Player
}

// GameStartFunc and GameEndFunc are the listener hooks, invoked
// synchronously from the engine's worker. Listeners should enqueue work,
// not perform it inline — a slow listener stalls the rest of the cycle.
type (
	GameStartFunc func(p registry.Player, game *riot.ActiveGame)
	GameEndFunc   func(p registry.Player)
)

// Config holds the engine's timing knobs.
type Config struct {
	PollInterval    time.Duration
	StopTimeout     time.Duration
	HealthThreshold int // consecutive poll failures before a player is reported failing
}

// Engine is the per-player Idle/InGame state machine. It exclusively owns
// the active-game map; nothing outside mutates it.
type Engine struct {
	cfg       Config
	spectator Spectator
	players   PlayerSource
	events    EventLog

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	active  map[string]*riot.ActiveGame // keyed by PUUID
	health  map[string]*pollHealth      // keyed by PUUID

	onGameStart    GameStartFunc
	onGameEnd      GameEndFunc
	onHealthChange HealthChangeFunc
}

func NewEngine(cfg Config, spectator Spectator, players PlayerSource, events EventLog) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.HealthThreshold <= 0 {
		cfg.HealthThreshold = 3
	}
	return &Engine{
		cfg:       cfg,
		spectator: spectator,
		players:   players,
		events:    events,
		active:    make(map[string]*riot.ActiveGame),
		health:    make(map[string]*pollHealth),
	}
}

// OnGameStart registers the start listener. Set before Start.
func (e *Engine) OnGameStart(fn GameStartFunc) { e.onGameStart = fn }

// OnGameEnd registers the end listener. Set before Start.
func (e *Engine) OnGameEnd(fn GameEndFunc) { e.onGameEnd = fn }

// Start spawns the polling worker. A no-op (returning false) when the
// engine is already running or no players are registered.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running || len(e.players.List()) == 0 {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true

	go e.run(ctx, e.done)
	return true
}

// Stop signals the worker and waits for the current cycle to finish,
// bounded by StopTimeout, then discards all in-memory active-game state.
// Players still in a game get no synthetic end event. The registry itself
// is untouched.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	cancel, done := e.cancel, e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(e.cfg.StopTimeout):
		log.Printf("[monitor] worker did not exit within %s, discarding state anyway", e.cfg.StopTimeout)
	}

	e.mu.Lock()
	e.running = false
	e.active = make(map[string]*riot.ActiveGame)
	e.mu.Unlock()
}

// Running reports whether the polling worker is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// ActiveGame returns a copy of the tracked live game for a player, if any.
func (e *Engine) ActiveGame(puuid string) (riot.ActiveGame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.active[puuid]
	if !ok {
		return riot.ActiveGame{}, false
	}
	return *g, true
}

// ActiveCount returns how many monitored players are currently in a game.
func (e *Engine) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	log.Printf("[monitor] started, interval=%s", e.cfg.PollInterval)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	// Initial cycle, then steady ticks.
	e.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("[monitor] stopped")
			return
		case <-ticker.C:
			e.cycle(ctx)
		}
	}
}

// cycle evaluates every player in the current registry snapshot once,
// sequentially. Sequential is deliberate: the rate limiter already
// serializes throughput, and one slow player must not hide errors from
// the rest. A panic here delays monitoring by one interval, never kills it.
func (e *Engine) cycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[monitor] cycle panic recovered: %v", r)
		}
	}()

	players := e.players.List()
	seen := make(map[string]bool, len(players))

	for _, p := range players {
		if ctx.Err() != nil {
			return
		}
		seen[p.PUUID] = true
		e.checkPlayer(ctx, p)
	}

	// Prune state for players removed from the registry mid-session.
	// Abandoned on purpose: no synthetic end event is emitted, matching
	// Remove's contract, and the durable log keeps the dangling start row.
	e.mu.Lock()
	for puuid := range e.active {
		if !seen[puuid] {
			log.Printf("[monitor] abandoning in-flight game for removed player %s", puuid)
			delete(e.active, puuid)
		}
	}
	for puuid := range e.health {
		if !seen[puuid] {
			delete(e.health, puuid)
		}
	}
	e.mu.Unlock()
}

// checkPlayer evaluates one Idle/InGame transition. Errors skip the player
// for this cycle without touching state; transition edges write the event
// log best-effort and fire the listener hooks. The in-memory transition is
// authoritative even when the durable write fails.
func (e *Engine) checkPlayer(ctx context.Context, p registry.Player) {
	game, err := e.spectator.CurrentGame(ctx, p.PUUID, p.Region)
	if err != nil {
		log.Printf("[monitor] poll failed for %s: %v", p.RiotID(), err)
		e.recordPollFailure(p, err)
		return
	}
	e.recordPollSuccess(p)

	e.mu.Lock()
	prev, inGame := e.active[p.PUUID]

	switch {
	case game != nil && !inGame:
		// Idle → InGame
		e.active[p.PUUID] = game
		e.mu.Unlock()
		e.emitStart(p, game)

	case game == nil && inGame:
		// InGame → Idle
		delete(e.active, p.PUUID)
		e.mu.Unlock()
		e.emitEnd(p, prev.GameID)

	case game != nil && inGame && prev.GameID != game.GameID:
		// The previous game ended and a new one began within one poll
		// gap. Close the old game before opening the new one.
		e.active[p.PUUID] = game
		e.mu.Unlock()
		e.emitEnd(p, prev.GameID)
		e.emitStart(p, game)

	default:
		// Still idle or still in the same game: nothing to do. Detail is
		// only fetched on transition edges, not re-fetched every cycle.
		if game != nil && inGame {
			prev.GameLength = game.GameLength
		}
		e.mu.Unlock()
	}
}

func (e *Engine) emitStart(p registry.Player, game *riot.ActiveGame) {
	startedAt := game.GameStartTime
	if startedAt <= 0 {
		// Spectator reports 0 during champ select; fall back to now.
		startedAt = time.Now().UnixMilli()
		game.GameStartTime = startedAt
	}
	log.Printf("[monitor] %s entered game %d (%d participants)", p.RiotID(), game.GameID, len(game.Participants))

	if err := e.events.RecordStart(store.GameEvent{
		PUUID:        p.PUUID,
		GameName:     p.GameName,
		TagLine:      p.TagLine,
		GameID:       game.GameID,
		StartedAt:    startedAt,
		Participants: len(game.Participants),
		RawPayload:   game.Raw,
	}); err != nil {
		log.Printf("[monitor] start event persist failed for %s: %v", p.RiotID(), err)
	}
	if e.onGameStart != nil {
		e.onGameStart(p, game)
	}
}

func (e *Engine) emitEnd(p registry.Player, gameID int64) {
	log.Printf("[monitor] %s left game %d", p.RiotID(), gameID)
	if err := e.events.RecordEnd(p.PUUID, gameID, time.Now().UnixMilli()); err != nil {
		log.Printf("[monitor] end event persist failed for %s: %v", p.RiotID(), err)
	}
	if e.onGameEnd != nil {
		e.onGameEnd(p)
	}
}
