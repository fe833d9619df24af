package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riftwatch/backend/internal/registry"
	"github.com/riftwatch/backend/internal/riot"
	"github.com/riftwatch/backend/internal/store"
)

// scriptedSpectator returns a per-player sequence of poll results. Once a
// script runs out, its last entry repeats.
type scriptedSpectator struct {
	mu      sync.Mutex
	scripts map[string][]pollResult
	cursor  map[string]int
}

type pollResult struct {
	game *riot.ActiveGame
	err  error
}

func newScriptedSpectator() *scriptedSpectator {
	return &scriptedSpectator{
		scripts: make(map[string][]pollResult),
		cursor:  make(map[string]int),
	}
}

func (s *scriptedSpectator) script(puuid string, results ...pollResult) {
	s.scripts[puuid] = results
}

func (s *scriptedSpectator) CurrentGame(_ context.Context, puuid, _ string) (*riot.ActiveGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	script := s.scripts[puuid]
	if len(script) == 0 {
		return nil, nil
	}
	i := s.cursor[puuid]
	if i >= len(script) {
		i = len(script) - 1
	} else {
		s.cursor[puuid]++
	}
	r := script[i]
	return r.game, r.err
}

// memEventLog collects recorded transitions in memory.
type memEventLog struct {
	mu       sync.Mutex
	starts   []store.GameEvent
	ends     []endRecord
	failWith error
}

type endRecord struct {
	puuid   string
	gameID  int64
	endedAt int64
}

func (l *memEventLog) RecordStart(ev store.GameEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return l.failWith
	}
	l.starts = append(l.starts, ev)
	return nil
}

func (l *memEventLog) RecordEnd(puuid string, gameID, endedAt int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failWith != nil {
		return l.failWith
	}
	l.ends = append(l.ends, endRecord{puuid, gameID, endedAt})
	return nil
}

// staticPlayers is a fixed PlayerSource.
type staticPlayers struct {
	mu      sync.Mutex
	players []registry.Player
}

func (s *staticPlayers) List() []registry.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]registry.Player(nil), s.players...)
}

func (s *staticPlayers) set(players ...registry.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = players
}

func testPlayer(puuid, name string) registry.Player {
	return registry.Player{PUUID: puuid, GameName: name, TagLine: "KR1", Region: "kr", Cluster: "asia"}
}

func game(id int64) *riot.ActiveGame {
	return &riot.ActiveGame{
		GameID:        id,
		GameStartTime: 1_700_000_000_000,
		Participants:  make([]riot.GameParticipant, 10),
		Raw:           []byte(fmt.Sprintf(`{"gameId":%d}`, id)),
	}
}

func newTestEngine(spec Spectator, players PlayerSource, events EventLog) *Engine {
	return NewEngine(Config{
		PollInterval:    time.Hour, // cycles are driven manually in tests
		StopTimeout:     time.Second,
		HealthThreshold: 3,
	}, spec, players, events)
}

func TestFullSessionLifecycle(t *testing.T) {
	// Cycle 1: idle. Cycle 2: game S1 starts. Cycle 3: still S1.
	// Cycle 4: game over. Exactly one start and one end event.
	spec := newScriptedSpectator()
	spec.script("X1",
		pollResult{},                 // cycle 1: no game
		pollResult{game: game(101)},  // cycle 2: game starts
		pollResult{game: game(101)},  // cycle 3: still playing
		pollResult{},                 // cycle 4: game over
	)
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"))
	events := &memEventLog{}

	var startFired, endFired int
	e := newTestEngine(spec, players, events)
	e.OnGameStart(func(p registry.Player, g *riot.ActiveGame) {
		startFired++
		if p.PUUID != "X1" || g.GameID != 101 {
			t.Errorf("start hook got player=%s game=%d", p.PUUID, g.GameID)
		}
	})
	e.OnGameEnd(func(p registry.Player) {
		endFired++
	})

	ctx := context.Background()
	e.cycle(ctx) // 1
	if len(events.starts) != 0 || e.ActiveCount() != 0 {
		t.Fatalf("after idle cycle: %d starts, %d active", len(events.starts), e.ActiveCount())
	}

	e.cycle(ctx) // 2
	if len(events.starts) != 1 {
		t.Fatalf("after game start: %d start events, want 1", len(events.starts))
	}
	if events.starts[0].GameID != 101 || events.starts[0].PUUID != "X1" {
		t.Errorf("start event = %+v", events.starts[0])
	}
	if events.starts[0].Participants != 10 {
		t.Errorf("participants snapshot = %d, want 10", events.starts[0].Participants)
	}
	if e.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", e.ActiveCount())
	}

	e.cycle(ctx) // 3
	if len(events.starts) != 1 || len(events.ends) != 0 {
		t.Fatalf("still-playing cycle emitted events: %d starts, %d ends", len(events.starts), len(events.ends))
	}

	e.cycle(ctx) // 4
	if len(events.ends) != 1 {
		t.Fatalf("after game end: %d end events, want 1", len(events.ends))
	}
	if events.ends[0].gameID != 101 || events.ends[0].puuid != "X1" {
		t.Errorf("end event = %+v", events.ends[0])
	}
	if e.ActiveCount() != 0 {
		t.Errorf("ActiveCount = %d, want 0", e.ActiveCount())
	}
	if startFired != 1 || endFired != 1 {
		t.Errorf("hooks fired start=%d end=%d, want 1 and 1", startFired, endFired)
	}
}

func TestBackToBackGamesSplitIntoTwoSessions(t *testing.T) {
	// The player finishes game 101 and is already in game 102 by the next
	// poll. One cycle must close 101 and open 102.
	spec := newScriptedSpectator()
	spec.script("X1",
		pollResult{game: game(101)},
		pollResult{game: game(102)},
		pollResult{},
	)
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"))
	events := &memEventLog{}
	e := newTestEngine(spec, players, events)

	var hookOrder []string
	e.OnGameStart(func(_ registry.Player, g *riot.ActiveGame) {
		hookOrder = append(hookOrder, fmt.Sprintf("start:%d", g.GameID))
	})
	e.OnGameEnd(func(registry.Player) {
		hookOrder = append(hookOrder, "end")
	})

	ctx := context.Background()
	e.cycle(ctx)
	e.cycle(ctx) // game id changed: end 101, start 102

	if len(events.ends) != 1 || events.ends[0].gameID != 101 {
		t.Fatalf("ends = %+v, want game 101 closed", events.ends)
	}
	if len(events.starts) != 2 || events.starts[1].GameID != 102 {
		t.Fatalf("starts = %+v, want games 101 and 102 opened", events.starts)
	}
	if g, ok := e.ActiveGame("X1"); !ok || g.GameID != 102 {
		t.Errorf("tracked game = %+v, want 102", g)
	}

	want := []string{"start:101", "end", "start:102"}
	if len(hookOrder) != len(want) {
		t.Fatalf("hook order = %v, want %v", hookOrder, want)
	}
	for i := range want {
		if hookOrder[i] != want[i] {
			t.Fatalf("hook order = %v, want %v", hookOrder, want)
		}
	}

	e.cycle(ctx) // idle again
	if len(events.ends) != 2 || events.ends[1].gameID != 102 {
		t.Errorf("ends = %+v, want 102 closed on the final cycle", events.ends)
	}
}

func TestPollErrorSkipsPlayerWithoutStateChange(t *testing.T) {
	spec := newScriptedSpectator()
	spec.script("X1",
		pollResult{game: game(101)},
		pollResult{err: riot.ErrUnavailable}, // blip: no state change
		pollResult{game: game(101)},
		pollResult{},
	)
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"))
	events := &memEventLog{}
	e := newTestEngine(spec, players, events)

	ctx := context.Background()
	e.cycle(ctx)
	e.cycle(ctx) // error cycle
	if e.ActiveCount() != 1 {
		t.Errorf("poll error changed state: ActiveCount = %d, want 1", e.ActiveCount())
	}
	e.cycle(ctx)
	e.cycle(ctx)

	if len(events.starts) != 1 || len(events.ends) != 1 {
		t.Errorf("got %d starts, %d ends; want exactly 1 of each across the blip", len(events.starts), len(events.ends))
	}
}

func TestOnePlayerErrorDoesNotBlockOthers(t *testing.T) {
	spec := newScriptedSpectator()
	spec.script("X1", pollResult{err: riot.ErrUnavailable})
	spec.script("X2", pollResult{game: game(202)})
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"), testPlayer("X2", "Chovy"))
	events := &memEventLog{}
	e := newTestEngine(spec, players, events)

	e.cycle(context.Background())

	if len(events.starts) != 1 || events.starts[0].PUUID != "X2" {
		t.Errorf("X2's transition lost behind X1's error: starts = %+v", events.starts)
	}
}

func TestPersistFailureKeepsInMemoryTransition(t *testing.T) {
	spec := newScriptedSpectator()
	spec.script("X1", pollResult{game: game(101)}, pollResult{game: game(101)})
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"))
	events := &memEventLog{failWith: errors.New("disk full")}
	e := newTestEngine(spec, players, events)

	ctx := context.Background()
	e.cycle(ctx)
	if e.ActiveCount() != 1 {
		t.Errorf("persist failure rolled back in-memory state: ActiveCount = %d, want 1", e.ActiveCount())
	}

	// Next cycle must not re-emit a start for the same unbroken session.
	events.failWith = nil
	e.cycle(ctx)
	if len(events.starts) != 0 {
		t.Errorf("start re-emitted after persist failure: %d", len(events.starts))
	}
}

func TestRemovedPlayerAbandonedWithoutEndEvent(t *testing.T) {
	spec := newScriptedSpectator()
	spec.script("X1", pollResult{game: game(101)}, pollResult{game: game(101)})
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"))
	events := &memEventLog{}
	e := newTestEngine(spec, players, events)

	var endFired int
	e.OnGameEnd(func(registry.Player) { endFired++ })

	ctx := context.Background()
	e.cycle(ctx)
	if e.ActiveCount() != 1 {
		t.Fatalf("ActiveCount = %d, want 1", e.ActiveCount())
	}

	players.set() // player removed mid-session
	e.cycle(ctx)

	if e.ActiveCount() != 0 {
		t.Errorf("dangling active entry survived removal: ActiveCount = %d", e.ActiveCount())
	}
	if len(events.ends) != 0 || endFired != 0 {
		t.Errorf("synthetic end emitted on removal: %d events, %d hook calls", len(events.ends), endFired)
	}
}

func TestStartNoOpWhenRegistryEmpty(t *testing.T) {
	e := newTestEngine(newScriptedSpectator(), &staticPlayers{}, &memEventLog{})
	if e.Start() {
		t.Error("Start with empty registry returned true")
	}
	if e.Running() {
		t.Error("engine running with empty registry")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	spec := newScriptedSpectator()
	spec.script("X1", pollResult{game: game(101)})
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"))
	e := NewEngine(Config{
		PollInterval:    10 * time.Millisecond,
		StopTimeout:     time.Second,
		HealthThreshold: 3,
	}, spec, players, &memEventLog{})

	if !e.Start() {
		t.Fatal("Start returned false")
	}
	if e.Start() {
		t.Error("second Start returned true while running")
	}

	// Wait for the initial cycle to land.
	deadline := time.Now().Add(2 * time.Second)
	for e.ActiveCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if e.ActiveCount() != 1 {
		t.Fatal("engine never observed the active game")
	}

	e.Stop()
	if e.Running() {
		t.Error("Running() = true after Stop")
	}
	if e.ActiveCount() != 0 {
		t.Error("Stop did not clear in-memory active state")
	}

	// Registry survives a stop; only the engine's transient state is cleared.
	if len(players.List()) != 1 {
		t.Error("player list changed across Stop")
	}

	// Stop on a stopped engine is a no-op.
	e.Stop()
}

func TestHealthTransitions(t *testing.T) {
	spec := newScriptedSpectator()
	spec.script("X1",
		pollResult{err: riot.ErrUnavailable},
		pollResult{err: riot.ErrUnavailable},
		pollResult{err: riot.ErrUnavailable},
		pollResult{},
	)
	players := &staticPlayers{}
	players.set(testPlayer("X1", "Faker"))
	e := newTestEngine(spec, players, &memEventLog{})

	var transitions []HealthStatus
	e.OnHealthChange(func(_ registry.Player, status HealthStatus, _ int, _ string) {
		transitions = append(transitions, status)
	})

	ctx := context.Background()
	e.cycle(ctx)
	e.cycle(ctx)
	if len(transitions) != 0 {
		t.Fatalf("health transition before threshold: %v", transitions)
	}

	e.cycle(ctx) // third consecutive failure crosses the threshold
	if len(transitions) != 1 || transitions[0] != StatusFailing {
		t.Fatalf("transitions = %v, want [failing]", transitions)
	}

	snap := e.HealthSnapshot()
	if len(snap) != 1 || snap[0].Status != StatusFailing || snap[0].Failures != 3 {
		t.Errorf("HealthSnapshot = %+v", snap)
	}

	e.cycle(ctx) // recovery
	if len(transitions) != 2 || transitions[1] != StatusHealthy {
		t.Errorf("transitions = %v, want [failing healthy]", transitions)
	}
}
