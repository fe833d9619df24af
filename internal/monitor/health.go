package monitor

import (
	"sync"
	"time"

	"github.com/riftwatch/backend/internal/registry"
)

// HealthStatus classifies a monitored player's polling health.
type HealthStatus string

const (
	StatusHealthy HealthStatus = "healthy"
	StatusFailing HealthStatus = "failing"
)

// HealthChangeFunc is invoked when a player's polling health crosses the
// failure threshold in either direction. Called from the engine's worker.
type HealthChangeFunc func(p registry.Player, status HealthStatus, failures int, lastErr string)

// PlayerHealth is one entry in the health snapshot.
type PlayerHealth struct {
	PUUID    string       `json:"puuid"`
	RiotID   string       `json:"riotId"`
	Status   HealthStatus `json:"status"`
	Failures int          `json:"failures"`
	LastErr  string       `json:"lastError,omitempty"`
}

// pollHealth tracks consecutive poll failures for a single player.
// Guarded by its own mutex because HTTP handlers read snapshots while the
// engine's worker records results.
type pollHealth struct {
	mu       sync.Mutex
	failures int
	lastErr  string
	lastFail time.Time
	emitted  HealthStatus
}

// OnHealthChange registers the health transition listener. Set before Start.
func (e *Engine) OnHealthChange(fn HealthChangeFunc) { e.onHealthChange = fn }

func (e *Engine) healthFor(puuid string) *pollHealth {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.health[puuid]
	if !ok {
		h = &pollHealth{emitted: StatusHealthy}
		e.health[puuid] = h
	}
	return h
}

func (e *Engine) recordPollSuccess(p registry.Player) {
	h := e.healthFor(p.PUUID)

	h.mu.Lock()
	h.failures = 0
	h.lastErr = ""
	changed := h.emitted == StatusFailing
	if changed {
		h.emitted = StatusHealthy
	}
	h.mu.Unlock()

	if changed && e.onHealthChange != nil {
		e.onHealthChange(p, StatusHealthy, 0, "")
	}
}

func (e *Engine) recordPollFailure(p registry.Player, err error) {
	h := e.healthFor(p.PUUID)

	h.mu.Lock()
	h.failures++
	h.lastErr = err.Error()
	h.lastFail = time.Now()

	status := StatusHealthy
	if h.failures >= e.cfg.HealthThreshold {
		status = StatusFailing
	}
	changed := status != h.emitted
	if changed {
		h.emitted = status
	}
	failures, lastErr := h.failures, h.lastErr
	h.mu.Unlock()

	if changed && e.onHealthChange != nil {
		e.onHealthChange(p, status, failures, lastErr)
	}
}

// HealthSnapshot returns health entries for all players with recorded poll
// failures. Players with a clean history are omitted.
func (e *Engine) HealthSnapshot() []PlayerHealth {
	players := e.players.List()
	byPUUID := make(map[string]registry.Player, len(players))
	for _, p := range players {
		byPUUID[p.PUUID] = p
	}

	e.mu.Lock()
	tracked := make(map[string]*pollHealth, len(e.health))
	for puuid, h := range e.health {
		tracked[puuid] = h
	}
	e.mu.Unlock()

	var out []PlayerHealth
	for puuid, h := range tracked {
		h.mu.Lock()
		failures, lastErr := h.failures, h.lastErr
		h.mu.Unlock()
		if failures == 0 {
			continue
		}
		status := StatusHealthy
		if failures >= e.cfg.HealthThreshold {
			status = StatusFailing
		}
		entry := PlayerHealth{
			PUUID:    puuid,
			Status:   status,
			Failures: failures,
			LastErr:  lastErr,
		}
		if p, ok := byPUUID[puuid]; ok {
			entry.RiotID = p.RiotID()
		}
		out = append(out, entry)
	}
	return out
}
