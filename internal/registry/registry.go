// Package registry maintains the mutable set of monitored players.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/riftwatch/backend/internal/catalog"
	"github.com/riftwatch/backend/internal/riot"
)

var (
	ErrAlreadyMonitored = errors.New("registry: player already monitored")
	ErrNotMonitored     = errors.New("registry: player not monitored")
	ErrUnknownLeague    = errors.New("registry: unknown league")
)

// Resolver turns a riot id into a stable identity. Implemented by
// riot.Client and by the mock resolver.
type Resolver interface {
	ResolveAccount(ctx context.Context, gameName, tagLine, cluster string) (riot.Account, error)
	SummonerByPUUID(ctx context.Context, puuid, region string) (riot.Summoner, error)
}

// Mirror is the durable registry mirror. Implemented by store.Store.
type Mirror interface {
	SavePlayer(Player) error
	DeletePlayer(puuid string) error
}

// Registry holds monitored players in insertion order. Add and Remove are
// safe to call while the monitor iterates a snapshot; the monitor picks up
// changes at the top of its next cycle.
type Registry struct {
	mu       sync.RWMutex
	resolver Resolver
	mirror   Mirror
	players  []Player
}

func New(resolver Resolver, mirror Mirror) *Registry {
	return &Registry{resolver: resolver, mirror: mirror}
}

// Restore seeds the in-memory set from a durable snapshot at startup.
// No identity resolution happens here.
func (r *Registry) Restore(players []Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = append([]Player(nil), players...)
}

// Add resolves a riot id and inserts the player. Riot ids compare
// case-insensitively, on add and remove alike. This is the only registry
// mutation that performs network I/O; resolution runs outside the lock so
// a slow remote never blocks List or the monitor's snapshot.
func (r *Registry) Add(ctx context.Context, gameName, tagLine, region string) (Player, error) {
	cluster, err := riot.ClusterFor(region)
	if err != nil {
		return Player{}, err
	}

	if r.findByRiotID(gameName, tagLine) != nil {
		return Player{}, ErrAlreadyMonitored
	}

	acct, err := r.resolver.ResolveAccount(ctx, gameName, tagLine, cluster)
	if err != nil {
		return Player{}, err
	}

	p := Player{
		PUUID:    acct.PUUID,
		GameName: acct.GameName,
		TagLine:  acct.TagLine,
		Region:   region,
		Cluster:  cluster,
		AddedAt:  time.Now(),
	}
	// Remote may return empty names for legacy accounts; keep what the
	// caller typed in that case.
	if p.GameName == "" {
		p.GameName = gameName
	}
	if p.TagLine == "" {
		p.TagLine = tagLine
	}

	// Secondary id is best-effort; some endpoints want it but nothing in
	// the monitor requires it.
	if sum, err := r.resolver.SummonerByPUUID(ctx, p.PUUID, region); err == nil {
		p.SummonerID = sum.ID
	} else {
		log.Printf("[registry] summoner lookup failed for %s: %v", p.RiotID(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the lock: a concurrent Add may have raced us while
	// resolution was in flight.
	for i := range r.players {
		if r.players[i].PUUID == p.PUUID ||
			(strings.EqualFold(r.players[i].GameName, gameName) && strings.EqualFold(r.players[i].TagLine, tagLine)) {
			return Player{}, ErrAlreadyMonitored
		}
	}

	if err := r.mirror.SavePlayer(p); err != nil {
		return Player{}, fmt.Errorf("persisting player: %w", err)
	}
	r.players = append(r.players, p)
	return p, nil
}

// Remove drops the player from the in-memory set and the durable mirror.
// Any in-flight game the monitor tracks for them is abandoned without a
// synthetic end event; the monitor prunes it next cycle.
func (r *Registry) Remove(gameName, tagLine string) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.players {
		if strings.EqualFold(r.players[i].GameName, gameName) && strings.EqualFold(r.players[i].TagLine, tagLine) {
			p := r.players[i]
			r.players = append(r.players[:i], r.players[i+1:]...)
			if err := r.mirror.DeletePlayer(p.PUUID); err != nil {
				log.Printf("[registry] mirror delete failed for %s: %v", p.RiotID(), err)
			}
			return p, nil
		}
	}
	return Player{}, ErrNotMonitored
}

// List returns an insertion-ordered snapshot copy, safe to iterate while
// mutation is in progress elsewhere.
func (r *Registry) List() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Player(nil), r.players...)
}

// Len returns the current number of monitored players.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// AddCatalog bulk-adds the catalog entries for a league, tolerating
// per-entry failures. Duplicates and unresolvable names are logged and
// skipped; the batch never aborts. Returns the count actually added and
// the league's roster size.
func (r *Registry) AddCatalog(ctx context.Context, league string) (added, total int, err error) {
	entries := catalog.Entries(league)
	if entries == nil {
		return 0, 0, ErrUnknownLeague
	}

	for _, e := range entries {
		if _, err := r.Add(ctx, e.GameName, e.TagLine, e.Region); err != nil {
			log.Printf("[registry] catalog add %s#%s skipped: %v", e.GameName, e.TagLine, err)
			continue
		}
		added++
	}
	return added, len(entries), nil
}

// findByRiotID returns the matching player or nil. Takes the read lock.
func (r *Registry) findByRiotID(gameName, tagLine string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.players {
		if strings.EqualFold(r.players[i].GameName, gameName) && strings.EqualFold(r.players[i].TagLine, tagLine) {
			return &r.players[i]
		}
	}
	return nil
}
