// Package mock provides synthetic stand-ins for the Riot API so the full
// stack runs without a credential. Players cycle between idle and fake
// games on short timers.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/riftwatch/backend/internal/riot"
)

// Resolver resolves any riot id to a deterministic synthetic identity.
type Resolver struct{}

func (Resolver) ResolveAccount(_ context.Context, gameName, tagLine, _ string) (riot.Account, error) {
	return riot.Account{
		PUUID:    "mock-" + strings.ToLower(gameName+"-"+tagLine),
		GameName: gameName,
		TagLine:  tagLine,
	}, nil
}

func (Resolver) SummonerByPUUID(_ context.Context, puuid, _ string) (riot.Summoner, error) {
	return riot.Summoner{
		ID:            "mock-sid-" + puuid,
		PUUID:         puuid,
		SummonerLevel: 30 + int(hashOf(puuid)%500),
	}, nil
}

type playerPhase struct {
	inGame    bool
	game      *riot.ActiveGame
	phaseEnds time.Time
}

// Spectator fabricates live games. Each player alternates between an idle
// phase and an in-game phase; phase lengths are randomized per transition
// so games overlap across players the way real monitoring would see them.
type Spectator struct {
	mu         sync.Mutex
	players    map[string]*playerPhase
	nextGameID int64
	rng        *rand.Rand

	GameDuration time.Duration // mean in-game phase, default 45s
	IdleDuration time.Duration // mean idle phase, default 30s
}

func NewSpectator() *Spectator {
	return &Spectator{
		players:      make(map[string]*playerPhase),
		nextGameID:   7_000_000_000,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		GameDuration: 45 * time.Second,
		IdleDuration: 30 * time.Second,
	}
}

func (s *Spectator) CurrentGame(_ context.Context, puuid, _ string) (*riot.ActiveGame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	phase, ok := s.players[puuid]
	if !ok {
		// First poll for this player. Stagger starts so a bulk add does
		// not flip everyone in the same cycle.
		phase = &playerPhase{phaseEnds: now.Add(s.jitter(s.IdleDuration))}
		s.players[puuid] = phase
	}

	if now.After(phase.phaseEnds) {
		if phase.inGame {
			phase.inGame = false
			phase.game = nil
			phase.phaseEnds = now.Add(s.jitter(s.IdleDuration))
		} else {
			phase.inGame = true
			phase.game = s.newGame(puuid, now)
			phase.phaseEnds = now.Add(s.jitter(s.GameDuration))
		}
	}

	if !phase.inGame {
		return nil, nil
	}

	g := *phase.game
	g.GameLength = int64(now.Sub(time.UnixMilli(g.GameStartTime)).Seconds())
	return &g, nil
}

func (s *Spectator) newGame(puuid string, now time.Time) *riot.ActiveGame {
	s.nextGameID++
	id := s.nextGameID

	participants := make([]riot.GameParticipant, 0, 10)
	participants = append(participants, riot.GameParticipant{
		PUUID:      puuid,
		ChampionID: int64(hashOf(puuid) % 200),
		TeamID:     100,
	})
	for i := 1; i < 10; i++ {
		team := int64(100)
		if i >= 5 {
			team = 200
		}
		participants = append(participants, riot.GameParticipant{
			PUUID:      fmt.Sprintf("mock-filler-%d-%d", id, i),
			ChampionID: s.rng.Int63n(200),
			TeamID:     team,
		})
	}

	raw, _ := json.Marshal(map[string]interface{}{
		"gameId":        id,
		"gameMode":      "CLASSIC",
		"gameStartTime": now.UnixMilli(),
		"mock":          true,
	})

	return &riot.ActiveGame{
		GameID:        id,
		GameStartTime: now.UnixMilli(),
		GameMode:      "CLASSIC",
		Participants:  participants,
		Raw:           raw,
	}
}

// jitter spreads a mean duration over 0.5x to 1.5x.
func (s *Spectator) jitter(mean time.Duration) time.Duration {
	return mean/2 + time.Duration(s.rng.Int63n(int64(mean)))
}

func hashOf(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
