// Package store persists game start/end events and the monitored player
// mirror to SQLite.
package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/riftwatch/backend/internal/registry"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_data (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    puuid           TEXT NOT NULL,
    game_name       TEXT NOT NULL,
    tag_line        TEXT NOT NULL,
    game_id         INTEGER NOT NULL,
    game_start_time INTEGER NOT NULL,     -- epoch ms
    game_end_time   INTEGER,              -- epoch ms, NULL while open
    duration_ms     INTEGER,
    participants    INTEGER NOT NULL DEFAULT 0,
    raw_payload     TEXT
);

CREATE INDEX IF NOT EXISTS idx_game_data_puuid ON game_data(puuid);
CREATE INDEX IF NOT EXISTS idx_game_data_open  ON game_data(puuid, game_id) WHERE game_end_time IS NULL;

CREATE TABLE IF NOT EXISTS monitored_players (
    puuid       TEXT PRIMARY KEY,
    game_name   TEXT NOT NULL,
    tag_line    TEXT NOT NULL,
    region      TEXT NOT NULL,
    cluster     TEXT NOT NULL,
    summoner_id TEXT NOT NULL DEFAULT '',
    added_at    INTEGER NOT NULL          -- epoch ms, preserves insertion order
);
`

// GameEvent is one immutable start row in the game_data log. End fields are
// filled in by RecordEnd, the only mutation the lifecycle allows.
type GameEvent struct {
	PUUID        string
	GameName     string
	TagLine      string
	GameID       int64
	StartedAt    int64 // epoch ms
	Participants int
	RawPayload   []byte
}

// Stats is the aggregate view over completed games.
type Stats struct {
	TotalGames         int           `json:"totalGames"`
	AvgDurationSeconds float64       `json:"avgDurationSeconds"`
	UniquePlayers      int           `json:"uniquePlayers"`
	PerPlayer          []PlayerGames `json:"perPlayer"`
}

// PlayerGames is one per-player completed-game count.
type PlayerGames struct {
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
	Games    int    `json:"games"`
}

type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite database at path and applies
// the schema.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Single writer connection; writes here are short and rare, and this
	// sidesteps SQLITE_BUSY between the monitor and request handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStart appends an immutable start row for a detected game.
func (s *Store) RecordStart(ev GameEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO game_data (puuid, game_name, tag_line, game_id, game_start_time, participants, raw_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.PUUID, ev.GameName, ev.TagLine, ev.GameID, ev.StartedAt, ev.Participants, string(ev.RawPayload))
	if err != nil {
		return fmt.Errorf("recording game start: %w", err)
	}
	return nil
}

// RecordEnd closes the open start row for (puuid, gameID), filling in the
// end time and duration. A missing open row means the loop's invariant was
// broken upstream; that is logged and swallowed, never an error.
func (s *Store) RecordEnd(puuid string, gameID, endedAt int64) error {
	res, err := s.db.Exec(`
		UPDATE game_data
		SET game_end_time = ?1, duration_ms = ?1 - game_start_time
		WHERE puuid = ?2 AND game_id = ?3 AND game_end_time IS NULL`,
		endedAt, puuid, gameID)
	if err != nil {
		return fmt.Errorf("recording game end: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Printf("[store] no open start row for puuid=%s game=%d, end event dropped", puuid, gameID)
	}
	return nil
}

// AggregateStats computes the analytics view over the event log. Only
// completed games (those with an end time) count toward totals and the
// per-player ranking.
func (s *Store) AggregateStats() (Stats, error) {
	var stats Stats

	var avg sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       AVG(duration_ms) / 1000.0,
		       (SELECT COUNT(DISTINCT puuid) FROM game_data)
		FROM game_data
		WHERE game_end_time IS NOT NULL`).Scan(&stats.TotalGames, &avg, &stats.UniquePlayers)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregating stats: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationSeconds = avg.Float64
	}

	rows, err := s.db.Query(`
		SELECT game_name, tag_line, COUNT(*) AS games
		FROM game_data
		WHERE game_end_time IS NOT NULL
		GROUP BY puuid
		ORDER BY games DESC, game_name ASC`)
	if err != nil {
		return Stats{}, fmt.Errorf("aggregating per-player stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pg PlayerGames
		if err := rows.Scan(&pg.GameName, &pg.TagLine, &pg.Games); err != nil {
			return Stats{}, fmt.Errorf("scanning per-player row: %w", err)
		}
		stats.PerPlayer = append(stats.PerPlayer, pg)
	}
	return stats, rows.Err()
}

// SavePlayer upserts the durable mirror row for a monitored player.
func (s *Store) SavePlayer(p registry.Player) error {
	_, err := s.db.Exec(`
		INSERT INTO monitored_players (puuid, game_name, tag_line, region, cluster, summoner_id, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(puuid) DO UPDATE SET
			game_name = excluded.game_name,
			tag_line = excluded.tag_line,
			summoner_id = excluded.summoner_id`,
		p.PUUID, p.GameName, p.TagLine, p.Region, p.Cluster, p.SummonerID, p.AddedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("saving player %s: %w", p.RiotID(), err)
	}
	return nil
}

// DeletePlayer removes the mirror row. Event log rows are kept.
func (s *Store) DeletePlayer(puuid string) error {
	if _, err := s.db.Exec(`DELETE FROM monitored_players WHERE puuid = ?`, puuid); err != nil {
		return fmt.Errorf("deleting player: %w", err)
	}
	return nil
}

// LoadPlayers returns the mirrored registry in insertion order. Used once
// at startup so restarts do not re-resolve identities over the network.
func (s *Store) LoadPlayers() ([]registry.Player, error) {
	rows, err := s.db.Query(`
		SELECT puuid, game_name, tag_line, region, cluster, summoner_id, added_at
		FROM monitored_players
		ORDER BY added_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("loading players: %w", err)
	}
	defer rows.Close()

	var players []registry.Player
	for rows.Next() {
		var p registry.Player
		var addedAt int64
		if err := rows.Scan(&p.PUUID, &p.GameName, &p.TagLine, &p.Region, &p.Cluster, &p.SummonerID, &addedAt); err != nil {
			return nil, fmt.Errorf("scanning player row: %w", err)
		}
		p.AddedAt = time.UnixMilli(addedAt)
		players = append(players, p)
	}
	return players, rows.Err()
}
