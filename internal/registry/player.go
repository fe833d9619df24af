package registry

import "time"

// Player is a monitored player. PUUID is the stable identity assigned by
// account resolution and never changes; SummonerID is the platform-specific
// secondary id, resolved once and cached (may be empty if resolution
// failed — nothing below requires it).
type Player struct {
	PUUID      string    `json:"puuid"`
	GameName   string    `json:"gameName"`
	TagLine    string    `json:"tagLine"`
	Region     string    `json:"region"`
	Cluster    string    `json:"cluster"`
	SummonerID string    `json:"summonerId,omitempty"`
	AddedAt    time.Time `json:"addedAt"`
}

// RiotID renders the human-facing identifier.
func (p Player) RiotID() string {
	return p.GameName + "#" + p.TagLine
}
