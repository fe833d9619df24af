package riot

import "encoding/json"

// Account is the identity resolved from a riot id (game name + tag line).
// PUUID is the stable identifier everything else keys on.
type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Summoner is the platform-specific record for a PUUID. ID is the encrypted
// summoner id some endpoints still require.
type Summoner struct {
	ID            string `json:"id"`
	PUUID         string `json:"puuid"`
	SummonerLevel int    `json:"summonerLevel"`
}

// ActiveGame is a live game as reported by spectator-v5. Raw retains the
// full response payload for event logging.
type ActiveGame struct {
	GameID        int64             `json:"gameId"`
	GameStartTime int64             `json:"gameStartTime"` // epoch ms
	GameLength    int64             `json:"gameLength"`    // seconds
	GameMode      string            `json:"gameMode"`
	Participants  []GameParticipant `json:"participants"`

	Raw json.RawMessage `json:"-"`
}

// GameParticipant is the subset of spectator participant data we keep.
type GameParticipant struct {
	PUUID      string `json:"puuid"`
	ChampionID int64  `json:"championId"`
	TeamID     int64  `json:"teamId"`
}
