package ws

import (
	"github.com/riftwatch/backend/internal/monitor"
	"github.com/riftwatch/backend/internal/registry"
)

type MessageType string

const (
	MsgSnapshot          MessageType = "snapshot"
	MsgPlayersUpdated    MessageType = "players_updated"
	MsgMonitoringStarted MessageType = "monitoring_started"
	MsgMonitoringStopped MessageType = "monitoring_stopped"
	MsgGameStarted       MessageType = "game_started"
	MsgGameEnded         MessageType = "game_ended"
	MsgAPIHealth         MessageType = "api_health"
	MsgError             MessageType = "error"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// ActiveGameInfo is the wire form of a tracked live game.
type ActiveGameInfo struct {
	PUUID         string `json:"puuid"`
	RiotID        string `json:"riotId"`
	GameID        int64  `json:"gameId"`
	GameMode      string `json:"gameMode"`
	GameStartTime int64  `json:"gameStartTime"`
	GameLength    int64  `json:"gameLength"`
}

type SnapshotPayload struct {
	Players    []registry.Player `json:"players"`
	Monitoring bool              `json:"monitoring"`
	Active     []ActiveGameInfo  `json:"active"`
}

type PlayersUpdatedPayload struct {
	Players []registry.Player `json:"players"`
}

type GameStartedPayload struct {
	Player registry.Player `json:"player"`
	Game   ActiveGameInfo  `json:"game"`
}

type GameEndedPayload struct {
	Player registry.Player `json:"player"`
}

type APIHealthPayload struct {
	Player monitor.PlayerHealth `json:"player"`
}
