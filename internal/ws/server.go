package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/riftwatch/backend/internal/monitor"
	"github.com/riftwatch/backend/internal/registry"
	"github.com/riftwatch/backend/internal/riot"
	"github.com/riftwatch/backend/internal/store"
)

// MatchFetcher serves the match history endpoint. Implemented by
// riot.Client; nil in mock mode, which disables the endpoint.
type MatchFetcher interface {
	MatchIDs(ctx context.Context, puuid, cluster string, count int) ([]string, error)
	Match(ctx context.Context, matchID, cluster string) (json.RawMessage, error)
}

type Server struct {
	registry       *registry.Registry
	store          *store.Store
	engine         *monitor.Engine
	matches        MatchFetcher
	broadcaster    *Broadcaster
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
}

func NewServer(reg *registry.Registry, st *store.Store, engine *monitor.Engine, matches MatchFetcher, allowedOrigins []string, authToken string, throttle, snapshotInterval time.Duration) *Server {
	s := &Server{
		registry:       reg,
		store:          st,
		engine:         engine,
		matches:        matches,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      authToken,
	}
	s.broadcaster = NewBroadcaster(s.Snapshot, throttle, snapshotInterval)

	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// Broadcaster exposes the ws fan-out so main can wire the engine hooks.
func (s *Server) Broadcaster() *Broadcaster { return s.broadcaster }

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/players", s.handlePlayers)
	mux.HandleFunc("/api/players/", s.handlePlayerRoutes)
	mux.HandleFunc("/api/monitor", s.handleMonitorStatus)
	mux.HandleFunc("/api/monitor/start", s.handleMonitorStart)
	mux.HandleFunc("/api/monitor/stop", s.handleMonitorStop)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/catalog/", s.handleCatalog)
	mux.HandleFunc("/api/health", s.handleHealth)
}

// Snapshot builds the full-state payload for new ws clients and periodic
// refreshes.
func (s *Server) Snapshot() SnapshotPayload {
	players := s.registry.List()
	active := make([]ActiveGameInfo, 0)
	for _, p := range players {
		if g, ok := s.engine.ActiveGame(p.PUUID); ok {
			active = append(active, activeGameInfo(p, &g))
		}
	}
	return SnapshotPayload{
		Players:    players,
		Monitoring: s.engine.Running(),
		Active:     active,
	}
}

func activeGameInfo(p registry.Player, g *riot.ActiveGame) ActiveGameInfo {
	return ActiveGameInfo{
		PUUID:         p.PUUID,
		RiotID:        p.RiotID(),
		GameID:        g.GameID,
		GameMode:      g.GameMode,
		GameStartTime: g.GameStartTime,
		GameLength:    g.GameLength,
	}
}

// GameStartInfo adapts a transition for the broadcaster hooks wired in main.
func GameStartInfo(p registry.Player, g *riot.ActiveGame) GameStartedPayload {
	return GameStartedPayload{Player: p, Game: activeGameInfo(p, g)}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()
}

type addPlayerRequest struct {
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
	Region   string `json:"region"`
}

type removePlayerRequest struct {
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.registry.List())

	case http.MethodPost:
		var req addPlayerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		p, err := s.registry.Add(r.Context(), req.GameName, req.TagLine, req.Region)
		if err != nil {
			writeRegistryError(w, err)
			return
		}
		s.notifyPlayersUpdated()
		writeJSON(w, http.StatusCreated, p)

	case http.MethodDelete:
		var req removePlayerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if _, err := s.registry.Remove(req.GameName, req.TagLine); err != nil {
			writeRegistryError(w, err)
			return
		}
		s.notifyPlayersUpdated()
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handlePlayerRoutes serves /api/players/{puuid}/matches.
func (s *Server) handlePlayerRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/players/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[1] != "matches" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.handleMatches(w, r, parts[0])
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request, puuid string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.matches == nil {
		http.Error(w, "match history not available", http.StatusServiceUnavailable)
		return
	}

	var player *registry.Player
	for _, p := range s.registry.List() {
		if p.PUUID == puuid {
			player = &p
			break
		}
	}
	if player == nil {
		http.Error(w, "player not monitored", http.StatusNotFound)
		return
	}

	count := 5
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 20 {
			http.Error(w, "count must be 1-20", http.StatusBadRequest)
			return
		}
		count = n
	}

	ids, err := s.matches.MatchIDs(r.Context(), puuid, player.Cluster, count)
	if err != nil {
		writeRiotError(w, err)
		return
	}

	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		m, err := s.matches.Match(r.Context(), id, player.Cluster)
		if err != nil {
			log.Printf("[api] match %s fetch failed: %v", id, err)
			continue
		}
		out = append(out, m)
	}
	writeJSON(w, http.StatusOK, out)
}

type monitorStatus struct {
	Running     bool                   `json:"running"`
	Players     int                    `json:"players"`
	ActiveGames int                    `json:"activeGames"`
	Health      []monitor.PlayerHealth `json:"health,omitempty"`
}

func (s *Server) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, monitorStatus{
		Running:     s.engine.Running(),
		Players:     s.registry.Len(),
		ActiveGames: s.engine.ActiveCount(),
		Health:      s.engine.HealthSnapshot(),
	})
}

func (s *Server) handleMonitorStart(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.engine.Start() {
		if s.engine.Running() {
			http.Error(w, "monitoring already running", http.StatusConflict)
		} else {
			http.Error(w, "no players to monitor", http.StatusConflict)
		}
		return
	}
	s.broadcaster.MonitoringStarted()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonitorStop(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.engine.Stop()
	s.broadcaster.MonitoringStopped()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.store.AggregateStats()
	if err != nil {
		http.Error(w, fmt.Sprintf("stats query failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type catalogResult struct {
	League string `json:"league"`
	Added  int    `json:"added"`
	Total  int    `json:"total"`
}

// handleCatalog serves POST /api/catalog/{league}, bulk-adding that
// league's roster.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	league := strings.TrimPrefix(r.URL.Path, "/api/catalog/")
	added, total, err := s.registry.AddCatalog(r.Context(), league)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if added > 0 {
		s.notifyPlayersUpdated()
	}
	writeJSON(w, http.StatusOK, catalogResult{
		League: league,
		Added:  added,
		Total:  total,
	})
}

type healthResponse struct {
	Status      string                 `json:"status"`
	Monitoring  bool                   `json:"monitoring"`
	Players     []monitor.PlayerHealth `json:"players,omitempty"`
	Diagnostics monitor.Diagnostics    `json:"diagnostics"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	playersHealth := s.engine.HealthSnapshot()
	status := "ok"
	for _, p := range playersHealth {
		if p.Status == monitor.StatusFailing {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:      status,
		Monitoring:  s.engine.Running(),
		Players:     playersHealth,
		Diagnostics: monitor.CollectDiagnostics(),
	})
}

func (s *Server) notifyPlayersUpdated() {
	s.broadcaster.QueuePlayersUpdated(PlayersUpdatedPayload{Players: s.registry.List()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrAlreadyMonitored):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, registry.ErrNotMonitored):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, riot.ErrNotFound):
		http.Error(w, "riot id not found", http.StatusNotFound)
	case errors.Is(err, riot.ErrUnknownRegion):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		writeRiotError(w, err)
	}
}

func writeRiotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, riot.ErrRateLimited):
		http.Error(w, "rate limited by riot api", http.StatusTooManyRequests)
	case errors.Is(err, riot.ErrInvalidCredential):
		http.Error(w, "riot api credential rejected", http.StatusBadGateway)
	case errors.Is(err, riot.ErrUnavailable):
		http.Error(w, "riot api unavailable", http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Riftwatch-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(host string, port int, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	log.Printf("Server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}
