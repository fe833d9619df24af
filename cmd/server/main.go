package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riftwatch/backend/internal/config"
	"github.com/riftwatch/backend/internal/mock"
	"github.com/riftwatch/backend/internal/monitor"
	"github.com/riftwatch/backend/internal/ratelimit"
	"github.com/riftwatch/backend/internal/registry"
	"github.com/riftwatch/backend/internal/riot"
	"github.com/riftwatch/backend/internal/store"
	"github.com/riftwatch/backend/internal/ws"
)

func main() {
	mockMode := flag.Bool("mock", false, "Use a synthetic spectator instead of the Riot API")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	dbPath := flag.String("db", "", "Override SQLite database path")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open store at %s: %v", cfg.Storage.Path, err)
	}
	defer st.Close()

	var (
		resolver  registry.Resolver
		spectator monitor.Spectator
		matches   ws.MatchFetcher
	)

	if *mockMode {
		log.Println("Starting in mock mode (synthetic games, no API key needed)")
		resolver = mock.Resolver{}
		spectator = mock.NewSpectator()
	} else {
		if cfg.Riot.APIKey == "" {
			log.Fatal("No Riot API key configured; set riot.api_key or RIOT_API_KEY, or run with -mock")
		}

		limiter := ratelimit.New(cfg.Riot.RateLimit.MaxCalls, cfg.Riot.RateLimit.Window)
		client := riot.NewClient(cfg.Riot.APIKey, limiter, cfg.Riot.RequestTimeout, cfg.Riot.RetryCooldown)

		verifyCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := client.VerifyCredential(verifyCtx, "na1")
		cancel()
		if err != nil {
			log.Fatalf("Riot API credential check failed: %v", err)
		}
		log.Println("Riot API credential verified")

		resolver = client
		spectator = client
		matches = client
	}

	reg := registry.New(resolver, st)
	if players, err := st.LoadPlayers(); err != nil {
		log.Printf("Failed to restore players from store: %v", err)
	} else if len(players) > 0 {
		reg.Restore(players)
		log.Printf("Restored %d monitored players", len(players))
	}

	engine := monitor.NewEngine(monitor.Config{
		PollInterval:    cfg.Monitor.PollInterval,
		StopTimeout:     cfg.Monitor.StopTimeout,
		HealthThreshold: cfg.Monitor.HealthThreshold,
	}, spectator, reg, st)

	authToken := cfg.Server.AuthToken
	if authToken == "" && cfg.Server.Host != "127.0.0.1" && cfg.Server.Host != "localhost" {
		// Exposed beyond loopback without a token: generate one so the
		// API is never open by accident.
		if authToken, err = config.GenerateToken(); err != nil {
			log.Fatalf("Failed to generate auth token: %v", err)
		}
		log.Printf("No auth token configured; generated one: %s", authToken)
	}

	server := ws.NewServer(reg, st, engine, matches, cfg.Server.AllowedOrigins, authToken,
		cfg.WS.BroadcastThrottle, cfg.WS.SnapshotInterval)
	broadcaster := server.Broadcaster()

	engine.OnGameStart(func(p registry.Player, g *riot.ActiveGame) {
		broadcaster.GameStarted(ws.GameStartInfo(p, g))
	})
	engine.OnGameEnd(func(p registry.Player) {
		broadcaster.GameEnded(ws.GameEndedPayload{Player: p})
	})
	engine.OnHealthChange(func(p registry.Player, status monitor.HealthStatus, failures int, lastErr string) {
		broadcaster.APIHealth(ws.APIHealthPayload{Player: monitor.PlayerHealth{
			PUUID:    p.PUUID,
			RiotID:   p.RiotID(),
			Status:   status,
			Failures: failures,
			LastErr:  lastErr,
		}})
	})

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		engine.Stop()
		st.Close()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
