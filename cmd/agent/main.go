package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"echovault/internal/agent"
	"echovault/internal/config"
	"echovault/internal/logging"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logging.Init()

	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	}

	var cfg agent.Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOr("AGENT_BASE_URL", "http://localhost:3001"), "EchoVault gateway base URL")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", time.Duration(config.GetIntEnv("AGENT_POLL_INTERVAL", 3))*time.Second, "How often to poll for new memories")
	flag.DurationVar(&cfg.RequestTimeout, "request-timeout", time.Duration(config.GetIntEnv("AGENT_REQUEST_TIMEOUT", 30))*time.Second, "Per-request timeout against the gateway")
	flag.StringVar(&cfg.StateFile, "state-file", envOr("AGENT_STATE_FILE", ".echovault_agent_state.json"), "Path to the durable cursor file")
	flag.StringVar(&cfg.InvitesDir, "invites-dir", envOr("AGENT_ICS_DIR", "generated_invites"), "Directory for generated .ics invites")
	flag.BoolVar(&cfg.Backfill, "backfill", envOr("AGENT_BACKFILL", "false") == "true", "Process the entire memory history on first run")
	flag.Parse()

	state, err := agent.LoadState(cfg.StateFile)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	// Coaching is optional: without an API key the agent still files
	// invites and falls back to template plans.
	var coach *agent.Coach
	if key, err := config.SanitizeAPIKey(os.Getenv("OPENAI_API_KEY")); err == nil {
		clientOpts := []option.RequestOption{option.WithAPIKey(key)}
		if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
		}
		client := openai.NewClient(clientOpts...)
		coach = agent.NewCoach(&client)
	} else {
		log.Printf("⚠️  [AGENT] No usable OPENAI_API_KEY, coaching uses fallback plans: %v", err)
		coach = agent.NewCoach(nil)
	}

	client := agent.NewClient(cfg.BaseURL, cfg.RequestTimeout)
	poller := agent.NewPoller(cfg, client, coach, state)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := poller.Run(ctx); err != nil {
		log.Fatalf("❌ [AGENT] %v", err)
	}
	log.Println("🛑 [AGENT] Stopped")
}
