package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"

	"github.com/YU-SoftwareEng/AlphaBot/internal/api"
	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
	"github.com/YU-SoftwareEng/AlphaBot/internal/config"
	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/logger"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store/postgres"
	"github.com/YU-SoftwareEng/AlphaBot/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadEnv    = loadDotEnv
	loadConfig = config.Load
	newLogger  = logger.New
	newStore   = func(conn string) (*postgres.PostgresStore, error) {
		return postgres.New(conn)
	}
	newRetriever = news.New
	newGenerator = func(cfg llm.Config, log zerolog.Logger) llm.Generator {
		return llm.NewDispatcher(cfg, log)
	}
	dialTemporal       = client.Dial
	newWorkflowService = workflows.NewService
	newServer          = func(service *chat.Service, st store.Store, workflows api.WorkflowService, cfg config.Config, log zerolog.Logger) server {
		return api.NewServer(service, st, workflows, cfg, log)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	loadEnv()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel, cfg.LogFormat, "chat-api")

	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if st != nil {
		defer st.Close()
	}

	retriever, err := newRetriever(cfg.News(), log)
	if err != nil {
		log.Warn().Err(err).Msg("news retrieval unavailable, continuing without it")
		retriever = news.Disabled{}
	}
	if closer, ok := retriever.(io.Closer); ok {
		defer closer.Close()
	}
	if cfg.OpenAIAPIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; replies fail until it is configured")
	}
	service := chat.NewService(st, newGenerator(cfg.LLM(), log), retriever, cfg.Chat(), log)

	var workflowService api.WorkflowService
	if strings.TrimSpace(cfg.TemporalAddress) != "" {
		workflowClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
		if err != nil {
			return fmt.Errorf("dial temporal: %w", err)
		}
		if workflowClient != nil {
			defer workflowClient.Close()
		}
		if svc := newWorkflowService(workflowClient, cfg.TemporalTaskQueue); svc != nil {
			workflowService = svc
		}
	} else {
		log.Info().Msg("TEMPORAL_ADDRESS not set; replies are only generated by chat-completions")
	}

	srv := newServer(service, st, workflowService, cfg, log)

	addr := fmt.Sprintf(":%s", cfg.ChatAPIPort)
	log.Info().Str("addr", addr).Msg("chat api listening")
	return srv.Start(ctx, addr)
}

// loadDotEnv reads .env when present. Variables already set in the
// environment win.
func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}
}
