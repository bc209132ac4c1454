package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
	"github.com/YU-SoftwareEng/AlphaBot/internal/config"
	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/logger"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store/postgres"
	"github.com/YU-SoftwareEng/AlphaBot/internal/workflows"
)

var errNoTemporal = errors.New("TEMPORAL_ADDRESS is required to run the reply worker")

var (
	loadEnv      = loadDotEnv
	loadConfig   = config.Load
	newLogger    = logger.New
	dialTemporal = client.Dial
	newStore     = func(conn string) (*postgres.PostgresStore, error) {
		return postgres.New(conn)
	}
	newRetriever = news.New
	newGenerator = func(cfg llm.Config, log zerolog.Logger) llm.Generator {
		return llm.NewDispatcher(cfg, log)
	}
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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
	log := newLogger(cfg.LogLevel, cfg.LogFormat, "worker")
	if strings.TrimSpace(cfg.TemporalAddress) == "" {
		return errNoTemporal
	}

	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

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
	service := chat.NewService(st, newGenerator(cfg.LLM(), log), retriever, cfg.Chat(), log)
	activities := workflows.NewReplyActivities(service, log)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ReplyWorkflow)
	w.RegisterActivity(activities)

	log.Info().Str("task_queue", cfg.TemporalTaskQueue).Msg("reply worker started")
	return w.Run(workerInterrupt())
}

func loadDotEnv() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load .env: %v\n", err)
	}
}
