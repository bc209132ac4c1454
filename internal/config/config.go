package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
)

type Config struct {
	ChatAPIPort string `env:"CHAT_API_PORT" envDefault:"8080"`

	PostgresURL      string `env:"POSTGRES_URL"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"alphabot"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"alphabot"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"alphabot"`
	NewsPostgresURL  string `env:"NEWS_POSTGRES_URL"`

	TemporalAddress   string `env:"TEMPORAL_ADDRESS"`
	TemporalTaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"alphabot-replies"`

	OpenAIAPIKey             string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL            string        `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel              string        `env:"OPENAI_MODEL" envDefault:"gpt-5-mini"`
	OpenAITemperature        float32       `env:"OPENAI_TEMPERATURE" envDefault:"0.2"`
	OpenAIMaxTokens          int           `env:"OPENAI_MAX_TOKENS" envDefault:"512"`
	OpenAITimeout            time.Duration `env:"OPENAI_TIMEOUT" envDefault:"60s"`
	ResponsesMinOutputTokens int           `env:"OPENAI_RESPONSES_MIN_OUTPUT_TOKENS" envDefault:"1024"`
	ResponsesMaxOutputTokens int           `env:"OPENAI_RESPONSES_MAX_OUTPUT_TOKENS" envDefault:"4096"`
	ResponsesModelPrefixes   []string      `env:"OPENAI_RESPONSES_MODEL_PREFIXES" envSeparator:"," envDefault:"gpt-4.1,gpt-5-mini,o4,o5,o1"`

	ChatHistoryLimit      int     `env:"CHAT_HISTORY_LIMIT" envDefault:"30"`
	RAGNewsEnabled        Switch  `env:"CHAT_ENABLE_RAG_NEWS" envDefault:"true"`
	RAGNewsTopK           int     `env:"CHAT_RAG_NEWS_TOP_K" envDefault:"12"`
	RAGNewsSummaryLimit   int     `env:"CHAT_RAG_NEWS_SUMMARY_LIMIT" envDefault:"4"`
	RAGNewsSimilarity     float64 `env:"CHAT_RAG_NEWS_SIMILARITY" envDefault:"0.35"`
	RAGNewsEmbeddingModel string  `env:"CHAT_RAG_EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`

	JWTSecret string `env:"AUTH_JWT_SECRET"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Switch is an on/off setting that only turns off for "0", "false" or "no".
type Switch bool

func (s *Switch) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "0", "false", "no":
		*s = false
	default:
		*s = true
	}
	return nil
}

func Load() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env config: %w", err)
	}
	if strings.TrimSpace(cfg.PostgresURL) == "" {
		cfg.PostgresURL = buildPostgresURL(cfg)
	}
	cfg.OpenAIAPIKey = strings.TrimSpace(cfg.OpenAIAPIKey)
	cfg.ResponsesModelPrefixes = normalizePrefixes(cfg.ResponsesModelPrefixes)
	if cfg.ResponsesMinOutputTokens > cfg.ResponsesMaxOutputTokens {
		return Config{}, fmt.Errorf("OPENAI_RESPONSES_MIN_OUTPUT_TOKENS (%d) exceeds OPENAI_RESPONSES_MAX_OUTPUT_TOKENS (%d)",
			cfg.ResponsesMinOutputTokens, cfg.ResponsesMaxOutputTokens)
	}
	return cfg, nil
}

// LLM projects the provider settings consumed by the dispatcher.
func (c Config) LLM() llm.Config {
	return llm.Config{
		APIKey:                   c.OpenAIAPIKey,
		BaseURL:                  c.OpenAIBaseURL,
		Model:                    c.OpenAIModel,
		Temperature:              c.OpenAITemperature,
		MaxTokens:                c.OpenAIMaxTokens,
		ResponsesMinOutputTokens: c.ResponsesMinOutputTokens,
		ResponsesMaxOutputTokens: c.ResponsesMaxOutputTokens,
		ResponsesModelPrefixes:   c.ResponsesModelPrefixes,
		Timeout:                  c.OpenAITimeout,
	}
}

func (c Config) Chat() chat.Config {
	return chat.Config{
		HistoryLimit:     c.ChatHistoryLimit,
		NewsEnabled:      bool(c.RAGNewsEnabled),
		NewsTopK:         c.RAGNewsTopK,
		NewsSummaryLimit: c.RAGNewsSummaryLimit,
		NewsThreshold:    c.RAGNewsSimilarity,
		Model:            c.OpenAIModel,
		Temperature:      c.OpenAITemperature,
		MaxTokens:        c.OpenAIMaxTokens,
	}
}

// News projects the retriever settings. Embeddings share the provider key and
// base URL with generation.
func (c Config) News() news.Config {
	return news.Config{
		URL:            c.NewsPostgresURL,
		APIKey:         c.OpenAIAPIKey,
		BaseURL:        c.OpenAIBaseURL,
		EmbeddingModel: c.RAGNewsEmbeddingModel,
	}
}

func buildPostgresURL(cfg Config) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB)
}

func normalizePrefixes(prefixes []string) []string {
	normalized := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix == "" {
			continue
		}
		normalized = append(normalized, prefix)
	}
	return normalized
}
