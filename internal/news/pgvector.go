package news

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// Embedder is the slice of the OpenAI client used to embed queries.
type Embedder interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

type Config struct {
	URL            string
	APIKey         string
	BaseURL        string
	EmbeddingModel string
}

// PGVectorRetriever ranks news_articles by cosine similarity between the
// stored embedding and the embedded query.
type PGVectorRetriever struct {
	db       *sql.DB
	embedder Embedder
	model    string
	log      zerolog.Logger
}

var openDB = sql.Open

// New connects to the news database. An empty URL or a missing API key
// yields Disabled.
func New(cfg Config, log zerolog.Logger) (Retriever, error) {
	log = log.With().Str("component", "news").Logger()
	if strings.TrimSpace(cfg.URL) == "" {
		log.Info().Msg("news retrieval disabled: no database configured")
		return Disabled{}, nil
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Warn().Msg("news retrieval disabled: no embeddings API key")
		return Disabled{}, nil
	}

	db, err := openDB("pgx", cfg.URL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("news database unreachable: %w", err)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}
	return NewPGVectorRetriever(db, openai.NewClientWithConfig(clientCfg), cfg.EmbeddingModel, log), nil
}

func NewPGVectorRetriever(db *sql.DB, embedder Embedder, model string, log zerolog.Logger) *PGVectorRetriever {
	if strings.TrimSpace(model) == "" {
		model = defaultEmbeddingModel
	}
	return &PGVectorRetriever{db: db, embedder: embedder, model: model, log: log}
}

func (r *PGVectorRetriever) Enabled() bool {
	return r != nil && r.db != nil && r.embedder != nil
}

func (r *PGVectorRetriever) Close() error {
	return r.db.Close()
}

func (r *PGVectorRetriever) SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]Document, error) {
	query = strings.TrimSpace(query)
	if query == "" || topK <= 0 {
		return []Document{}, nil
	}
	embedding, err := r.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	const sqlQuery = `
		SELECT title, published_at, content
		FROM news_articles
		WHERE 1 - (embedding <=> $1::vector) >= $3
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, sqlQuery, formatVector(embedding), topK, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Document{}
	for rows.Next() {
		var title sql.NullString
		var publishedAt sql.NullTime
		var doc Document
		if err := rows.Scan(&title, &publishedAt, &doc.Content); err != nil {
			return nil, err
		}
		doc.Title = title.String
		if publishedAt.Valid {
			published := publishedAt.Time.UTC()
			doc.PublishedAt = &published
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	r.log.Debug().
		Int("top_k", topK).
		Float64("threshold", threshold).
		Int("results", len(results)).
		Msg("news similarity search")
	return results, nil
}

func (r *PGVectorRetriever) embed(ctx context.Context, query string) ([]float32, error) {
	resp, err := r.embedder.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{query},
		Model: openai.EmbeddingModel(r.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, errors.New("embed query: empty embedding")
	}
	return resp.Data[0].Embedding, nil
}

func formatVector(values []float32) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, fmt.Sprintf("%g", value))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
