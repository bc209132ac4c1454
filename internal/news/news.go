package news

import (
	"context"
	"time"
)

// Document is one article returned by a similarity search.
type Document struct {
	Title       string     `json:"title"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Content     string     `json:"content"`
}

// Retriever finds news articles related to a query. A retriever that is not
// configured reports Enabled() == false and is never an error.
type Retriever interface {
	Enabled() bool
	SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]Document, error)
}

// Disabled is the retriever used when no news database is configured.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]Document, error) {
	return nil, nil
}
