package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store/memory"
)

var fixedNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	mu     sync.Mutex
	text   string
	err    error
	calls  [][]llm.Message
	params []llm.Params
}

func (f *fakeGenerator) Generate(ctx context.Context, messages []llm.Message, params llm.Params) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]llm.Message{}, messages...))
	f.params = append(f.params, params)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeRetriever struct {
	disabled bool
	results  map[string][]news.Document
	err      error
	panicMsg string
	queries  []string
}

func (f *fakeRetriever) Enabled() bool { return !f.disabled }

func (f *fakeRetriever) SimilaritySearch(ctx context.Context, query string, topK int, threshold float64) ([]news.Document, error) {
	f.queries = append(f.queries, query)
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

type serviceFixture struct {
	svc       *Service
	store     *memory.MemoryStore
	generator *fakeGenerator
	retriever *fakeRetriever
}

func newFixture(t *testing.T, opts ...Option) *serviceFixture {
	t.Helper()
	return newFixtureWithStore(t, memory.New(), opts...)
}

func newFixtureWithStore(t *testing.T, st store.Store, opts ...Option) *serviceFixture {
	t.Helper()
	mem, _ := st.(*memory.MemoryStore)
	generator := &fakeGenerator{text: "assistant says hi"}
	retriever := &fakeRetriever{results: map[string][]news.Document{}}
	counter := 0
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("id-%d", counter)
		}),
	}
	svc := NewService(st, generator, retriever, Config{
		NewsEnabled:   true,
		NewsThreshold: 0.35,
		Model:         "gpt-5-mini",
		Temperature:   0.2,
		MaxTokens:     512,
	}, zerolog.Nop(), append(base, opts...)...)
	return &serviceFixture{svc: svc, store: mem, generator: generator, retriever: retriever}
}

func seedRoom(t *testing.T, st store.Store, room store.ChatRoom) store.ChatRoom {
	t.Helper()
	if room.TrashCan == "" {
		room.TrashCan = store.TrashOut
	}
	if room.CreatedAt == "" {
		room.CreatedAt = fixedNow.Format(time.RFC3339Nano)
	}
	require.NoError(t, st.CreateRoom(context.Background(), room))
	return room
}

func publishedOn(year int, month time.Month, day int) *time.Time {
	value := time.Date(year, month, day, 8, 30, 0, 0, time.UTC)
	return &value
}
