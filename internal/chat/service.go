package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

const (
	defaultHistoryLimit     = 30
	defaultNewsTopK         = 12
	defaultNewsSummaryLimit = 4
)

// Config holds the chat tunables resolved once at startup.
type Config struct {
	HistoryLimit     int
	NewsEnabled      bool
	NewsTopK         int
	NewsSummaryLimit int
	NewsThreshold    float64
	Model            string
	Temperature      float32
	MaxTokens        int
}

// Service implements the room lifecycle and the reply pipeline on top of a
// store, a language model and an optional news retriever.
type Service struct {
	store          store.Store
	llm            llm.Generator
	news           news.Retriever
	cfg            Config
	log            zerolog.Logger
	latestUserText func([]store.Message) string
	now            func() time.Time
	newID          func() string

	seqMu   sync.Mutex
	lastSeq int64
}

type Option func(*Service)

// WithLatestUserText replaces the extractor that picks the utterance used as
// the first news query.
func WithLatestUserText(fn func([]store.Message) string) Option {
	return func(s *Service) {
		if fn != nil {
			s.latestUserText = fn
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

func NewService(st store.Store, generator llm.Generator, retriever news.Retriever, cfg Config, log zerolog.Logger, opts ...Option) *Service {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.NewsTopK <= 0 {
		cfg.NewsTopK = defaultNewsTopK
	}
	if cfg.NewsSummaryLimit <= 0 {
		cfg.NewsSummaryLimit = defaultNewsSummaryLimit
	}
	if retriever == nil {
		retriever = news.Disabled{}
	}
	s := &Service{
		store:          st,
		llm:            generator,
		news:           retriever,
		cfg:            cfg,
		log:            log.With().Str("component", "chat").Logger(),
		latestUserText: LatestUserText,
		now:            time.Now,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewsAvailable reports whether the wired retriever can serve lookups.
func (s *Service) NewsAvailable() bool {
	return s.news != nil && s.news.Enabled()
}

// requireRoom loads a room owned by userID or fails with ErrRoomNotFound.
func (s *Service) requireRoom(ctx context.Context, roomID string, userID string) (store.ChatRoom, error) {
	room, err := s.store.GetRoom(ctx, roomID, userID)
	if err != nil {
		return store.ChatRoom{}, err
	}
	if room == nil {
		return store.ChatRoom{}, ErrRoomNotFound
	}
	return *room, nil
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// newMessage stamps a message with the clock. Sequence is strictly
// increasing within a process even when the clock does not move.
func (s *Service) newMessage(roomID string, userID string, role string, content string) store.Message {
	now := s.now().UTC()
	s.seqMu.Lock()
	seq := now.UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	s.seqMu.Unlock()
	return store.Message{
		ID:        s.newID(),
		RoomID:    roomID,
		UserID:    userID,
		Role:      role,
		Content:   content,
		Sequence:  seq,
		CreatedAt: now.Format(time.RFC3339Nano),
	}
}
