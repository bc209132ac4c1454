package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/YU-SoftwareEng/AlphaBot/internal/llm"
	"github.com/YU-SoftwareEng/AlphaBot/internal/news"
	"github.com/YU-SoftwareEng/AlphaBot/internal/store"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

type Reply struct {
	UserMessage      store.Message
	AssistantMessage store.Message
	Documents        []news.Document
}

// CreateMessageAndReply stores the user's message, generates the assistant
// reply and stores it. The two writes are separate: when generation fails
// the user message stays and is returned with the error.
func (s *Service) CreateMessageAndReply(ctx context.Context, roomID string, userID string, content string, systemPrompt string) (Reply, error) {
	userMsg, err := s.SaveUserMessage(ctx, roomID, userID, content)
	if err != nil {
		return Reply{}, err
	}
	assistantMsg, docs, err := s.GenerateAssistantReply(ctx, roomID, userID, systemPrompt)
	if err != nil {
		return Reply{UserMessage: userMsg}, err
	}
	return Reply{UserMessage: userMsg, AssistantMessage: assistantMsg, Documents: docs}, nil
}

func (s *Service) SaveUserMessage(ctx context.Context, roomID string, userID string, content string) (store.Message, error) {
	room, err := s.requireRoom(ctx, roomID, userID)
	if err != nil {
		return store.Message{}, err
	}
	if strings.TrimSpace(content) == "" {
		return store.Message{}, invalid("content", "content must not be empty")
	}
	msg := s.newMessage(room.ID, userID, roleUser, content)
	if err := s.store.AddMessage(ctx, msg); err != nil {
		return store.Message{}, fmt.Errorf("save user message: %w", err)
	}
	return msg, nil
}

// GenerateAssistantReply answers the current transcript of the room and
// stores the reply. Referenced news is appended as a footer and returned.
func (s *Service) GenerateAssistantReply(ctx context.Context, roomID string, userID string, systemPrompt string) (store.Message, []news.Document, error) {
	room, err := s.requireRoom(ctx, roomID, userID)
	if err != nil {
		return store.Message{}, nil, err
	}

	messages, history, err := s.BuildContext(ctx, room.ID, s.cfg.HistoryLimit, systemPrompt)
	if err != nil {
		return store.Message{}, nil, err
	}
	docs := []news.Document{}
	if summary, ok := s.BuildNewsSummary(ctx, room.StockCode, s.latestUserText(history)); ok {
		messages = insertSummary(messages, summary.Text, systemPrompt != "")
		docs = summary.Documents
	}

	temperature := s.cfg.Temperature
	text, err := s.llm.Generate(ctx, messages, llm.Params{
		Model:       s.cfg.Model,
		Temperature: &temperature,
		MaxTokens:   s.cfg.MaxTokens,
	})
	if err != nil {
		s.log.Error().Err(err).Str("room_id", room.ID).Msg("assistant reply failed")
		return store.Message{}, nil, err
	}
	if len(docs) > 0 {
		text += referencesFooter(docs)
	}

	assistant := s.newMessage(room.ID, userID, roleAssistant, text)
	if err := s.store.AddMessage(ctx, assistant); err != nil {
		return store.Message{}, nil, fmt.Errorf("save assistant message: %w", err)
	}
	s.log.Debug().
		Str("room_id", room.ID).
		Int("history", len(history)).
		Int("documents", len(docs)).
		Msg("assistant reply stored")
	return assistant, docs, nil
}
