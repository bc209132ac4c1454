package workflows

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/YU-SoftwareEng/AlphaBot/internal/chat"
)

// ReplyActivities runs the reply pipeline on a worker.
type ReplyActivities struct {
	chat *chat.Service
	log  zerolog.Logger
}

func NewReplyActivities(service *chat.Service, log zerolog.Logger) *ReplyActivities {
	return &ReplyActivities{
		chat: service,
		log:  log.With().Str("component", "workflows").Logger(),
	}
}

func (a *ReplyActivities) GenerateAssistantReply(ctx context.Context, input ReplyInput) (ReplyResult, error) {
	msg, docs, err := a.chat.GenerateAssistantReply(ctx, input.RoomID, input.UserID, input.SystemPrompt)
	if err != nil {
		a.log.Error().Err(err).
			Str("room_id", input.RoomID).
			Str("message_id", input.MessageID).
			Msg("generate assistant reply failed")
		return ReplyResult{}, err
	}
	return ReplyResult{AssistantMessageID: msg.ID, ReferencedNews: len(docs)}, nil
}
