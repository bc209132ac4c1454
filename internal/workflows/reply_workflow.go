package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const GenerateReplyActivityName = "GenerateAssistantReply"

// ReplyInput identifies the user message a reply is generated for.
type ReplyInput struct {
	RoomID       string
	UserID       string
	MessageID    string
	SystemPrompt string
}

type ReplyResult struct {
	Status             string
	AssistantMessageID string
	ReferencedNews     int
}

// ReplyWorkflow produces one assistant reply. The activity is attempted once;
// token-cap retries happen inside the provider call.
func ReplyWorkflow(ctx workflow.Context, input ReplyInput) (ReplyResult, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	logger := workflow.GetLogger(ctx)
	result := ReplyResult{}
	if err := workflow.ExecuteActivity(ctx, GenerateReplyActivityName, input).Get(ctx, &result); err != nil {
		logger.Error("reply activity failed", "room_id", input.RoomID, "message_id", input.MessageID, "error", err)
		return ReplyResult{Status: "failed"}, err
	}
	logger.Info("reply stored", "room_id", input.RoomID, "assistant_message_id", result.AssistantMessageID)
	result.Status = "completed"
	return result, nil
}
