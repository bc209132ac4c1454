package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

const DefaultTaskQueue = "alphabot-replies"

type Service struct {
	client    client.Client
	taskQueue string
}

func NewService(client client.Client, taskQueue string) *Service {
	if taskQueue == "" {
		taskQueue = DefaultTaskQueue
	}
	return &Service{client: client, taskQueue: taskQueue}
}

// StartReply schedules ReplyWorkflow for a stored user message. The workflow
// id is derived from the message so one message gets at most one reply run.
func (s *Service) StartReply(ctx context.Context, input ReplyInput) error {
	options := client.StartWorkflowOptions{
		ID:        workflowID(input.MessageID),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, ReplyWorkflow, input)
	return err
}

func workflowID(messageID string) string {
	return fmt.Sprintf("reply:%s", messageID)
}
