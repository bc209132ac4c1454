package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"
)

// chatCompletionsCall speaks the legacy chat-completions protocol.
type chatCompletionsCall struct {
	client *resty.Client
}

func (c *chatCompletionsCall) protocol() Protocol {
	return ProtocolChatCompletions
}

func (c *chatCompletionsCall) generate(ctx context.Context, messages []Message, params Params) (string, error) {
	request := openai.ChatCompletionRequest{
		Model:       params.Model,
		Messages:    toChatCompletionMessages(messages),
		Temperature: requestTemperature(params.Temperature),
		MaxTokens:   params.MaxTokens,
	}
	payload, err := postJSON(ctx, c.client, "/chat/completions", request)
	if err != nil {
		return "", err
	}
	text, ok := extractChatCompletionText(payload)
	if !ok {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// requestTemperature maps an explicit 0 to the smallest non-zero float so the
// omitempty request field still carries it.
func requestTemperature(temperature *float32) float32 {
	if temperature == nil {
		return 0
	}
	if *temperature == 0 {
		return math.SmallestNonzeroFloat32
	}
	return *temperature
}

func toChatCompletionMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	return converted
}

// extractChatCompletionText reads the first choice, preferring message content
// and falling back to a delta on the message or the choice.
func extractChatCompletionText(payload any) (string, bool) {
	choices := listField(payload, "choices")
	if len(choices) == 0 || choices[0] == nil {
		return "", false
	}
	choice := choices[0]
	message, ok := field(choice, "message")
	if !ok {
		message = choice
	}
	if content, ok := field(message, "content"); ok {
		if text, ok := CoerceText(content); ok {
			return text, true
		}
	}
	delta, ok := field(message, "delta")
	if !ok {
		delta, _ = field(choice, "delta")
	}
	return CoerceText(delta)
}

// postJSON sends body and decodes the raw JSON reply so every payload shape
// reaches the structural readers untouched.
func postJSON(ctx context.Context, client *resty.Client, path string, body any) (map[string]any, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s request failed: %s %s", path, resp.Status(), resp.String())
	}
	payload := map[string]any{}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("%s response could not be decoded: %w", path, err)
	}
	return payload, nil
}
