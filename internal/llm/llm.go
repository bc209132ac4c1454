package llm

import (
	"context"
	"strings"
	"time"
)

// FallbackMessage is returned in place of an assistant reply when the provider
// answered but no text could be extracted.
const FallbackMessage = "죄송합니다. 지금은 답변을 생성할 수 없어요. 잠시 후 다시 시도해주세요."

const defaultBaseURL = "https://api.openai.com/v1"

var DefaultResponsesModelPrefixes = []string{"gpt-4.1", "gpt-5-mini", "o4", "o5", "o1"}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the per-call generation settings. Zero values, and a nil
// Temperature, take the dispatcher defaults.
type Params struct {
	Model       string
	Temperature *float32
	MaxTokens   int
}

type Generator interface {
	Generate(ctx context.Context, messages []Message, params Params) (string, error)
}

type Config struct {
	APIKey                   string
	BaseURL                  string
	Model                    string
	Temperature              float32
	MaxTokens                int
	ResponsesMinOutputTokens int
	ResponsesMaxOutputTokens int
	ResponsesModelPrefixes   []string
	Timeout                  time.Duration
}

type Protocol string

const (
	ProtocolChatCompletions Protocol = "chat_completions"
	ProtocolResponses       Protocol = "responses"
)

// SelectProtocol picks the structured responses protocol when the lowercased
// model starts with one of the prefixes.
func SelectProtocol(model string, prefixes []string) Protocol {
	normalized := strings.ToLower(strings.TrimSpace(model))
	for _, prefix := range prefixes {
		prefix = strings.ToLower(strings.TrimSpace(prefix))
		if prefix != "" && strings.HasPrefix(normalized, prefix) {
			return ProtocolResponses
		}
	}
	return ProtocolChatCompletions
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func defaultIfZero(value int, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
