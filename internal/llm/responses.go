package llm

import (
	"context"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/YU-SoftwareEng/AlphaBot/internal/metrics"
)

const incompleteMaxOutputTokens = "max_output_tokens"

// responsesCall speaks the structured responses protocol. Temperature is
// never sent and the output cap is clamped to [minTokens, maxTokens].
type responsesCall struct {
	client    *resty.Client
	minTokens int
	maxTokens int
	log       zerolog.Logger
}

type responsesRequest struct {
	Model           string               `json:"model"`
	Input           []responsesInputItem `json:"input"`
	MaxOutputTokens int                  `json:"max_output_tokens"`
}

type responsesInputItem struct {
	Role    string                 `json:"role"`
	Content []responsesContentPart `json:"content"`
}

type responsesContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *responsesCall) protocol() Protocol {
	return ProtocolResponses
}

func (c *responsesCall) generate(ctx context.Context, messages []Message, params Params) (string, error) {
	input := formatResponsesInput(messages)
	outputCap := clampOutputTokens(params.MaxTokens, c.minTokens, c.maxTokens)

	payload, err := c.create(ctx, params.Model, input, outputCap)
	if err != nil {
		return "", err
	}
	c.log.Debug().
		Str("model", params.Model).
		Str("status", stringField(payload, "status")).
		Int("outputs", len(responsesOutputs(payload))).
		Int("max_output_tokens", outputCap).
		Msg("responses call done")

	if incompleteReason(payload) == incompleteMaxOutputTokens && outputCap < c.maxTokens {
		retryCap := nextOutputTokenCap(outputCap, c.maxTokens)
		c.log.Warn().
			Str("model", params.Model).
			Int("max_output_tokens", outputCap).
			Int("retry_max_output_tokens", retryCap).
			Msg("responses call truncated at output cap, retrying once")
		metrics.ProviderRetries.Inc()
		payload, err = c.create(ctx, params.Model, input, retryCap)
		if err != nil {
			return "", err
		}
	}

	text, ok := extractResponsesText(payload)
	if !ok {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *responsesCall) create(ctx context.Context, model string, input []responsesInputItem, maxOutputTokens int) (map[string]any, error) {
	return postJSON(ctx, c.client, "/responses", responsesRequest{
		Model:           model,
		Input:           input,
		MaxOutputTokens: maxOutputTokens,
	})
}

// formatResponsesInput turns role/content pairs into content blocks. Only
// assistant turns are output_text.
func formatResponsesInput(messages []Message) []responsesInputItem {
	items := make([]responsesInputItem, 0, len(messages))
	for _, msg := range messages {
		role := msg.Role
		if role == "" {
			role = "user"
		}
		partType := "input_text"
		if role == "assistant" {
			partType = "output_text"
		}
		items = append(items, responsesInputItem{
			Role:    role,
			Content: []responsesContentPart{{Type: partType, Text: msg.Content}},
		})
	}
	return items
}

func clampOutputTokens(requested int, minTokens int, maxTokens int) int {
	value := requested
	if value < minTokens {
		value = minTokens
	}
	if value > maxTokens {
		value = maxTokens
	}
	return value
}

func nextOutputTokenCap(current int, ceiling int) int {
	grown := int(float64(current) * 1.5)
	if grown < current+256 {
		grown = current + 256
	}
	if grown > ceiling {
		return ceiling
	}
	return grown
}

func incompleteReason(payload any) string {
	details, ok := field(payload, "incomplete_details")
	if !ok {
		return ""
	}
	reason, ok := field(details, "reason")
	if !ok {
		return ""
	}
	text, _ := CoerceText(reason)
	return text
}

func responsesOutputs(payload any) []any {
	outputs := listField(payload, "output")
	if len(outputs) == 0 {
		outputs = listField(payload, "outputs")
	}
	return outputs
}

// extractResponsesText returns the first text block of a message output,
// falling back to the aggregated output_text field.
func extractResponsesText(payload any) (string, bool) {
	for _, output := range responsesOutputs(payload) {
		outputType := stringField(output, "type")
		if outputType != "message" && outputType != "output_text" {
			continue
		}
		for _, content := range listField(output, "content") {
			contentType := stringField(content, "type")
			if contentType != "text" && contentType != "output_text" {
				continue
			}
			if value, ok := field(content, "text"); ok {
				if text, ok := CoerceText(value); ok {
					return text, true
				}
			}
			if value, ok := field(content, "content"); ok {
				if text, ok := CoerceText(value); ok {
					return text, true
				}
			}
		}
	}
	fallback, _ := field(payload, "output_text")
	return CoerceText(fallback)
}
