package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/YU-SoftwareEng/AlphaBot/internal/metrics"
)

const defaultTimeout = 60 * time.Second

// call is one provider protocol.
type call interface {
	protocol() Protocol
	generate(ctx context.Context, messages []Message, params Params) (string, error)
}

// Dispatcher routes a generation request to the protocol the model speaks and
// normalizes the outcome: text, FallbackMessage, or a *GatewayError.
type Dispatcher struct {
	cfg   Config
	log   zerolog.Logger
	calls map[Protocol]call
}

func NewDispatcher(cfg Config, log zerolog.Logger) *Dispatcher {
	cfg.BaseURL = strings.TrimRight(defaultIfEmpty(cfg.BaseURL, defaultBaseURL), "/")
	cfg.ResponsesMinOutputTokens = defaultIfZero(cfg.ResponsesMinOutputTokens, 1024)
	cfg.ResponsesMaxOutputTokens = defaultIfZero(cfg.ResponsesMaxOutputTokens, 4096)
	if cfg.ResponsesModelPrefixes == nil {
		cfg.ResponsesModelPrefixes = DefaultResponsesModelPrefixes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	log = log.With().Str("component", "llm").Logger()
	d := &Dispatcher{cfg: cfg, log: log, calls: map[Protocol]call{}}
	for _, c := range []call{
		&chatCompletionsCall{client: client},
		&responsesCall{
			client:    client,
			minTokens: cfg.ResponsesMinOutputTokens,
			maxTokens: cfg.ResponsesMaxOutputTokens,
			log:       log,
		},
	} {
		d.calls[c.protocol()] = c
	}
	return d
}

func (d *Dispatcher) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	params = d.withDefaults(params)
	protocol := SelectProtocol(params.Model, d.cfg.ResponsesModelPrefixes)
	if d.cfg.APIKey == "" {
		metrics.ProviderCalls.WithLabelValues(string(protocol), "error").Inc()
		return "", &GatewayError{Protocol: protocol, Err: ErrProviderNotConfigured}
	}

	d.log.Debug().
		Str("model", params.Model).
		Str("protocol", string(protocol)).
		Int("messages", len(messages)).
		Msg("generate start")

	started := time.Now()
	text, err := d.calls[protocol].generate(ctx, messages, params)
	metrics.ProviderDuration.WithLabelValues(string(protocol)).Observe(time.Since(started).Seconds())

	switch {
	case errors.Is(err, ErrEmptyResponse):
		d.log.Warn().
			Str("model", params.Model).
			Str("protocol", string(protocol)).
			Msg("provider response had no text, returning fallback")
		metrics.ProviderCalls.WithLabelValues(string(protocol), "fallback").Inc()
		return FallbackMessage, nil
	case err != nil:
		d.log.Error().Err(err).
			Str("model", params.Model).
			Str("protocol", string(protocol)).
			Msg("provider call failed")
		metrics.ProviderCalls.WithLabelValues(string(protocol), "error").Inc()
		return "", &GatewayError{Protocol: protocol, Err: err}
	}

	d.log.Debug().
		Str("protocol", string(protocol)).
		Int("length", len(text)).
		Msg("generate done")
	metrics.ProviderCalls.WithLabelValues(string(protocol), "ok").Inc()
	return text, nil
}

func (d *Dispatcher) withDefaults(params Params) Params {
	if strings.TrimSpace(params.Model) == "" {
		params.Model = d.cfg.Model
	}
	if params.Temperature == nil {
		temperature := d.cfg.Temperature
		params.Temperature = &temperature
	}
	if params.MaxTokens <= 0 {
		params.MaxTokens = d.cfg.MaxTokens
	}
	return params
}
