package llm

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse means the provider answered but carried no usable text.
// The dispatcher turns it into FallbackMessage.
var ErrEmptyResponse = errors.New("provider returned empty response")

var ErrProviderNotConfigured = errors.New("language model provider is not configured")

// GatewayError wraps transport level failures talking to the provider.
type GatewayError struct {
	Protocol Protocol
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("language model gateway failure (%s): %v", e.Protocol, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
