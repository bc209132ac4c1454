package chat

import (
	"errors"
	"fmt"
)

// ErrRoomNotFound covers rooms that do not exist and rooms owned by someone
// else. Callers cannot tell the two apart.
var ErrRoomNotFound = errors.New("chat room not found")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field string, message string) error {
	return &ValidationError{Field: field, Message: message}
}
