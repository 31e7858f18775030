package runner

import (
	"context"
	"errors"
	"fmt"
)

const (
	ReasonMissingField  = "missing_field"
	ReasonInvalidField  = "invalid_field"
	ReasonMalformedJSON = "malformed_json"
	ReasonVenueError    = "venue_error"
)

// ValidationError — алерт не прошёл проверку полей (HTTP 400).
type ValidationError struct {
	Reason string
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Reason, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

func missingField(field string) error {
	return &ValidationError{Reason: ReasonMissingField, Field: field}
}

func invalidField(field, detail string) error {
	return &ValidationError{Reason: ReasonInvalidField, Field: field, Detail: detail}
}

// VenueError — биржа не ответила или отказала.
type VenueError struct {
	Op  string
	Err error
}

func (e *VenueError) Error() string {
	return fmt.Sprintf("venue %s: %v", e.Op, e.Err)
}

func (e *VenueError) Unwrap() error { return e.Err }

// Timeout — отвалились по таймауту (транзиентная ошибка).
func (e *VenueError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}
