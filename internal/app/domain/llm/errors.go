package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is the typed failure taxonomy of a structured-output call.
type ErrorKind string

const (
	KindTimeout       ErrorKind = "timeout"
	KindSchemaInvalid ErrorKind = "schema-invalid"
	KindParseError    ErrorKind = "parse-error"
	KindQuota         ErrorKind = "quota"
	KindOther         ErrorKind = "other"
)

// StageError is the typed failure a classifier stage surfaces to the
// orchestrator. It wraps the cause and names the stage it happened in.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// KindOf extracts the error kind from any error chain; non-stage errors
// classify as other.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindOther
}

// classifyTransportError maps a model transport failure to a kind. The SDK
// does not expose typed quota errors, so status text is inspected the same
// way the rest of the call path does.
func classifyTransportError(ctx context.Context, err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return KindTimeout
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout") {
		return KindTimeout
	}
	if strings.Contains(msg, "429") || strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota") {
		return KindQuota
	}
	return KindOther
}
