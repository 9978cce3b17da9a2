package aitools

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed tool invocation.
type ErrorKind string

const (
	KindInvalidArgument     ErrorKind = "InvalidArgument"
	KindStoreUnavailable    ErrorKind = "StoreUnavailable"
	KindProviderUnavailable ErrorKind = "ProviderUnavailable"
	KindProviderTimeout     ErrorKind = "ProviderTimeout"
	KindUnknownTool         ErrorKind = "UnknownTool"
	KindInternal            ErrorKind = "Internal"
)

// ToolError is a structured tool failure. It travels across the provider
// boundary as data.
type ToolError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ToolError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Errorf builds a ToolError of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf reports the ToolError kind wrapped by err, or Internal.
func KindOf(err error) ErrorKind {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInternal
}

// Result is the outcome of one tool invocation: a JSON value or an error.
type Result struct {
	Data json.RawMessage `json:"result,omitempty"`
	Err  *ToolError      `json:"error,omitempty"`
}

// OK encodes v as a successful result.
func OK(v any) Result {
	b, err := json.Marshal(v)
	if err != nil {
		return Fail(Errorf(KindInternal, "encode result: %v", err))
	}
	return Result{Data: b}
}

// Fail wraps err as a failed result, keeping its kind when it is a ToolError.
func Fail(err error) Result {
	var te *ToolError
	if errors.As(err, &te) {
		return Result{Err: te}
	}
	return Result{Err: &ToolError{Kind: KindInternal, Message: err.Error()}}
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Observation renders the result as text for the reasoning transcript.
func (r Result) Observation() string {
	if r.Err != nil {
		return fmt.Sprintf("Error [%s]: %s", r.Err.Kind, r.Err.Message)
	}
	if len(r.Data) == 0 {
		return "null"
	}
	return string(r.Data)
}
