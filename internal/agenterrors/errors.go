// Package agenterrors defines the typed error kinds used across the agent,
// mirroring the error-response shapes in the teacher's internal/api/responses.go.
package agenterrors

import (
	"fmt"
	"strings"
)

// EntityError reports that an entire entity failed factory validation.
type EntityError struct {
	Entity string
	Reason string
}

func (e *EntityError) Error() string {
	return fmt.Sprintf("entity %s: %s", e.Entity, e.Reason)
}

func NewEntityError(entity, reason string) *EntityError {
	return &EntityError{Entity: entity, Reason: reason}
}

// PropertyError reports that a single property violated its requirement.
type PropertyError struct {
	Property string
	Reason   string
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("property %s: %s", e.Property, e.Reason)
}

// ErrorList accumulates PropertyErrors alongside the successfully parsed
// remainder of an entity, so a factory can report every violation at once
// instead of failing on the first.
type ErrorList struct {
	Errors []*PropertyError
}

func (l *ErrorList) Add(property, reason string) {
	l.Errors = append(l.Errors, &PropertyError{Property: property, Reason: reason})
}

func (l *ErrorList) HasErrors() bool {
	return len(l.Errors) > 0
}

func (l *ErrorList) Error() string {
	msgs := make([]string, len(l.Errors))
	for i, e := range l.Errors {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// ProtocolError reports a malformed SHDR line or JSON payload. The
// connection continues; the offending line is dropped.
type ProtocolError struct {
	Source string
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error from %s: %s (%q)", e.Source, e.Reason, e.Line)
}

func NewProtocolError(source, line, reason string) *ProtocolError {
	return &ProtocolError{Source: source, Line: line, Reason: reason}
}

// ConnectionError reports a resolve/connect/read/write failure that should
// trigger the adapter's reconnect state machine.
type ConnectionError struct {
	Op     string
	Source string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func NewConnectionError(source, op string, err error) *ConnectionError {
	return &ConnectionError{Source: source, Op: op, Err: err}
}

// RestError is a typed, status-coded response surfaced to REST/WebSocket
// clients: invalid parameter, unsupported verb, unauthorized origin, not
// found, and so on.
type RestError struct {
	Status  int
	Kind    string
	Message string
	Errors  []string
}

func (e *RestError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, strings.Join(e.Errors, "; "))
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewRestError(status int, kind, message string) *RestError {
	return &RestError{Status: status, Kind: kind, Message: message}
}

func NewInvalidParameterValue(errs []string) *RestError {
	return &RestError{
		Status:  400,
		Kind:    "INVALID_PARAMETER_VALUE",
		Message: "one or more parameters were invalid",
		Errors:  errs,
	}
}

// Fatal marks an error that must terminate the process with exit 1:
// duplicate device uuid at start-up, device-model load failure, port bind
// failure. cmd/mtc-agent/main.go does not use this type; it exits through
// its logger's Fatal on those failures.
type Fatal struct {
	Reason string
	Err    error
}

func (e *Fatal) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal: %s", e.Reason)
}

func (e *Fatal) Unwrap() error { return e.Err }

func NewFatal(reason string, err error) *Fatal {
	return &Fatal{Reason: reason, Err: err}
}
