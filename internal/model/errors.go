package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// FieldError is a single validation violation tied to one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string { return e.Field + ": " + e.Message }

// ValidationErrors accumulates every violation found in one pass over an
// input. It never short-circuits: callers can always report the full list.
type ValidationErrors struct {
	Fields []FieldError
}

// Addf records one violation against field.
func (e *ValidationErrors) Addf(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationErrors) HasErrors() bool { return len(e.Fields) > 0 }

// Messages returns the violations as flat strings.
func (e *ValidationErrors) Messages() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.String())
	}
	return out
}

func (e *ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// NotFoundError marks an unknown id on a get/update/delete.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// BackendErrorKind classifies per-datasource backend failures.
type BackendErrorKind string

const (
	BackendTimeout           BackendErrorKind = "timeout"
	BackendConnectionRefused BackendErrorKind = "connection_refused"
	BackendInvalidResponse   BackendErrorKind = "invalid_response"
)

// BackendError is a failure talking to one datasource's backend. Aggregate
// reads convert it into a status entry; monitor-scoped operations surface it
// to the caller.
type BackendError struct {
	Kind         BackendErrorKind
	DatasourceID string
	Message      string
	Err          error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend %s (%s): %s: %v", e.DatasourceID, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("backend %s (%s): %s", e.DatasourceID, e.Kind, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ClassifyBackendErr maps a transport error onto a BackendErrorKind.
func ClassifyBackendErr(err error) BackendErrorKind {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return BackendTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return BackendTimeout
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") {
		return BackendConnectionRefused
	}
	return BackendInvalidResponse
}

// ConflictWarning describes an advisory overlap between suppression rules.
// It never blocks creation.
type ConflictWarning struct {
	RuleIDs      []string  `json:"ruleIds"`
	LabelKeys    []string  `json:"labelKeys"`
	OverlapStart time.Time `json:"overlapStart"`
	OverlapEnd   time.Time `json:"overlapEnd"`
}
