package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an offer id is unknown to the store or the backend.
	ErrNotFound = errors.New("offer not found")

	// ErrAlreadyInProgress rejects a second submit/update while one is outstanding.
	ErrAlreadyInProgress = errors.New("operation already in progress")

	// ErrConflictingEdit indicates two image operations on the same axis.
	ErrConflictingEdit = errors.New("conflicting image operations")
)

// FieldErrors maps a form field key (title_en, duration, mainImage, ...) to
// its messages, in the order the rules were evaluated.
type FieldErrors map[string][]string

func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

func (fe FieldErrors) Merge(other FieldErrors) {
	for k, msgs := range other {
		fe[k] = append(fe[k], msgs...)
	}
}

func (fe FieldErrors) Empty() bool { return len(fe) == 0 }

// Fields returns the failing field keys in sorted order.
func (fe FieldErrors) Fields() []string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidationError is the local, never-sent-to-network rejection of a draft or edit.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields.Fields(), ", ")
}

// TransportError is a failure reported by (or on the way to) the Offer Service.
type TransportError struct {
	Status  int // 0 when no response was received
	Message string
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return "offer service: " + e.Message
	}
	return fmt.Sprintf("offer service %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 from the backend.
func (e *TransportError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// SubmissionError wraps a transport failure of a create or update call.
// The caller keeps its draft or edit state and may retry.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string { return "submission failed: " + e.Message() }
func (e *SubmissionError) Unwrap() error { return e.Err }

// Message is the human readable part suitable for a dismissible banner.
func (e *SubmissionError) Message() string {
	var te *TransportError
	if errors.As(e.Err, &te) {
		return te.Message
	}
	return e.Err.Error()
}
