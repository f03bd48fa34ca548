package scrape

import (
	"errors"
	"fmt"
	"strings"

	"github.com/handlebauer/scrape/internal/cache"
	"github.com/handlebauer/scrape/internal/reconcile"
)

var (
	// ErrNotFound is returned when a ref has no (fresh) entry in the store.
	ErrNotFound = cache.ErrNotFound
	// ErrRequestFailed matches every *RequestError via errors.Is.
	ErrRequestFailed = errors.New("request failed")
	// ErrCacheDisabled is returned by store operations on a client built WithoutCache.
	ErrCacheDisabled = errors.New("cache is disabled")
)

// ReconciliationError reports a ref that points outside the client's origin.
type ReconciliationError struct {
	Origin string
	Ref    string
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("ref %q cannot be reconciled with origin %q (use AllowDistinctRef if intentional)", e.Ref, e.Origin)
}

func (e *ReconciliationError) Unwrap() error {
	return reconcile.ErrUnreconcilable
}

// RequestError is a failed transport attempt: either the transport itself
// failed (StatusCode == 0) or the origin answered with a non-2xx status.
type RequestError struct {
	URL        string
	StatusCode int
	Status     string
	Attempt    int
	RequestID  string
	Cause      error
}

func (e *RequestError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s failed", e.URL)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %s", e.statusText())
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Attempt > 0 {
		fmt.Fprintf(&b, " (attempt %d)", e.Attempt+1)
	}
	return b.String()
}

func (e *RequestError) statusText() string {
	if e.Status != "" {
		return e.Status
	}
	return fmt.Sprintf("%d", e.StatusCode)
}

func (e *RequestError) Unwrap() error {
	return e.Cause
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// UnsupportedHandlerError is returned by AddHandler for an unknown kind or a
// function whose signature does not match the kind.
type UnsupportedHandlerError struct {
	Kind   HandlerKind
	Reason string
}

func (e *UnsupportedHandlerError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported handler %q: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("unsupported handler %q: expected one of request, response, failedRequest", e.Kind)
}

// StoreError wraps a failure of the local content store.
type StoreError struct {
	Op  string
	Ref string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Ref, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// FieldError names one invalid construction or call argument.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ValidationError collects every FieldError found while validating input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "invalid options: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// retryable reports whether a failed attempt may be retried.
func retryable(err error) bool {
	var (
		storeErr  *StoreError
		admission *admissionError
	)
	switch {
	case errors.As(err, &storeErr), errors.As(err, &admission):
		return false
	case errors.Is(err, reconcile.ErrUnreconcilable):
		return false
	}
	return true
}
