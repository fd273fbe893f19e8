package acctplan

import (
	"errors"
	"fmt"
)

var (
	// ErrCompanyNameRequired is returned when a research request cannot
	// determine which company to research.
	ErrCompanyNameRequired = errors.New("acctplan: company name could not be determined")

	// ErrEmptyQuery is returned by the router for an empty or all-whitespace query.
	ErrEmptyQuery = errors.New("acctplan: query cannot be empty")

	// ErrQueryTooLong is returned when a query exceeds the router's length limit.
	ErrQueryTooLong = errors.New("acctplan: query too long")

	// ErrUnsafeQuery is returned when a query contains script-injection markers.
	ErrUnsafeQuery = errors.New("acctplan: query contains invalid characters")

	// ErrSessionNotFound is returned when a session id has no known state.
	ErrSessionNotFound = errors.New("acctplan: session not found")

	// ErrPlanNotFound is returned when a PlanStore lookup misses.
	ErrPlanNotFound = errors.New("acctplan: account plan not found")

	// ErrUnknownSection is returned when an update/regenerate operation
	// names a section outside the closed section-key set.
	ErrUnknownSection = errors.New("acctplan: unknown account plan section")

	// ErrNoSERP is returned internally when SearchAPI exhausts retries;
	// callers see a degraded (possibly empty) result, not this error.
	ErrNoSERP = errors.New("acctplan: search provider exhausted retries")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("acctplan: invalid configuration")

	// ErrStoreClosed is returned when operating on a closed store.
	ErrStoreClosed = errors.New("acctplan: store is closed")
)

// FailureKind classifies an external-collaborator failure so callers can
// apply the per-kind retry policy described in the design notes: network
// and rate-limit failures are retried with different backoff schedules,
// truncation triggers a prompt-shrinking retry, safety blocks never retry.
type FailureKind int

const (
	// FailureUnknown is the zero value; treated like FailureNetwork by
	// generic callers that don't special-case it.
	FailureUnknown FailureKind = iota
	FailureInvalidInput
	FailureNetwork
	FailureRateLimit
	FailureTruncated
	FailureSafetyBlocked
	FailureDataCorruption
	FailureConfig
	FailureTimeout
	FailureAuth
)

func (k FailureKind) String() string {
	switch k {
	case FailureInvalidInput:
		return "invalid_input"
	case FailureNetwork:
		return "network"
	case FailureRateLimit:
		return "rate_limit"
	case FailureTruncated:
		return "truncated"
	case FailureSafetyBlocked:
		return "safety_blocked"
	case FailureDataCorruption:
		return "data_corruption"
	case FailureConfig:
		return "config"
	case FailureTimeout:
		return "timeout"
	case FailureAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// FailureError wraps an error from a collaborator (SearchAPI, ScrapeAPI,
// LLM, VectorStore) with the kind of failure it represents, so pipeline
// code can dispatch to the right retry/fallback policy without
// re-classifying a bare error by string matching.
type FailureError struct {
	Kind FailureKind
	Err  error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("acctplan: %s failure", e.Kind)
	}
	return fmt.Sprintf("acctplan: %s failure: %v", e.Kind, e.Err)
}

func (e *FailureError) Unwrap() error { return e.Err }

// Fail wraps err with a failure kind. If err is nil, Fail returns nil.
func Fail(kind FailureKind, err error) error {
	if err == nil {
		return nil
	}
	return &FailureError{Kind: kind, Err: err}
}

// KindOf extracts the FailureKind from err, returning FailureUnknown if
// err does not wrap a *FailureError.
func KindOf(err error) FailureKind {
	var fe *FailureError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return FailureUnknown
}
