package errors

import (
	"errors"
	"fmt"
)

// Application-specific errors
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrTimeout       = errors.New("operation timeout")
	ErrNoActiveFeeds = errors.New("no active feeds configured")
)

// FetchError reports a failed feed retrieval. Status is the HTTP status
// code, or 0 when the request never completed (timeout, connection error).
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// PersistError reports a store-layer failure.
type PersistError struct {
	Op  string
	Err error
}

func (e PersistError) Error() string {
	return fmt.Sprintf("persist during %s: %v", e.Op, e.Err)
}

func (e PersistError) Unwrap() error {
	return e.Err
}

// RefreshError reports a read-model refresh failure. Always non-fatal: the
// incident table is durable and correct regardless, so callers log it and
// move on.
type RefreshError struct {
	Err error
}

func (e RefreshError) Error() string {
	return fmt.Sprintf("read model refresh: %v", e.Err)
}

func (e RefreshError) Unwrap() error {
	return e.Err
}

// PipelineError wraps any failure at the per-feed boundary with the feed
// slug and the stage it failed in. These never propagate past the
// orchestrator; they become entries in the run's error list.
type PipelineError struct {
	Feed  string
	Stage string
	Err   error
}

func (e PipelineError) Error() string {
	return fmt.Sprintf("feed %s failed at stage %s: %v", e.Feed, e.Stage, e.Err)
}

func (e PipelineError) Unwrap() error {
	return e.Err
}
