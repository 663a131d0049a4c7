package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupMiss is returned by a field rule when no candidate produced a value.
	ErrLookupMiss = errors.New("lookup miss")
	// ErrRecordRejected marks a card whose name or price was not found.
	ErrRecordRejected = errors.New("record rejected")
)

// CardError reports an unexpected failure while extracting a single card.
type CardError struct {
	Index int
	Field string
	Err   error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *CardError) Unwrap() error {
	return e.Err
}

// SearchError reports a failure of a whole search run.
type SearchError struct {
	Query string
	Stage string
	Err   error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search %q failed at %s: %v", e.Query, e.Stage, e.Err)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

func errorTypeLabel(err error) string {
	var cardErr *CardError
	var searchErr *SearchError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrRecordRejected):
		return "rejected"
	case errors.As(err, &cardErr):
		return "card"
	case errors.As(err, &searchErr):
		return "search_" + searchErr.Stage
	default:
		return "other"
	}
}
