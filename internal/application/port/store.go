package port

import (
	"context"
	"errors"
	"time"
)

// Store errors. Implementations must return these (possibly wrapped) so
// callers can distinguish a missing document from a lost concurrent write.
var (
	// ErrNotFound is returned when no document exists for the given id
	ErrNotFound = errors.New("document not found")

	// ErrVersionConflict is returned when a conditional update observes a
	// version other than the one the caller read
	ErrVersionConflict = errors.New("document version conflict")
)

// Filter is a field equality predicate applied by Query. Field names use
// the document's JSON keys; nested paths are dot-separated.
type Filter struct {
	Field string
	Value interface{}
}

// Query describes an ordered, filtered document listing.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// WorkflowStore is the document store the engine persists workflows in.
//
// Update has merge semantics: only the named fields are replaced, and
// array fields are replaced wholesale. expectedVersion guards against
// concurrent writers; pass the version returned by Get. Time values cross
// this boundary as their JSON (RFC 3339) encoding.
type WorkflowStore interface {
	// Create persists doc in collection and returns the assigned id.
	Create(ctx context.Context, collection string, doc interface{}) (string, error)

	// Get loads the document with the given id into out and returns its
	// current version. Returns ErrNotFound if absent.
	Get(ctx context.Context, collection, id string, out interface{}) (int64, error)

	// Update merges fields into the stored document if its version still
	// equals expectedVersion, then increments the version. Returns
	// ErrNotFound or ErrVersionConflict accordingly.
	Update(ctx context.Context, collection, id string, expectedVersion int64, fields map[string]interface{}) error

	// Query loads all matching documents, ordered, into out (a pointer to
	// a slice).
	Query(ctx context.Context, collection string, q Query, out interface{}) error
}

// Clock supplies the current time. Engine operations never read the wall
// clock directly so tests can run against a fixed instant.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock backed by time.Now.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
