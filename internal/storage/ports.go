// Package storage defines the document store the budget repository talks to,
// plus the in-process change hub shared by every implementation.
package storage

import (
	"context"
	"errors"
	"regexp"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("document version conflict")
	ErrInvalidField    = errors.New("invalid field name")
)

// Direction orders QueryOrdered results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ChangeKind tells subscribers what happened to a document.
type ChangeKind string

const (
	Created ChangeKind = "created"
	Updated ChangeKind = "updated"
	Deleted ChangeKind = "deleted"
)

// Reserved document keys managed by the store itself.
const (
	KeyVersion = "version"
	// KeyExpectedVersion may be set on an update patch to request a
	// compare-and-swap. It is never persisted.
	KeyExpectedVersion = "_expectedVersion"
)

type (
	// Document is a loosely typed record as persisted by the store. Values
	// are JSON-compatible; timestamps may be time.Time or RFC 3339 strings
	// depending on the backend.
	Document map[string]any

	// Record is a stored document with its store-assigned identifier.
	Record struct {
		ID   string
		Data Document
	}

	// ChangeEvent is delivered to subscribers after a successful write.
	// Record.Data is empty for deletions.
	ChangeEvent struct {
		Collection string
		Kind       ChangeKind
		Record     Record
	}

	// Store is a collection-oriented document database. All calls may block
	// on I/O and may fail with a transport or permission error.
	Store interface {
		// AddRecord persists data as a new document and returns its id.
		AddRecord(ctx context.Context, collection string, data Document) (string, error)
		// UpdateRecord merges patch over the stored document. It returns
		// ErrNotFound when id does not exist and ErrVersionConflict when the
		// patch carries a stale KeyExpectedVersion.
		UpdateRecord(ctx context.Context, collection, id string, patch Document) error
		// DeleteRecord removes a document permanently. Deleting a missing
		// id is not an error.
		DeleteRecord(ctx context.Context, collection, id string) error
		// GetRecord returns a single document.
		GetRecord(ctx context.Context, collection, id string) (Record, error)
		// QueryOrdered returns every document of collection ordered by field.
		QueryOrdered(ctx context.Context, collection, field string, dir Direction) ([]Record, error)
		// Subscribe registers fn for changes to collection. The returned
		// function removes the subscription.
		Subscribe(collection string, fn func(ChangeEvent)) (unsubscribe func())
		// Ping checks that the store is reachable.
		Ping(ctx context.Context) error
		Close() error
	}
)

var fieldName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidField reports whether name can be used as an ordering field. Backends
// that build SQL from the name rely on this check.
func ValidField(name string) bool {
	return fieldName.MatchString(name)
}

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns base overlaid with patch, without the reserved
// KeyExpectedVersion key.
func Merge(base, patch Document) Document {
	out := base.Clone()
	for k, v := range patch {
		if k == KeyExpectedVersion {
			continue
		}
		out[k] = v
	}
	return out
}

// ExpectedVersion extracts the compare-and-swap version from a patch.
// Zero means no check was requested.
func ExpectedVersion(patch Document) int64 {
	return Int64(patch[KeyExpectedVersion])
}

// Int64 reads an integer out of a loosely typed document value.
func Int64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return 0
	}
}
