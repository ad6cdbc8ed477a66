package db

import "errors"

// Sentinel errors for vector store operations.
var (
	ErrPointNotFound      = errors.New("db: point not found")
	ErrCollectionNotFound = errors.New("db: collection not found")
)

// Op names recorded on errors and metrics.
const (
	OpPing             = "ping"
	OpEnsureCollection = "ensure_collection"
	OpUpsert           = "upsert"
	OpSetPayload       = "set_payload"
	OpScroll           = "scroll"
	OpQuery            = "query"
)

// Error wraps an underlying error with the operation and collection for diagnostics.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	if e.Collection == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Collection + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
