package db

import "context"

// VectorStore is the vector database facade combining all sub-interfaces.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces (ISP)
type VectorStore interface {
	Pinger
	CollectionManager
	PointWriter
	PointReader
	Close() error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectionManager provides collection lifecycle operations.
type CollectionManager interface {
	// EnsureCollection creates the collection when absent. Existing collections are left untouched.
	EnsureCollection(ctx context.Context, spec CollectionSpec) error
}

// PointWriter provides point mutations.
type PointWriter interface {
	// Upsert writes points, replacing any point with the same id.
	Upsert(ctx context.Context, collection string, points []Point) error
	// SetPayload merges payload keys into an existing point. Missing points yield ErrPointNotFound.
	SetPayload(ctx context.Context, collection, id string, payload Payload) error
}

// PointReader provides filtered reads and similarity search.
type PointReader interface {
	Scroll(ctx context.Context, q *ScrollQuery) ([]Record, error)
	Query(ctx context.Context, q *KNNQuery) ([]ScoredRecord, error)
}
