package db

import (
	"fmt"

	"github.com/kailas-cloud/econpredict/internal/db/filter"
)

// Distance is the similarity metric of a collection.
type Distance string

const (
	// DistanceCosine is cosine similarity.
	DistanceCosine Distance = "cosine"
	// DistanceDot is inner product.
	DistanceDot Distance = "dot"
	// DistanceEuclid is Euclidean distance.
	DistanceEuclid Distance = "euclid"
)

// CollectionSpec describes a collection to create.
type CollectionSpec struct {
	Name     string
	Dim      int
	Distance Distance
	// NumericFields are payload keys that range filters run against.
	NumericFields []string
}

// Validate checks that the spec is well-formed.
func (s CollectionSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("collection name is required")
	}
	if s.Dim <= 0 {
		return fmt.Errorf("collection %s: dimension must be positive, got %d", s.Name, s.Dim)
	}
	switch s.Distance {
	case "", DistanceCosine, DistanceDot, DistanceEuclid:
	default:
		return fmt.Errorf("collection %s: unknown distance %q", s.Name, s.Distance)
	}
	return nil
}

// Payload is the metadata stored next to a vector.
// Values are string, float64, int64, bool or nil.
type Payload map[string]any

// String returns the string value at key, or "".
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Float returns the numeric value at key converted to float64.
func (p Payload) Float(key string) (float64, bool) {
	switch v := p[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Int returns the numeric value at key converted to int64.
func (p Payload) Int(key string) (int64, bool) {
	switch v := p[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Point is a vector with its id and payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Record is a stored point read back without its vector.
type Record struct {
	ID      string
	Payload Payload
}

// ScoredRecord is a Record ranked by similarity to a query vector; higher is closer.
type ScoredRecord struct {
	Record
	Score float64
}

// ScrollQuery reads up to Limit points matching Filter, in no particular order.
type ScrollQuery struct {
	Collection string
	Filter     filter.Expression
	Limit      int
}

// KNNQuery returns the K nearest points to Vector among those matching Filter.
type KNNQuery struct {
	Collection string
	Vector     []float32
	Filter     filter.Expression
	K          int
}
