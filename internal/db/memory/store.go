// Package memory is an in-process db.VectorStore with brute-force similarity search.
// It backs local runs without a vector database and the service tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"

	"github.com/kailas-cloud/econpredict/internal/db"
)

var _ db.VectorStore = (*Store)(nil)

type collection struct {
	spec   db.CollectionSpec
	points map[string]db.Point
}

// Store keeps collections in memory behind a RWMutex.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.collections)
	return nil
}

// EnsureCollection implements db.CollectionManager.
func (s *Store) EnsureCollection(_ context.Context, spec db.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: err}
	}
	if spec.Distance == "" {
		spec.Distance = db.DistanceCosine
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[spec.Name]; !ok {
		s.collections[spec.Name] = &collection{spec: spec, points: make(map[string]db.Point)}
	}
	return nil
}

// Upsert implements db.PointWriter.
func (s *Store) Upsert(_ context.Context, name string, points []db.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(db.OpUpsert, name)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != c.spec.Dim {
			return &db.Error{Op: db.OpUpsert, Collection: name,
				Err: fmt.Errorf("point %s: vector dim %d, want %d", p.ID, len(p.Vector), c.spec.Dim)}
		}
	}
	for _, p := range points {
		c.points[p.ID] = db.Point{
			ID:      p.ID,
			Vector:  slices.Clone(p.Vector),
			Payload: maps.Clone(p.Payload),
		}
	}
	return nil
}

// SetPayload implements db.PointWriter.
func (s *Store) SetPayload(_ context.Context, name, id string, payload db.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.get(db.OpSetPayload, name)
	if err != nil {
		return err
	}
	p, ok := c.points[id]
	if !ok {
		return &db.Error{Op: db.OpSetPayload, Collection: name, Err: db.ErrPointNotFound}
	}
	if p.Payload == nil {
		p.Payload = make(db.Payload, len(payload))
	}
	maps.Copy(p.Payload, payload)
	c.points[id] = p
	return nil
}

// Scroll implements db.PointReader. Results are ordered by id.
func (s *Store) Scroll(_ context.Context, q *db.ScrollQuery) ([]db.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(db.OpScroll, q.Collection)
	if err != nil {
		return nil, err
	}

	ids := slices.Sorted(maps.Keys(c.points))
	out := make([]db.Record, 0, min(q.Limit, len(ids)))
	for _, id := range ids {
		if len(out) >= q.Limit {
			break
		}
		p := c.points[id]
		if !q.Filter.Matches(p.Payload.Float) {
			continue
		}
		out = append(out, db.Record{ID: id, Payload: maps.Clone(p.Payload)})
	}
	return out, nil
}

// Query implements db.PointReader.
func (s *Store) Query(_ context.Context, q *db.KNNQuery) ([]db.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.get(db.OpQuery, q.Collection)
	if err != nil {
		return nil, err
	}
	if len(q.Vector) != c.spec.Dim {
		return nil, &db.Error{Op: db.OpQuery, Collection: q.Collection,
			Err: fmt.Errorf("query dim %d, want %d", len(q.Vector), c.spec.Dim)}
	}

	hits := make([]db.ScoredRecord, 0, len(c.points))
	for id, p := range c.points {
		if !q.Filter.Matches(p.Payload.Float) {
			continue
		}
		hits = append(hits, db.ScoredRecord{
			Record: db.Record{ID: id, Payload: maps.Clone(p.Payload)},
			Score:  score(c.spec.Distance, q.Vector, p.Vector),
		})
	}
	slices.SortFunc(hits, func(a, b db.ScoredRecord) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(hits) > q.K {
		hits = hits[:q.K]
	}
	return hits, nil
}

// get must be called with s.mu held.
func (s *Store) get(op, name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, &db.Error{Op: op, Collection: name, Err: db.ErrCollectionNotFound}
	}
	return c, nil
}

// score returns a higher-is-closer similarity for the collection's metric.
func score(d db.Distance, a, b []float32) float64 {
	var dot, na, nb, sq float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
		sq += (x - y) * (x - y)
	}
	switch d {
	case db.DistanceDot:
		return dot
	case db.DistanceEuclid:
		return -math.Sqrt(sq)
	default:
		if na == 0 || nb == 0 {
			return 0
		}
		return dot / (math.Sqrt(na) * math.Sqrt(nb))
	}
}
