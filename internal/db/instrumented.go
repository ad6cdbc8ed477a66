package db

import (
	"context"
	"time"

	"github.com/kailas-cloud/econpredict/internal/metrics"
)

// Instrumented wraps a VectorStore and records per-call metrics.
type Instrumented struct {
	inner  VectorStore
	driver string
}

var _ VectorStore = (*Instrumented)(nil)

// NewInstrumented decorates inner with metrics labelled by driver.
func NewInstrumented(inner VectorStore, driver string) *Instrumented {
	return &Instrumented{inner: inner, driver: driver}
}

func (s *Instrumented) observe(op, collection string, start time.Time, err error) {
	metrics.ObserveStoreOp(s.driver, op, collection, time.Since(start), err)
}

// Ping implements Pinger.
func (s *Instrumented) Ping(ctx context.Context) error {
	start := time.Now()
	err := s.inner.Ping(ctx)
	s.observe(OpPing, "", start, err)
	return err //nolint:wrapcheck // transparent decorator
}

// EnsureCollection implements CollectionManager.
func (s *Instrumented) EnsureCollection(ctx context.Context, spec CollectionSpec) error {
	start := time.Now()
	err := s.inner.EnsureCollection(ctx, spec)
	s.observe(OpEnsureCollection, spec.Name, start, err)
	return err //nolint:wrapcheck // transparent decorator
}

// Upsert implements PointWriter.
func (s *Instrumented) Upsert(ctx context.Context, collection string, points []Point) error {
	start := time.Now()
	err := s.inner.Upsert(ctx, collection, points)
	s.observe(OpUpsert, collection, start, err)
	return err //nolint:wrapcheck // transparent decorator
}

// SetPayload implements PointWriter.
func (s *Instrumented) SetPayload(ctx context.Context, collection, id string, payload Payload) error {
	start := time.Now()
	err := s.inner.SetPayload(ctx, collection, id, payload)
	s.observe(OpSetPayload, collection, start, err)
	return err //nolint:wrapcheck // transparent decorator
}

// Scroll implements PointReader.
func (s *Instrumented) Scroll(ctx context.Context, q *ScrollQuery) ([]Record, error) {
	start := time.Now()
	recs, err := s.inner.Scroll(ctx, q)
	s.observe(OpScroll, q.Collection, start, err)
	return recs, err //nolint:wrapcheck // transparent decorator
}

// Query implements PointReader.
func (s *Instrumented) Query(ctx context.Context, q *KNNQuery) ([]ScoredRecord, error) {
	start := time.Now()
	recs, err := s.inner.Query(ctx, q)
	s.observe(OpQuery, q.Collection, start, err)
	return recs, err //nolint:wrapcheck // transparent decorator
}

// Close implements VectorStore.
func (s *Instrumented) Close() error {
	return s.inner.Close() //nolint:wrapcheck // transparent decorator
}
