package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/db/filter"
)

func newStore(t *testing.T, names ...string) *Store {
	t.Helper()
	s := NewStore()
	for _, n := range names {
		if err := s.EnsureCollection(context.Background(), db.CollectionSpec{Name: n, Dim: 2}); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func TestEnsureCollection_Idempotent(t *testing.T) {
	s := newStore(t, "c")
	ctx := context.Background()
	if err := s.Upsert(ctx, "c", []db.Point{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	if err := s.EnsureCollection(ctx, db.CollectionSpec{Name: "c", Dim: 2}); err != nil {
		t.Fatal(err)
	}
	recs, err := s.Scroll(ctx, &db.ScrollQuery{Collection: "c", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("existing points must survive, got %d", len(recs))
	}
}

func TestEnsureCollection_InvalidSpec(t *testing.T) {
	if err := NewStore().EnsureCollection(context.Background(), db.CollectionSpec{Name: "c"}); err == nil {
		t.Fatal("expected error for zero dim")
	}
}

func TestUpsert_UnknownCollection(t *testing.T) {
	err := NewStore().Upsert(context.Background(), "missing", []db.Point{{ID: "a", Vector: []float32{1, 0}}})
	if !errors.Is(err, db.ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestUpsert_DimMismatch(t *testing.T) {
	s := newStore(t, "c")
	if err := s.Upsert(context.Background(), "c", []db.Point{{ID: "a", Vector: []float32{1}}}); err == nil {
		t.Fatal("expected dim error")
	}
}

func TestUpsert_Overwrites(t *testing.T) {
	s := newStore(t, "c")
	ctx := context.Background()
	_ = s.Upsert(ctx, "c", []db.Point{{ID: "a", Vector: []float32{1, 0}, Payload: db.Payload{"title": "old"}}})
	_ = s.Upsert(ctx, "c", []db.Point{{ID: "a", Vector: []float32{1, 0}, Payload: db.Payload{"title": "new"}}})

	recs, _ := s.Scroll(ctx, &db.ScrollQuery{Collection: "c", Limit: 10})
	if len(recs) != 1 || recs[0].Payload.String("title") != "new" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestScroll_FilterAndLimit(t *testing.T) {
	s := newStore(t, "c")
	ctx := context.Background()
	for i, ts := range []float64{10, 20, 30, 40} {
		id := string(rune('a' + i))
		_ = s.Upsert(ctx, "c", []db.Point{{ID: id, Vector: []float32{1, 0}, Payload: db.Payload{"ts": ts}}})
	}

	cond, _ := filter.AtLeast("ts", 20)
	expr, _ := filter.And(cond)

	recs, err := s.Scroll(ctx, &db.ScrollQuery{Collection: "c", Filter: expr, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 || recs[0].ID != "b" || recs[1].ID != "c" {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestQuery_RanksByCosine(t *testing.T) {
	s := newStore(t, "c")
	ctx := context.Background()
	_ = s.Upsert(ctx, "c", []db.Point{
		{ID: "far", Vector: []float32{0, 1}},
		{ID: "near", Vector: []float32{1, 0.1}},
		{ID: "mid", Vector: []float32{1, 1}},
	})

	hits, err := s.Query(ctx, &db.KNNQuery{Collection: "c", Vector: []float32{1, 0}, K: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 || hits[0].ID != "near" || hits[1].ID != "mid" {
		t.Fatalf("unexpected ranking: %+v", hits)
	}
	if hits[0].Score <= hits[1].Score {
		t.Error("scores must be descending")
	}
}

func TestSetPayload(t *testing.T) {
	s := newStore(t, "c")
	ctx := context.Background()
	_ = s.Upsert(ctx, "c", []db.Point{{ID: "a", Vector: []float32{1, 0}, Payload: db.Payload{"title": "t"}}})

	if err := s.SetPayload(ctx, "c", "a", db.Payload{"importance": int64(3)}); err != nil {
		t.Fatal(err)
	}
	recs, _ := s.Scroll(ctx, &db.ScrollQuery{Collection: "c", Limit: 1})
	if v, ok := recs[0].Payload.Int("importance"); !ok || v != 3 {
		t.Errorf("importance = %v, %v", v, ok)
	}
	if recs[0].Payload.String("title") != "t" {
		t.Error("existing keys must be kept")
	}

	err := s.SetPayload(ctx, "c", "missing", db.Payload{"importance": int64(1)})
	if !errors.Is(err, db.ErrPointNotFound) {
		t.Fatalf("expected ErrPointNotFound, got %v", err)
	}
}
