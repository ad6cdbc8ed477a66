// Package article persists classified articles into label-partitioned vector collections.
package article

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/db/filter"
	"github.com/kailas-cloud/econpredict/internal/domain"
)

// RecentWindow is how far back QueryRecent looks.
const RecentWindow = 24 * time.Hour

// store is the consumer interface for article points (ISP).
type store interface {
	Upsert(ctx context.Context, collection string, points []db.Point) error
	SetPayload(ctx context.Context, collection, id string, payload db.Payload) error
	Scroll(ctx context.Context, q *db.ScrollQuery) ([]db.Record, error)
	Query(ctx context.Context, q *db.KNNQuery) ([]db.ScoredRecord, error)
}

// Collections names the two label partitions.
type Collections struct {
	Important    string
	NotImportant string
}

// DefaultCollections returns the standard collection names.
func DefaultCollections() Collections {
	return Collections{Important: domain.CollectionImportant, NotImportant: domain.CollectionNotImportant}
}

// For returns the collection a label routes to.
func (c Collections) For(label domain.Label) string {
	if label.IsImportant() {
		return c.Important
	}
	return c.NotImportant
}

// Repo implements the vector store gateway for articles.
type Repo struct {
	store       store
	collections Collections
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures a Repo.
type Option func(*Repo)

// WithClock overrides the time source used for time windows.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// New creates an article repository.
func New(s store, collections Collections, logger *zap.Logger, opts ...Option) *Repo {
	r := &Repo{store: s, collections: collections, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Collections returns the configured collection names.
func (r *Repo) Collections() Collections { return r.collections }

// Store upserts one article into the collection its label routes to, keyed by its id.
func (r *Repo) Store(ctx context.Context, label domain.Label, a domain.StoredArticle, embedding []float32) error {
	collection := r.collections.For(label)
	point := db.Point{ID: a.ID, Vector: embedding, Payload: toPayload(a)}
	if err := r.store.Upsert(ctx, collection, []db.Point{point}); err != nil {
		return fmt.Errorf("store article %s: %w", a.ID, err)
	}
	return nil
}

// QueryRecent returns up to topK articles of collection published within RecentWindow.
// Ordering is whatever the store returns.
func (r *Repo) QueryRecent(ctx context.Context, collection string, topK int) ([]domain.StoredArticle, error) {
	expr, err := since(r.now().Add(-RecentWindow))
	if err != nil {
		return nil, err
	}

	recs, err := r.store.Scroll(ctx, &db.ScrollQuery{Collection: collection, Filter: expr, Limit: topK})
	if err != nil {
		return nil, fmt.Errorf("scroll %s: %w", collection, err)
	}

	out := make([]domain.StoredArticle, len(recs))
	for i, rec := range recs {
		out[i] = fromRecord(rec)
	}
	return out, nil
}

// Nearest returns the topK important articles closest to vector.
// A positive window restricts hits to articles published within it.
func (r *Repo) Nearest(ctx context.Context, vector []float32, topK int, window time.Duration) ([]domain.StoredArticle, error) {
	var expr filter.Expression
	if window > 0 {
		var err error
		if expr, err = since(r.now().Add(-window)); err != nil {
			return nil, err
		}
	}

	hits, err := r.store.Query(ctx, &db.KNNQuery{
		Collection: r.collections.Important,
		Vector:     vector,
		Filter:     expr,
		K:          topK,
	})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.collections.Important, err)
	}

	out := make([]domain.StoredArticle, len(hits))
	for i, h := range hits {
		out[i] = fromRecord(h.Record)
	}
	return out, nil
}

// UpdateImportance sets the importance annotation on an existing important article.
// It never creates a point; any failure is logged and reported as false.
func (r *Repo) UpdateImportance(ctx context.Context, pointID string, importance int) bool {
	err := r.store.SetPayload(ctx, r.collections.Important, pointID, db.Payload{keyImportance: int64(importance)})
	if err == nil {
		return true
	}

	if errors.Is(err, db.ErrPointNotFound) {
		r.logger.Warn("Importance update for unknown point",
			zap.String("point_id", pointID),
			zap.String("collection", r.collections.Important),
		)
	} else {
		r.logger.Error("Importance update failed",
			zap.String("point_id", pointID),
			zap.String("collection", r.collections.Important),
			zap.Error(err),
		)
	}
	return false
}

func since(t time.Time) (filter.Expression, error) {
	cond, err := filter.AtLeast(keyPublicationDate, unixSeconds(t))
	if err != nil {
		return filter.Expression{}, fmt.Errorf("build time filter: %w", err)
	}
	return filter.And(cond) //nolint:wrapcheck // single condition never exceeds the limit
}
