// Package retrieval serves recent-article listings, keyword search and importance annotation.
package retrieval

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/econpredict/internal/domain"
)

const defaultConcurrency = 4

// Service implements the read-side article operations.
type Service struct {
	repo        Repository
	embedder    Embedder
	keywords    []string
	concurrency int
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithKeywords replaces the keyword vocabulary searched by SearchByKeywords.
func WithKeywords(keywords []string) Option {
	return func(s *Service) { s.keywords = keywords }
}

// WithConcurrency bounds how many keywords are embedded and searched at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a Service. A nil embedder disables keyword search.
func New(repo Repository, embedder Embedder, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		embedder:    embedder,
		keywords:    domain.EconKeywords,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchRecent returns up to topK articles of collection published in the last 24 hours.
func (s *Service) FetchRecent(ctx context.Context, collection string, topK int) ([]domain.StoredArticle, error) {
	articles, err := s.repo.QueryRecent(ctx, collection, topK)
	if err != nil {
		return nil, fmt.Errorf("fetch recent: %w", err)
	}
	return articles, nil
}

// SearchByKeywords runs a KNN query per keyword against the important collection
// and merges the hits in keyword order. A positive timeRangeSec limits hits to
// articles published within that many seconds.
func (s *Service) SearchByKeywords(ctx context.Context, timeRangeSec, topK int) ([]domain.KeywordHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrInferenceUnavailable
	}
	window := time.Duration(timeRangeSec) * time.Second

	perKeyword := make([][]domain.StoredArticle, len(s.keywords))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, kw := range s.keywords {
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, kw)
			if err != nil {
				return fmt.Errorf("embed keyword %q: %w", kw, err)
			}
			hits, err := s.repo.Nearest(gctx, vec, topK, window)
			if err != nil {
				return fmt.Errorf("search keyword %q: %w", kw, err)
			}
			perKeyword[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // already wrapped per keyword
	}

	merged := mergeHits(perKeyword)
	s.logger.Debug("Keyword search done",
		zap.Int("keywords", len(s.keywords)),
		zap.Int("hits", len(merged)),
		zap.Duration("window", window),
	)
	return merged, nil
}

// AnnotateImportance sets a manual importance score on an important article.
func (s *Service) AnnotateImportance(ctx context.Context, pointID string, importance int) bool {
	return s.repo.UpdateImportance(ctx, pointID, importance)
}

// mergeHits flattens per-keyword hits in order, keeping the first occurrence of
// each id and skipping hits whose payload carries no content.
func mergeHits(perKeyword [][]domain.StoredArticle) []domain.KeywordHit {
	seen := make(map[string]struct{})
	out := make([]domain.KeywordHit, 0)
	for _, hits := range perKeyword {
		for _, h := range hits {
			if h.ContentMissing {
				continue
			}
			if _, dup := seen[h.ID]; dup {
				continue
			}
			seen[h.ID] = struct{}{}
			out = append(out, domain.KeywordHit{ID: h.ID, Content: h.Content})
		}
	}
	return out
}
