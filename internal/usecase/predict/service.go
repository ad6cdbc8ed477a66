// Package predict classifies inbound articles and stores them by predicted label.
package predict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/domain"
)

// Service implements classifyAndStore.
type Service struct {
	predictor Predictor
	repo      Repository
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Service. A nil predictor makes every call fail with domain.ErrInferenceUnavailable.
func New(predictor Predictor, repo Repository, logger *zap.Logger) *Service {
	return &Service{predictor: predictor, repo: repo, now: time.Now, logger: logger}
}

// ClassifyAndStore runs one batched forward pass over the articles' content and
// stores each article in the collection for its label. Results keep input order.
func (s *Service) ClassifyAndStore(ctx context.Context, articles []domain.Article) ([]domain.Classification, error) {
	if s.predictor == nil {
		return nil, domain.ErrInferenceUnavailable
	}
	if len(articles) == 0 {
		return []domain.Classification{}, nil
	}

	texts := make([]string, len(articles))
	for i, a := range articles {
		texts[i] = strings.TrimSpace(a.Content)
		if texts[i] == "" {
			return nil, fmt.Errorf("%w: article %d has empty content", domain.ErrInvalidArticle, i)
		}
	}

	preds, err := s.predictor.Predict(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(preds) != len(articles) {
		return nil, fmt.Errorf("%w: %d predictions for %d articles", domain.ErrInferenceFailed, len(preds), len(articles))
	}

	out := make([]domain.Classification, len(articles))
	for i, a := range articles {
		if a.PublicationDate.IsZero() {
			a.PublicationDate = s.now().UTC()
		}
		id := domain.ResolveID(a.ExternalID)
		p := preds[i]

		if err := s.repo.Store(ctx, p.Label, domain.NewStoredArticle(a, id, p.Probability), p.Embedding); err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		out[i] = domain.Classification{ID: id, Label: p.Label, Probability: p.Probability}
	}

	s.logger.Info("Articles classified",
		zap.Int("count", len(out)),
		zap.Int("important", countImportant(out)),
	)
	return out, nil
}

func countImportant(cs []domain.Classification) int {
	n := 0
	for _, c := range cs {
		if c.Label.IsImportant() {
			n++
		}
	}
	return n
}
