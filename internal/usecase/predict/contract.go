package predict

import (
	"context"

	"github.com/kailas-cloud/econpredict/internal/domain"
)

// Predictor classifies a batch of texts, one prediction per text in input order.
type Predictor interface {
	Predict(ctx context.Context, texts []string) ([]domain.Prediction, error)
}

// Repository persists classified articles.
type Repository interface {
	Store(ctx context.Context, label domain.Label, a domain.StoredArticle, embedding []float32) error
}
