package retrieval

import (
	"context"
	"time"

	"github.com/kailas-cloud/econpredict/internal/domain"
)

// Embedder maps one text into the stored vector space.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Repository reads and annotates stored articles.
type Repository interface {
	QueryRecent(ctx context.Context, collection string, topK int) ([]domain.StoredArticle, error)
	Nearest(ctx context.Context, vector []float32, topK int, window time.Duration) ([]domain.StoredArticle, error)
	UpdateImportance(ctx context.Context, pointID string, importance int) bool
}
