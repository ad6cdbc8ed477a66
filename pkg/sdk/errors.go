package econpredict

import (
	"github.com/kailas-cloud/econpredict/internal/domain"
	"github.com/kailas-cloud/econpredict/internal/pool"
)

// Sentinel errors re-exported from the internal layers.
// Use errors.Is() to check.
var (
	ErrInferenceUnavailable = domain.ErrInferenceUnavailable
	ErrInferenceFailed      = domain.ErrInferenceFailed
	ErrInvalidArticle       = domain.ErrInvalidArticle
	ErrBusy                 = pool.ErrAcquireTimeout
)
