package domain

import "errors"

var (
	// ErrInferenceUnavailable signals that the model runtime was never initialized.
	ErrInferenceUnavailable = errors.New("inference unavailable")
	// ErrInferenceFailed signals a malformed or failed classifier forward pass.
	ErrInferenceFailed = errors.New("inference failed")
	// ErrInvalidArticle signals an article that cannot be classified.
	ErrInvalidArticle = errors.New("invalid article")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)
