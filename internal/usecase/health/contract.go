package health

import "context"

// StorePinger checks vector store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ModelStatus reports whether the classifier fell back to the stub.
type ModelStatus interface {
	Degraded() bool
}
