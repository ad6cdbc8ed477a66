package model

import (
	"context"
	"math"

	"github.com/kailas-cloud/econpredict/internal/tokenizer"
)

// StubLogits is returned for every row by the stub classifier.
var StubLogits = [DefaultNumLabels]float32{0.1, 0.9}

// Stub is the classifier used in test mode and when no real model could be loaded.
// It always favours the important label. Hidden states are a deterministic
// function of the token ids, so identical texts embed identically.
type Stub struct {
	hiddenSize int
}

var _ Classifier = (*Stub)(nil)

// NewStub returns a stub with the given hidden size (DefaultHiddenSize when <= 0).
func NewStub(hiddenSize int) *Stub {
	if hiddenSize <= 0 {
		hiddenSize = DefaultHiddenSize
	}
	return &Stub{hiddenSize: hiddenSize}
}

// Predict implements Classifier.
func (s *Stub) Predict(ctx context.Context, enc tokenizer.Encoding) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	batch := enc.BatchSize()
	out := Output{
		Batch:      batch,
		SeqLen:     enc.SeqLen,
		NumLabels:  DefaultNumLabels,
		HiddenSize: s.hiddenSize,
		Logits:     make([]float32, 0, batch*DefaultNumLabels),
		Hidden:     make([]float32, batch*enc.SeqLen*s.hiddenSize),
	}
	for b := range batch {
		out.Logits = append(out.Logits, StubLogits[:]...)
		for t, id := range enc.InputIDs[b] {
			h := out.HiddenAt(b, t)
			for d := range h {
				h[d] = float32(math.Sin(float64(id+1) * float64(d+1) * 0.01))
			}
		}
	}
	return out, nil
}

// NumLabels implements Classifier.
func (s *Stub) NumLabels() int { return DefaultNumLabels }

// HiddenSize implements Classifier.
func (s *Stub) HiddenSize() int { return s.hiddenSize }

// Name implements Classifier.
func (s *Stub) Name() string { return "stub" }
