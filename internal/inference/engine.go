// Package inference turns raw texts into label predictions and pooled embeddings.
package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/domain"
	"github.com/kailas-cloud/econpredict/internal/metrics"
	"github.com/kailas-cloud/econpredict/internal/model"
	"github.com/kailas-cloud/econpredict/internal/pool"
	"github.com/kailas-cloud/econpredict/internal/tokenizer"
)

// DefaultMaxSeqLen is the token budget per text, [CLS] and [SEP] included.
const DefaultMaxSeqLen = 512

// Engine runs batched classification. It is safe for concurrent use; the
// tokenizer pool is the only point of mutual exclusion.
type Engine struct {
	tokenizers *pool.Pool[tokenizer.Tokenizer]
	classifier model.Classifier
	maxSeqLen  int
	logger     *zap.Logger
}

// New creates an Engine. maxSeqLen <= 0 uses DefaultMaxSeqLen.
func New(
	tokenizers *pool.Pool[tokenizer.Tokenizer], classifier model.Classifier,
	maxSeqLen int, logger *zap.Logger,
) *Engine {
	if maxSeqLen <= 0 {
		maxSeqLen = DefaultMaxSeqLen
	}
	return &Engine{
		tokenizers: tokenizers,
		classifier: classifier,
		maxSeqLen:  maxSeqLen,
		logger:     logger,
	}
}

// Dim returns the embedding dimension.
func (e *Engine) Dim() int { return e.classifier.HiddenSize() }

// Predict classifies texts in one forward pass. Results keep input order.
func (e *Engine) Predict(ctx context.Context, texts []string) ([]domain.Prediction, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	enc, err := e.encode(ctx, texts)
	if err != nil {
		metrics.InferenceErrorsTotal.WithLabelValues("tokenize").Inc()
		return nil, err
	}

	start := time.Now()
	out, err := e.classifier.Predict(ctx, enc)
	duration := time.Since(start)
	if err != nil {
		metrics.InferenceErrorsTotal.WithLabelValues("forward").Inc()
		return nil, fmt.Errorf("%w: %s forward pass: %w", domain.ErrInferenceFailed, e.classifier.Name(), err)
	}
	metrics.ObserveForward(e.classifier.Name(), len(texts), duration)

	if err := checkShape(out, enc); err != nil {
		metrics.InferenceErrorsTotal.WithLabelValues("output").Inc()
		return nil, fmt.Errorf("%w: %w", domain.ErrInferenceFailed, err)
	}

	preds := make([]domain.Prediction, len(texts))
	for i := range texts {
		probs := Softmax(out.LogitsRow(i))
		label := Argmax(probs)
		preds[i] = domain.Prediction{
			Label:         domain.Label(label),
			Probability:   probs[label],
			Probabilities: probs,
			Embedding:     MeanPool(out, i, enc.AttentionMask[i]),
		}
		metrics.PredictionsTotal.WithLabelValues(preds[i].Label.String()).Inc()
	}

	e.logger.Debug("Batch classified",
		zap.String("classifier", e.classifier.Name()),
		zap.Int("batch_size", len(texts)),
		zap.Int("seq_len", enc.SeqLen),
		zap.Duration("duration", duration),
	)
	return preds, nil
}

// Embed returns the pooled embedding of a single text.
func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	preds, err := e.Predict(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return preds[0].Embedding, nil
}

// encode holds a pooled tokenizer only for the duration of tokenization.
func (e *Engine) encode(ctx context.Context, texts []string) (tokenizer.Encoding, error) {
	var enc tokenizer.Encoding
	err := e.tokenizers.Use(ctx, func(t tokenizer.Tokenizer) error {
		var err error
		enc, err = t.EncodeBatch(texts, e.maxSeqLen)
		return err
	})
	if err != nil {
		if errors.Is(err, pool.ErrAcquireTimeout) || errors.Is(err, context.Canceled) ||
			errors.Is(err, context.DeadlineExceeded) {
			return tokenizer.Encoding{}, fmt.Errorf("acquire tokenizer: %w", err)
		}
		return tokenizer.Encoding{}, fmt.Errorf("%w: tokenize: %w", domain.ErrInferenceFailed, err)
	}
	return enc, nil
}

func checkShape(out model.Output, enc tokenizer.Encoding) error {
	if out.Batch != enc.BatchSize() {
		return fmt.Errorf("classifier returned %d rows for %d texts", out.Batch, enc.BatchSize())
	}
	if out.SeqLen != enc.SeqLen {
		return fmt.Errorf("classifier returned seq len %d, want %d", out.SeqLen, enc.SeqLen)
	}
	return out.Validate()
}
