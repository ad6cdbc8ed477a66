package inference

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/model"
)

func TestSoftmax(t *testing.T) {
	p := Softmax([]float32{1000, 1000})
	assert.InDelta(t, 0.5, p[0], 1e-12, "large logits must not overflow")
	assert.InDelta(t, 0.5, p[1], 1e-12)

	assert.Nil(t, Softmax(nil))
}

func TestArgmax_TieLowestIndex(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float64{0.5, 0.5}))
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
}

func TestMeanPool_IgnoresPadding(t *testing.T) {
	out := model.Output{
		Batch: 1, SeqLen: 3, NumLabels: 2, HiddenSize: 2,
		Logits: []float32{0, 0},
		Hidden: []float32{1, 2, 3, 4, 100, 100},
	}

	got := MeanPool(out, 0, []int64{1, 1, 0})
	assert.Equal(t, []float32{2, 3}, got)
}

func TestMeanPool_EmptyMaskClamped(t *testing.T) {
	out := model.Output{
		Batch: 1, SeqLen: 2, NumLabels: 2, HiddenSize: 1,
		Logits: []float32{0, 0},
		Hidden: []float32{5, 5},
	}

	got := MeanPool(out, 0, []int64{0, 0})
	require.Len(t, got, 1)
	assert.False(t, math.IsNaN(float64(got[0])))
	assert.Zero(t, got[0])
}

func TestEmbedding_IndependentOfBatchMates(t *testing.T) {
	e := New(newTokenizerPool(t, &wordTokenizer{}, 1), model.NewStub(16), 0, zap.NewNop())
	ctx := context.Background()

	alone, err := e.Predict(ctx, []string{"short text"})
	require.NoError(t, err)

	batched, err := e.Predict(ctx, []string{
		"short text",
		"a much longer batch mate that forces several padding positions onto the first row",
	})
	require.NoError(t, err)

	assert.Equal(t, alone[0].Embedding, batched[0].Embedding)
}
