package inference

import (
	"math"

	"github.com/kailas-cloud/econpredict/internal/model"
)

// minMaskSum keeps the pooling divisor away from zero for rows with an empty mask.
const minMaskSum = 1e-9

// Softmax returns the normalized distribution of logits.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := float64(logits[0])
	for _, v := range logits[1:] {
		peak = math.Max(peak, float64(v))
	}

	out := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value; ties resolve to the lowest index.
func Argmax(xs []float64) int {
	best := 0
	for i := 1; i < len(xs); i++ {
		if xs[i] > xs[best] {
			best = i
		}
	}
	return best
}

// MeanPool averages the last hidden states of row b weighted by its attention mask.
// Padding positions contribute nothing, so the result does not depend on batch-mates.
func MeanPool(out model.Output, b int, mask []int64) []float32 {
	acc := make([]float64, out.HiddenSize)
	var weight float64
	for s := 0; s < out.SeqLen && s < len(mask); s++ {
		if mask[s] == 0 {
			continue
		}
		m := float64(mask[s])
		for d, v := range out.HiddenAt(b, s) {
			acc[d] += float64(v) * m
		}
		weight += m
	}
	weight = math.Max(weight, minMaskSum)

	pooled := make([]float32, out.HiddenSize)
	for d := range acc {
		pooled[d] = float32(acc[d] / weight)
	}
	return pooled
}
