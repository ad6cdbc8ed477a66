// Package model defines the sequence classifier contract and its stub variant.
package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kailas-cloud/econpredict/internal/tokenizer"
)

// ConfigFile is the model config looked up inside a model directory.
const ConfigFile = "config.json"

// Defaults used when a model directory does not say otherwise.
const (
	DefaultNumLabels  = 2
	DefaultHiddenSize = 768
)

// Classifier runs one forward pass over a padded batch.
type Classifier interface {
	Predict(ctx context.Context, enc tokenizer.Encoding) (Output, error)
	NumLabels() int
	HiddenSize() int
	Name() string
}

// Output holds row-major classifier results for one batch.
// Logits is Batch x NumLabels, Hidden is Batch x SeqLen x HiddenSize.
type Output struct {
	Batch      int
	SeqLen     int
	NumLabels  int
	HiddenSize int
	Logits     []float32
	Hidden     []float32
}

// LogitsRow returns the logits of row i.
func (o Output) LogitsRow(i int) []float32 {
	return o.Logits[i*o.NumLabels : (i+1)*o.NumLabels]
}

// HiddenAt returns the last-layer hidden state of token s in row b.
func (o Output) HiddenAt(b, s int) []float32 {
	off := (b*o.SeqLen + s) * o.HiddenSize
	return o.Hidden[off : off+o.HiddenSize]
}

// Validate checks that the buffers match the declared dimensions.
func (o Output) Validate() error {
	if o.Batch <= 0 || o.NumLabels <= 0 || o.HiddenSize <= 0 || o.SeqLen <= 0 {
		return fmt.Errorf("invalid output dims batch=%d seq=%d labels=%d hidden=%d",
			o.Batch, o.SeqLen, o.NumLabels, o.HiddenSize)
	}
	if len(o.Logits) != o.Batch*o.NumLabels {
		return fmt.Errorf("logits: got %d values, want %d", len(o.Logits), o.Batch*o.NumLabels)
	}
	if want := o.Batch * o.SeqLen * o.HiddenSize; len(o.Hidden) != want {
		return fmt.Errorf("hidden states: got %d values, want %d", len(o.Hidden), want)
	}
	return nil
}

// Config is the subset of a model's config.json the service cares about.
type Config struct {
	NumLabels  int               `json:"num_labels"`
	ID2Label   map[string]string `json:"id2label"`
	HiddenSize int               `json:"hidden_size"`
}

// ReadConfig reads config.json from dir. A missing file yields defaults.
func ReadConfig(dir string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(filepath.Join(filepath.Clean(dir), ConfigFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read model config: %w", err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse model config: %w", err)
		}
	}

	if cfg.NumLabels <= 0 {
		cfg.NumLabels = len(cfg.ID2Label)
	}
	if cfg.NumLabels <= 0 {
		cfg.NumLabels = DefaultNumLabels
	}
	if cfg.HiddenSize <= 0 {
		cfg.HiddenSize = DefaultHiddenSize
	}
	return cfg, nil
}
