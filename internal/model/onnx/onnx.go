// Package onnx runs a fine-tuned sequence classifier exported to ONNX through onnxruntime.
package onnx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/kailas-cloud/econpredict/internal/model"
	"github.com/kailas-cloud/econpredict/internal/tokenizer"
)

// Options configures how a model directory is opened.
type Options struct {
	// LibraryPath points at libonnxruntime; empty uses the platform default lookup.
	LibraryPath  string
	ModelFile    string
	InputIDs     string
	Attention    string
	TokenTypes   string // empty if the graph has no token_type_ids input
	LogitsOutput string
	HiddenOutput string
}

// ApplyDefaults fills unset names with the conventional BERT export names.
func (o *Options) ApplyDefaults() {
	if o.ModelFile == "" {
		o.ModelFile = "model.onnx"
	}
	if o.InputIDs == "" {
		o.InputIDs = "input_ids"
	}
	if o.Attention == "" {
		o.Attention = "attention_mask"
	}
	if o.LogitsOutput == "" {
		o.LogitsOutput = "logits"
	}
	if o.HiddenOutput == "" {
		o.HiddenOutput = "last_hidden_state"
	}
}

var (
	envOnce sync.Once
	errEnv  error
)

func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			errEnv = fmt.Errorf("init onnxruntime: %w", err)
		}
	})
	return errEnv
}

// Classifier is a model.Classifier backed by an onnxruntime session.
// The session is safe for concurrent Run calls.
type Classifier struct {
	session    *ort.DynamicAdvancedSession
	name       string
	numLabels  int
	hiddenSize int
	withTypes  bool
}

var _ model.Classifier = (*Classifier)(nil)

// Load opens dir/<ModelFile> and reads dir/config.json for label and hidden sizes.
func Load(dir string, opts Options) (*Classifier, error) {
	opts.ApplyDefaults()

	modelPath := filepath.Join(dir, opts.ModelFile)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("stat model: %w", err)
	}
	cfg, err := model.ReadConfig(dir)
	if err != nil {
		return nil, err
	}
	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, err
	}

	inputs := []string{opts.InputIDs, opts.Attention}
	if opts.TokenTypes != "" {
		inputs = append(inputs, opts.TokenTypes)
	}
	outputs := []string{opts.LogitsOutput, opts.HiddenOutput}

	session, err := ort.NewDynamicAdvancedSession(modelPath, inputs, outputs, nil)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Classifier{
		session:    session,
		name:       filepath.Base(filepath.Clean(dir)),
		numLabels:  cfg.NumLabels,
		hiddenSize: cfg.HiddenSize,
		withTypes:  opts.TokenTypes != "",
	}, nil
}

// Predict implements model.Classifier.
func (c *Classifier) Predict(ctx context.Context, enc tokenizer.Encoding) (model.Output, error) {
	if err := ctx.Err(); err != nil {
		return model.Output{}, err
	}
	batch := enc.BatchSize()
	if batch == 0 || enc.SeqLen == 0 {
		return model.Output{}, errors.New("empty encoding")
	}

	shape := ort.NewShape(int64(batch), int64(enc.SeqLen))
	rows := [][][]int64{enc.InputIDs, enc.AttentionMask}
	if c.withTypes {
		rows = append(rows, enc.TokenTypeIDs)
	}

	inputs := make([]ort.Value, 0, len(rows))
	defer func() { destroyAll(inputs) }()
	for _, r := range rows {
		t, err := ort.NewTensor(shape, flatten(r, enc.SeqLen))
		if err != nil {
			return model.Output{}, fmt.Errorf("input tensor: %w", err)
		}
		inputs = append(inputs, t)
	}

	outputs := []ort.Value{nil, nil}
	if err := c.session.Run(inputs, outputs); err != nil {
		return model.Output{}, fmt.Errorf("run session: %w", err)
	}
	defer destroyAll(outputs)

	logits, err := float32Data(outputs[0], "logits")
	if err != nil {
		return model.Output{}, err
	}
	hidden, err := float32Data(outputs[1], "hidden states")
	if err != nil {
		return model.Output{}, err
	}

	out := model.Output{
		Batch:      batch,
		SeqLen:     enc.SeqLen,
		NumLabels:  c.numLabels,
		HiddenSize: c.hiddenSize,
		Logits:     logits,
		Hidden:     hidden,
	}
	if err := out.Validate(); err != nil {
		return model.Output{}, err
	}
	return out, nil
}

// NumLabels implements model.Classifier.
func (c *Classifier) NumLabels() int { return c.numLabels }

// HiddenSize implements model.Classifier.
func (c *Classifier) HiddenSize() int { return c.hiddenSize }

// Name implements model.Classifier.
func (c *Classifier) Name() string { return c.name }

// Close releases the session.
func (c *Classifier) Close() error {
	if err := c.session.Destroy(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// float32Data copies a tensor's data out so the tensor can be destroyed.
func float32Data(v ort.Value, what string) ([]float32, error) {
	t, ok := v.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%s: unexpected output type %T", what, v)
	}
	data := t.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func flatten(rows [][]int64, width int) []int64 {
	out := make([]int64, 0, len(rows)*width)
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func destroyAll(vs []ort.Value) {
	for _, v := range vs {
		if v != nil {
			_ = v.Destroy()
		}
	}
}
