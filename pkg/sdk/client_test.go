package econpredict

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_NoDriver(t *testing.T) {
	_, err := New(context.Background(), WithModel("model"))
	if err == nil {
		t.Fatal("expected error when no vector store provided")
	}
}

func TestNew_NoModel(t *testing.T) {
	_, err := New(context.Background(), WithMemory())
	if err == nil {
		t.Fatal("expected error when no model path provided")
	}
}

func TestNew_MissingTokenizer(t *testing.T) {
	_, err := New(context.Background(),
		WithMemory(), WithModel(t.TempDir()), WithAppRoot(t.TempDir()), WithTestMode())
	if err == nil {
		t.Fatal("expected error when vocab.txt is missing")
	}
}

func TestCreateStore_UnknownDriver(t *testing.T) {
	cfg := &clientConfig{driver: "unknown"}
	if _, err := createStore(cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestCreateStore_Memory(t *testing.T) {
	s, err := createStore(&clientConfig{driver: "memory"})
	if err != nil {
		t.Fatalf("createStore: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOptions(t *testing.T) {
	reg := prometheus.NewRegistry()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := &clientConfig{}
	for _, o := range []Option{
		WithQdrant("http://q:6333", "key"),
		WithModel("/models/finbert"),
		WithAppRoot("/srv"),
		WithTestMode(),
		WithONNXRuntime("/usr/lib/libonnxruntime.so"),
		WithPoolSize(8),
		WithAcquireTimeout(0),
		WithMaxSeqLen(128),
		WithLogger(logger),
		WithPrometheus(reg),
	} {
		o.apply(cfg)
	}

	if cfg.driver != "qdrant" || cfg.url != "http://q:6333" || cfg.apiKey != "key" {
		t.Errorf("qdrant options = %q %q %q", cfg.driver, cfg.url, cfg.apiKey)
	}
	if cfg.modelPath != "/models/finbert" || cfg.appRoot != "/srv" || !cfg.testMode {
		t.Errorf("model options = %q %q %v", cfg.modelPath, cfg.appRoot, cfg.testMode)
	}
	if cfg.onnxLibrary != "/usr/lib/libonnxruntime.so" || cfg.poolSize != 8 || cfg.maxSeqLen != 128 {
		t.Errorf("runtime options = %q %d %d", cfg.onnxLibrary, cfg.poolSize, cfg.maxSeqLen)
	}
	if got := acquireTimeout(cfg); got != 0 {
		t.Errorf("explicit zero acquire timeout = %s, want 0", got)
	}
	if cfg.logger != logger || cfg.metricsReg != reg {
		t.Error("logger or registerer not applied")
	}
}

func TestAcquireTimeout_Default(t *testing.T) {
	if got := acquireTimeout(&clientConfig{}); got != 30*time.Second {
		t.Errorf("default acquire timeout = %s, want 30s", got)
	}
}

func TestWithRedis(t *testing.T) {
	cfg := &clientConfig{}
	WithRedis("localhost:6379", "pw").apply(cfg)
	if cfg.driver != "redis" || len(cfg.addrs) != 1 || cfg.addrs[0] != "localhost:6379" || cfg.password != "pw" {
		t.Errorf("redis options = %+v", cfg)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var o *observer
	o.observe("classify", time.Now(), 1, nil)
}

func TestObserver_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	o, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	o.observe("classify", time.Now(), 3, nil)
	o.observe("classify", time.Now(), 1, errors.New("boom"))
	o.observe("annotate", time.Now(), -1, nil)

	if got := testutil.ToFloat64(o.metrics.calls.WithLabelValues("classify", "ok")); got != 1 {
		t.Errorf("classify ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(o.metrics.calls.WithLabelValues("classify", "error")); got != 1 {
		t.Errorf("classify error = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"econpredict_sdk_calls_total",
		"econpredict_sdk_call_duration_seconds",
		"econpredict_sdk_call_items",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestObserver_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("first observer: %v", err)
	}
	second, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("second observer: %v", err)
	}

	second.observe("recent", time.Now(), 2, nil)
	if got := testutil.ToFloat64(first.metrics.calls.WithLabelValues("recent", "ok")); got != 1 {
		t.Errorf("shared counter = %v, want 1", got)
	}
}

func TestObserver_Logs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	o, err := newObserver(logger, nil)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	o.observe("search_keywords", time.Now(), 4, nil)
	o.observe("annotate", time.Now(), -1, errors.New("not updated"))

	out := buf.String()
	if !strings.Contains(out, "call completed") || !strings.Contains(out, "op=search_keywords") || !strings.Contains(out, "items=4") {
		t.Errorf("missing completion line: %s", out)
	}
	if !strings.Contains(out, "call failed") || !strings.Contains(out, "not updated") {
		t.Errorf("missing failure line: %s", out)
	}
}

// writeVocab creates a minimal WordPiece model directory.
func writeVocab(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	vocab := []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "rate", "inflation", "fed", "cut", "##s", "stocks", "rally", "."}
	if err := os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(strings.Join(vocab, "\n")+"\n"), 0o600); err != nil {
		t.Fatalf("write vocab: %v", err)
	}
	return dir
}

func TestClient_EndToEnd(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx,
		WithMemory(),
		WithModel(writeVocab(t)),
		WithAppRoot(t.TempDir()),
		WithTestMode(),
		WithPoolSize(2),
		WithMaxSeqLen(32),
		WithPrometheus(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	id := "3f2a9c4e-8b1d-4c6a-9e7f-0a1b2c3d4e5f"
	res, err := c.Classify(ctx, []Article{
		{Title: "Fed", Content: "Fed cuts rates.", ID: id},
		{Title: "Markets", Content: "Stocks rally on inflation data."},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("classifications = %d, want 2", len(res))
	}
	if res[0].ID != id {
		t.Errorf("id = %q, want %q", res[0].ID, id)
	}
	for i, r := range res {
		if !r.Important || r.Probability < 0.5 {
			t.Errorf("result %d = %+v, want important", i, r)
		}
	}

	recent, err := c.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}

	hits, err := c.SearchKeywords(ctx, time.Hour, 5)
	if err != nil {
		t.Fatalf("SearchKeywords: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected keyword hits")
	}
	seen := map[string]bool{}
	for _, h := range hits {
		if seen[h.ID] {
			t.Errorf("duplicate hit %s", h.ID)
		}
		seen[h.ID] = true
	}

	if !c.Annotate(ctx, id, 3) {
		t.Fatal("Annotate returned false")
	}
	if c.Annotate(ctx, "11111111-2222-3333-4444-555555555555", 1) {
		t.Error("Annotate on missing article returned true")
	}

	recent, err = c.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	var annotated bool
	for _, a := range recent {
		if a.ID == id && a.Importance != nil && *a.Importance == 3 {
			annotated = true
		}
	}
	if !annotated {
		t.Error("importance annotation not visible in Recent")
	}

	h := c.Health(ctx)
	if h.Status != "ok" {
		t.Errorf("health = %+v, want ok", h)
	}
}

func TestSearchKeywords_NegativeWindow(t *testing.T) {
	c := &Client{retrievalSvc: &mockRetrieval{}}
	if _, err := c.SearchKeywords(context.Background(), -time.Second, 5); err == nil {
		t.Fatal("expected error for negative window")
	}
}

func TestClose_NilRuntime(t *testing.T) {
	if err := (&Client{}).Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
