package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/domain"
)

// --- Mocks ---

// mockEmbedder encodes the keyword's position so Nearest can answer per keyword.
type mockEmbedder struct {
	index map[string]int
	err   error
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{float32(m.index[text])}, nil
}

type mockRepo struct {
	mu       sync.Mutex
	byVector map[int][]domain.StoredArticle
	windows  []time.Duration
	recent   []domain.StoredArticle
	err      error
	updated  map[string]int
}

func (m *mockRepo) QueryRecent(_ context.Context, _ string, topK int) ([]domain.StoredArticle, error) {
	if m.err != nil {
		return nil, m.err
	}
	if topK < len(m.recent) {
		return m.recent[:topK], nil
	}
	return m.recent, nil
}

func (m *mockRepo) Nearest(_ context.Context, vector []float32, _ int, window time.Duration) ([]domain.StoredArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.windows = append(m.windows, window)
	if m.err != nil {
		return nil, m.err
	}
	return m.byVector[int(vector[0])], nil
}

func (m *mockRepo) UpdateImportance(_ context.Context, pointID string, importance int) bool {
	if m.updated == nil {
		return false
	}
	m.updated[pointID] = importance
	return true
}

func newService(repo *mockRepo, keywords ...string) *Service {
	idx := make(map[string]int, len(keywords))
	for i, k := range keywords {
		idx[k] = i
	}
	return New(repo, &mockEmbedder{index: idx}, zap.NewNop(), WithKeywords(keywords), WithConcurrency(3))
}

func art(id, content string) domain.StoredArticle {
	return domain.StoredArticle{ID: id, Content: content}
}

func noContent(id string) domain.StoredArticle {
	return domain.StoredArticle{ID: id, ContentMissing: true}
}

// --- Tests ---

func TestSearchByKeywords_FirstWinsInKeywordOrder(t *testing.T) {
	repo := &mockRepo{byVector: map[int][]domain.StoredArticle{
		0: {art("a", "first"), art("b", "second")},
		1: {art("b", "second again"), art("c", "third")},
		2: {art("a", "dup"), noContent("d")},
	}}
	svc := newService(repo, "금리", "환율", "증시")

	got, err := svc.SearchByKeywords(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.KeywordHit{{ID: "a", Content: "first"}, {ID: "b", Content: "second"}, {ID: "c", Content: "third"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d hits, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hit %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSearchByKeywords_KeepsEmptyContent(t *testing.T) {
	repo := &mockRepo{byVector: map[int][]domain.StoredArticle{
		0: {noContent("a"), art("b", "")},
		1: {art("a", "late"), art("c", "third")},
	}}
	svc := newService(repo, "금리", "환율")

	got, err := svc.SearchByKeywords(context.Background(), 0, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A skipped hit does not claim its id, so a later keyword can still return it.
	want := []domain.KeywordHit{{ID: "b", Content: ""}, {ID: "a", Content: "late"}, {ID: "c", Content: "third"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d hits, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hit %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSearchByKeywords_Window(t *testing.T) {
	repo := &mockRepo{}
	svc := newService(repo, "금리", "환율")

	if _, err := svc.SearchByKeywords(context.Background(), 3600, 5); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SearchByKeywords(context.Background(), 0, 5); err != nil {
		t.Fatal(err)
	}

	if len(repo.windows) != 4 {
		t.Fatalf("expected 4 nearest calls, got %d", len(repo.windows))
	}
	for _, w := range repo.windows[:2] {
		if w != time.Hour {
			t.Errorf("expected 1h window, got %v", w)
		}
	}
	for _, w := range repo.windows[2:] {
		if w != 0 {
			t.Errorf("expected no window, got %v", w)
		}
	}
}

func TestSearchByKeywords_NoHits(t *testing.T) {
	svc := newService(&mockRepo{}, "금리")

	got, err := svc.SearchByKeywords(context.Background(), 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", got)
	}
}

func TestSearchByKeywords_DefaultVocabulary(t *testing.T) {
	repo := &mockRepo{}
	svc := New(repo, &mockEmbedder{index: map[string]int{}}, zap.NewNop())

	if _, err := svc.SearchByKeywords(context.Background(), 0, 1); err != nil {
		t.Fatal(err)
	}
	if len(repo.windows) != len(domain.EconKeywords) {
		t.Errorf("expected %d searches, got %d", len(domain.EconKeywords), len(repo.windows))
	}
}

func TestSearchByKeywords_Errors(t *testing.T) {
	boom := errors.New("boom")

	svc := New(&mockRepo{}, &mockEmbedder{err: boom}, zap.NewNop(), WithKeywords([]string{"x"}))
	if _, err := svc.SearchByKeywords(context.Background(), 0, 1); !errors.Is(err, boom) {
		t.Errorf("embed error: %v", err)
	}

	svc = newService(&mockRepo{err: boom}, "x")
	if _, err := svc.SearchByKeywords(context.Background(), 0, 1); !errors.Is(err, boom) {
		t.Errorf("nearest error: %v", err)
	}

	svc = New(&mockRepo{}, nil, zap.NewNop())
	if _, err := svc.SearchByKeywords(context.Background(), 0, 1); !errors.Is(err, domain.ErrInferenceUnavailable) {
		t.Errorf("nil embedder: %v", err)
	}
}

func TestFetchRecent(t *testing.T) {
	repo := &mockRepo{recent: []domain.StoredArticle{art("a", "x"), art("b", "y")}}
	svc := newService(repo)

	got, err := svc.FetchRecent(context.Background(), domain.CollectionImportant, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("unexpected result: %+v", got)
	}

	repo.err = errors.New("down")
	if _, err := svc.FetchRecent(context.Background(), domain.CollectionImportant, 1); err == nil {
		t.Error("expected error")
	}
}

func TestAnnotateImportance(t *testing.T) {
	repo := &mockRepo{}
	svc := newService(repo)
	if svc.AnnotateImportance(context.Background(), "p1", 3) {
		t.Error("expected false when repo rejects")
	}

	repo.updated = map[string]int{}
	if !svc.AnnotateImportance(context.Background(), "p1", 3) {
		t.Error("expected true")
	}
	if repo.updated["p1"] != 3 {
		t.Errorf("importance not forwarded: %v", repo.updated)
	}
}
