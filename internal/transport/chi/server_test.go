package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/domain"
	"github.com/kailas-cloud/econpredict/internal/pool"
	healthuc "github.com/kailas-cloud/econpredict/internal/usecase/health"
)

// --- Mocks ---

type mockPredictor struct {
	got []domain.Article
	err error
}

func (m *mockPredictor) ClassifyAndStore(_ context.Context, articles []domain.Article) ([]domain.Classification, error) {
	m.got = articles
	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Classification, len(articles))
	for i := range articles {
		out[i] = domain.Classification{ID: fmt.Sprintf("id-%d", i), Label: domain.Label(i % 2), Probability: 0.75}
	}
	return out, nil
}

type mockRetriever struct {
	recent     []domain.StoredArticle
	hits       []domain.KeywordHit
	err        error
	collection string
	topK       int
	timeRange  int
	annotate   bool
}

func (m *mockRetriever) FetchRecent(_ context.Context, collection string, topK int) ([]domain.StoredArticle, error) {
	m.collection, m.topK = collection, topK
	return m.recent, m.err
}

func (m *mockRetriever) SearchByKeywords(_ context.Context, timeRangeSec, topK int) ([]domain.KeywordHit, error) {
	m.timeRange, m.topK = timeRangeSec, topK
	return m.hits, m.err
}

func (m *mockRetriever) AnnotateImportance(context.Context, string, int) bool { return m.annotate }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

func newHandler(p *mockPredictor, r *mockRetriever, h *mockHealth) http.Handler {
	srv := NewServer(p, r, h, domain.CollectionImportant, zap.NewNop())
	return HandlerWithOptions(srv, ServerOptions{ErrorHandlerFunc: ParamErrorHandler})
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

// --- Tests ---

func TestPredict_OK(t *testing.T) {
	p := &mockPredictor{}
	h := newHandler(p, &mockRetriever{}, &mockHealth{})

	body := `{"articles":[
		{"title":"t1","content":"금리 인상","custom_id":"abc","publication_date":"2024-05-01T09:00:00+09:00"},
		{"title":"t2","content":"환율"}]}`
	rr := do(t, h, http.MethodPost, "/api/predict", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var resp PredictResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 || resp.Results[0].CustomID != "id-0" || resp.Results[1].Label != 1 {
		t.Errorf("unexpected results: %+v", resp.Results)
	}
	if p.got[0].ExternalID != "abc" {
		t.Errorf("custom_id not forwarded: %+v", p.got[0])
	}
	if p.got[0].PublicationDate.Location().String() != "UTC" || p.got[0].PublicationDate.Hour() != 0 {
		t.Errorf("publication date not normalized to UTC: %v", p.got[0].PublicationDate)
	}
	if !p.got[1].PublicationDate.IsZero() {
		t.Errorf("missing date must be left for the service to default")
	}
}

func TestPredict_Validation(t *testing.T) {
	cases := map[string]string{
		"malformed":     `{"articles":`,
		"no articles":   `{"articles":[]}`,
		"empty content": `{"articles":[{"title":"x","content":"  "}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p := &mockPredictor{}
			rr := do(t, newHandler(p, &mockRetriever{}, &mockHealth{}), http.MethodPost, "/api/predict", body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("got %d, want 400", rr.Code)
			}
			if p.got != nil {
				t.Error("service must not be called")
			}
		})
	}
}

func TestPredict_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   ErrorResponseCode
	}{
		{domain.ErrInferenceUnavailable, http.StatusServiceUnavailable, ErrorResponseCodeInferenceUnavailable},
		{fmt.Errorf("predict: acquire tokenizer: %w", pool.ErrAcquireTimeout), http.StatusServiceUnavailable,
			ErrorResponseCodeOverloaded},
		{fmt.Errorf("%w: article 0", domain.ErrInvalidArticle), http.StatusBadRequest, ErrorResponseCodeValidationFailed},
		{errors.New("qdrant down"), http.StatusInternalServerError, ErrorResponseCodeInternalError},
	}
	for _, tc := range cases {
		h := newHandler(&mockPredictor{err: tc.err}, &mockRetriever{}, &mockHealth{})
		rr := do(t, h, http.MethodPost, "/api/predict", `{"articles":[{"content":"x"}]}`)
		if rr.Code != tc.status {
			t.Errorf("%v: got %d, want %d", tc.err, rr.Code, tc.status)
		}
		e := decodeError(t, rr)
		if e.Code != tc.code {
			t.Errorf("%v: code %q, want %q", tc.err, e.Code, tc.code)
		}
		if tc.status == http.StatusInternalServerError && e.Message != "internal error" {
			t.Errorf("internal details leaked: %q", e.Message)
		}
	}
}

func TestRecentArticles(t *testing.T) {
	r := &mockRetriever{recent: []domain.StoredArticle{{ID: "a", Content: "x", Title: "hidden"}}}
	h := newHandler(&mockPredictor{}, r, &mockHealth{})

	rr := do(t, h, http.MethodGet, "/api/recent-articles?top_k=5", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var resp BaseResponse[ArticleResponse]
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || !resp.Success || resp.Results[0].ID != "a" || resp.Timestamp.IsZero() {
		t.Errorf("unexpected response: %+v", resp)
	}
	if r.collection != domain.CollectionImportant || r.topK != 5 {
		t.Errorf("got collection=%s topK=%d", r.collection, r.topK)
	}

	do(t, h, http.MethodGet, "/api/recent-articles", "")
	if r.topK != defaultTopK {
		t.Errorf("default top_k not applied: %d", r.topK)
	}
}

func TestRecentArticles_BadTopK(t *testing.T) {
	h := newHandler(&mockPredictor{}, &mockRetriever{}, &mockHealth{})
	for _, q := range []string{"top_k=0", "top_k=101", "top_k=abc"} {
		rr := do(t, h, http.MethodGet, "/api/recent-articles?"+q, "")
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rr.Code)
		}
	}
}

func TestSearchArticles(t *testing.T) {
	r := &mockRetriever{hits: []domain.KeywordHit{{ID: "a", Content: "x"}, {ID: "b", Content: "y"}}}
	h := newHandler(&mockPredictor{}, r, &mockHealth{})

	rr := do(t, h, http.MethodGet, "/api/search-articles?time_range_sec=3600&top_k=3", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body.String())
	}
	var resp BaseResponse[ArticleResponse]
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.Results[1].ID != "b" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if r.timeRange != 3600 || r.topK != 3 {
		t.Errorf("got timeRange=%d topK=%d", r.timeRange, r.topK)
	}

	rr = do(t, h, http.MethodGet, "/api/search-articles?time_range_sec=-1", "")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("negative range: got %d, want 400", rr.Code)
	}
}

func TestUpdateArticleImportance(t *testing.T) {
	r := &mockRetriever{annotate: true}
	h := newHandler(&mockPredictor{}, r, &mockHealth{})

	rr := do(t, h, http.MethodPost, "/api/update-article-importance", `{"point_id":"p","importance":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d", rr.Code)
	}
	var resp BaseResponse[ArticleResponse]
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Count != 0 || resp.Results == nil {
		t.Errorf("unexpected response: %+v", resp)
	}

	r.annotate = false
	rr = do(t, h, http.MethodPost, "/api/update-article-importance", `{"point_id":"p","importance":5}`)
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if rr.Code != http.StatusOK || resp.Success {
		t.Errorf("failed update must be 200 with success=false, got %d %+v", rr.Code, resp)
	}

	rr = do(t, h, http.MethodPost, "/api/update-article-importance", `{"point_id":"p"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("missing importance: got %d, want 400", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	cases := []struct {
		status healthuc.Status
		code   int
	}{
		{healthuc.Healthy, http.StatusOK},
		{healthuc.Degraded, http.StatusOK},
		{healthuc.Unhealthy, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		h := newHandler(&mockPredictor{}, &mockRetriever{}, &mockHealth{report: healthuc.Report{
			Status: tc.status,
			Checks: map[string]healthuc.CheckResult{healthuc.CheckModel: healthuc.CheckOK},
		}})
		rr := do(t, h, http.MethodGet, "/api/health", "")
		if rr.Code != tc.code {
			t.Errorf("%s: got %d, want %d", tc.status, rr.Code, tc.code)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatal(err)
		}
		if resp.Status != string(tc.status) || resp.Checks["model"] != "ok" {
			t.Errorf("unexpected body: %+v", resp)
		}
	}
}

func TestMetricsRoute(t *testing.T) {
	h := newHandler(&mockPredictor{}, &mockRetriever{}, &mockHealth{})
	rr := do(t, h, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK {
		t.Errorf("got %d", rr.Code)
	}
}
