// Package chi implements the HTTP API on the chi router.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/domain"
	logpkg "github.com/kailas-cloud/econpredict/internal/logger"
	"github.com/kailas-cloud/econpredict/internal/pool"
	healthuc "github.com/kailas-cloud/econpredict/internal/usecase/health"
)

const (
	defaultTopK     = 10
	maxTopK         = 100
	maxRequestBytes = 10 << 20
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Predictor classifies and stores articles.
type Predictor interface {
	ClassifyAndStore(ctx context.Context, articles []domain.Article) ([]domain.Classification, error)
}

// Retriever serves the read-side article operations.
type Retriever interface {
	FetchRecent(ctx context.Context, collection string, topK int) ([]domain.StoredArticle, error)
	SearchByKeywords(ctx context.Context, timeRangeSec, topK int) ([]domain.KeywordHit, error)
	AnnotateImportance(ctx context.Context, pointID string, importance int) bool
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server implements ServerInterface.
type Server struct {
	predictor        Predictor
	retriever        Retriever
	health           HealthChecker
	recentCollection string
	logger           *zap.Logger
	now              func() time.Time
	errorHandlers    []errorHandler
}

var _ ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server. recentCollection is the collection
// listed by GET /api/recent-articles.
func NewServer(
	predictor Predictor,
	retriever Retriever,
	health HealthChecker,
	recentCollection string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		predictor:        predictor,
		retriever:        retriever,
		health:           health,
		recentCollection: recentCollection,
		logger:           logger,
		now:              time.Now,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidArticle, http.StatusBadRequest, ErrorResponseCodeValidationFailed),
		sentinelHandler(domain.ErrInferenceUnavailable,
			http.StatusServiceUnavailable, ErrorResponseCodeInferenceUnavailable),
		sentinelHandler(pool.ErrAcquireTimeout, http.StatusServiceUnavailable, ErrorResponseCodeOverloaded),
	}
	return s
}

// Predict handles POST /api/predict.
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if len(req.Articles) == 0 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "At least one article is required")
		return
	}
	articles := make([]domain.Article, len(req.Articles))
	for i, a := range req.Articles {
		if strings.TrimSpace(a.Content) == "" {
			writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
				fmt.Sprintf("Article %d: content is required", i))
			return
		}
		articles[i] = articleFromInput(a)
	}

	results, err := s.predictor.ClassifyAndStore(r.Context(), articles)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := PredictResponse{Results: make([]PredictResult, len(results))}
	for i, c := range results {
		resp.Results[i] = PredictResult{CustomID: c.ID, Label: int(c.Label), Probability: c.Probability}
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecentArticles handles GET /api/recent-articles.
func (s *Server) RecentArticles(w http.ResponseWriter, r *http.Request, params RecentArticlesParams) {
	topK, ok := topKParam(w, params.TopK)
	if !ok {
		return
	}

	articles, err := s.retriever.FetchRecent(r.Context(), s.recentCollection, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		items[i] = ArticleResponse{ID: a.ID, Content: a.Content}
	}
	writeJSON(w, http.StatusOK, s.base(items, true))
}

// SearchArticles handles GET /api/search-articles.
func (s *Server) SearchArticles(w http.ResponseWriter, r *http.Request, params SearchArticlesParams) {
	topK, ok := topKParam(w, params.TopK)
	if !ok {
		return
	}
	timeRange := derefInt(params.TimeRangeSec)
	if timeRange < 0 {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "time_range_sec must be >= 0")
		return
	}

	hits, err := s.retriever.SearchByKeywords(r.Context(), timeRange, topK)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]ArticleResponse, len(hits))
	for i, h := range hits {
		items[i] = ArticleResponse{ID: h.ID, Content: h.Content}
	}
	writeJSON(w, http.StatusOK, s.base(items, true))
}

// UpdateArticleImportance handles POST /api/update-article-importance.
func (s *Server) UpdateArticleImportance(w http.ResponseWriter, r *http.Request) {
	var req UpdateArticleImportanceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.PointID == "" || req.Importance == nil {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed, "point_id and importance are required")
		return
	}

	ok := s.retriever.AnnotateImportance(r.Context(), req.PointID, *req.Importance)
	writeJSON(w, http.StatusOK, s.base([]ArticleResponse{}, ok))
}

// HealthCheck handles GET /api/health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// ParamErrorHandler answers query binding failures registered through ServerOptions.
func ParamErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusBadRequest, ErrorResponseCodeBadRequest, err.Error())
}

func (s *Server) base(items []ArticleResponse, success bool) BaseResponse[ArticleResponse] {
	return BaseResponse[ArticleResponse]{
		Results:   items,
		Count:     len(items),
		Success:   success,
		Timestamp: s.now().UTC(),
	}
}

func articleFromInput(a ArticleInput) domain.Article {
	out := domain.Article{
		Title:    a.Title,
		Content:  a.Content,
		Category: a.Category,
		Author:   a.Author,
	}
	if a.CustomID != nil {
		out.ExternalID = *a.CustomID
	}
	if a.PublicationDate != nil {
		out.PublicationDate = a.PublicationDate.UTC()
	}
	return out
}

func topKParam(w http.ResponseWriter, p *int) (int, bool) {
	if p == nil {
		return defaultTopK, true
	}
	if *p < 1 || *p > maxTopK {
		writeError(w, http.StatusBadRequest, ErrorResponseCodeValidationFailed,
			fmt.Sprintf("top_k must be between 1 and %d", maxTopK))
		return 0, false
	}
	return *p, true
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorResponseCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidArticle,
		domain.ErrInferenceUnavailable,
		pool.ErrAcquireTimeout,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorResponseCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorResponseCodeInternalError, "internal error")
}
