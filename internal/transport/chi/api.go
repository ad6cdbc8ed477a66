package chi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ErrorResponseCode is a machine-readable error code.
type ErrorResponseCode string

// Error codes returned by the API.
const (
	ErrorResponseCodeBadRequest           ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed     ErrorResponseCode = "validation_failed"
	ErrorResponseCodeInferenceUnavailable ErrorResponseCode = "inference_unavailable"
	ErrorResponseCodeOverloaded           ErrorResponseCode = "overloaded"
	ErrorResponseCodeInternalError        ErrorResponseCode = "internal_error"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// ArticleInput is one article of a predict request.
type ArticleInput struct {
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Category        string     `json:"category"`
	Author          string     `json:"author"`
	CustomID        *string    `json:"custom_id,omitempty"`
	PublicationDate *time.Time `json:"publication_date,omitempty"`
}

// PredictRequest is the body of POST /api/predict.
type PredictRequest struct {
	Articles []ArticleInput `json:"articles"`
}

// PredictResult is the classification of one article.
type PredictResult struct {
	CustomID    string  `json:"custom_id"`
	Label       int     `json:"label"`
	Probability float64 `json:"probability"`
}

// PredictResponse is the body returned by POST /api/predict.
type PredictResponse struct {
	Results []PredictResult `json:"results"`
}

// ArticleResponse is an article as listed by the retrieval endpoints.
type ArticleResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// BaseResponse wraps retrieval results.
type BaseResponse[T any] struct {
	Results   []T       `json:"results"`
	Count     int       `json:"count"`
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateArticleImportanceRequest is the body of POST /api/update-article-importance.
type UpdateArticleImportanceRequest struct {
	PointID    string `json:"point_id"`
	Importance *int   `json:"importance"`
}

// HealthResponse is the body returned by GET /api/health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// RecentArticlesParams are the query parameters of GET /api/recent-articles.
type RecentArticlesParams struct {
	TopK *int `form:"top_k,omitempty" json:"top_k,omitempty"`
}

// SearchArticlesParams are the query parameters of GET /api/search-articles.
type SearchArticlesParams struct {
	TimeRangeSec *int `form:"time_range_sec,omitempty" json:"time_range_sec,omitempty"`
	TopK         *int `form:"top_k,omitempty" json:"top_k,omitempty"`
}

// ServerInterface is implemented by the API server.
type ServerInterface interface {
	// Predict handles POST /api/predict.
	Predict(w http.ResponseWriter, r *http.Request)
	// RecentArticles handles GET /api/recent-articles.
	RecentArticles(w http.ResponseWriter, r *http.Request, params RecentArticlesParams)
	// SearchArticles handles GET /api/search-articles.
	SearchArticles(w http.ResponseWriter, r *http.Request, params SearchArticlesParams)
	// UpdateArticleImportance handles POST /api/update-article-importance.
	UpdateArticleImportance(w http.ResponseWriter, r *http.Request)
	// HealthCheck handles GET /api/health.
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// Metrics handles GET /metrics.
	Metrics(w http.ResponseWriter, r *http.Request)
}

// ServerOptions configures HandlerWithOptions.
type ServerOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// InvalidParamFormatError reports a query parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// HandlerWithOptions mounts every API route on the base router.
func HandlerWithOptions(si ServerInterface, options ServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	errorHandler := options.ErrorHandlerFunc
	if errorHandler == nil {
		errorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	w := &wrapper{handler: si, errorHandler: errorHandler}

	r.Route("/api", func(r chi.Router) {
		r.Post("/predict", si.Predict)
		r.Get("/recent-articles", w.recentArticles)
		r.Get("/search-articles", w.searchArticles)
		r.Post("/update-article-importance", si.UpdateArticleImportance)
		r.Get("/health", si.HealthCheck)
	})
	r.Get("/metrics", si.Metrics)
	return r
}

type wrapper struct {
	handler      ServerInterface
	errorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

func (wr *wrapper) recentArticles(w http.ResponseWriter, r *http.Request) {
	var params RecentArticlesParams
	if err := runtime.BindQueryParameter("form", true, false, "top_k", r.URL.Query(), &params.TopK); err != nil {
		wr.errorHandler(w, r, &InvalidParamFormatError{ParamName: "top_k", Err: err})
		return
	}
	wr.handler.RecentArticles(w, r, params)
}

func (wr *wrapper) searchArticles(w http.ResponseWriter, r *http.Request) {
	var params SearchArticlesParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "time_range_sec", q, &params.TimeRangeSec); err != nil {
		wr.errorHandler(w, r, &InvalidParamFormatError{ParamName: "time_range_sec", Err: err})
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "top_k", q, &params.TopK); err != nil {
		wr.errorHandler(w, r, &InvalidParamFormatError{ParamName: "top_k", Err: err})
		return
	}
	wr.handler.SearchArticles(w, r, params)
}
