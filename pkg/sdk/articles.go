package econpredict

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/econpredict/internal/domain"
)

// Article is a news article to classify.
type Article struct {
	Title    string
	Content  string
	Category string
	Author   string
	// ID is kept when it is a valid UUID; anything else is replaced by a random UUID.
	ID string
	// PublishedAt defaults to the time of the call.
	PublishedAt time.Time
}

// Classification is the predicted label of one article.
type Classification struct {
	ID          string
	Important   bool
	Probability float64
}

// StoredArticle is an article read back from the important collection.
type StoredArticle struct {
	ID          string
	Title       string
	Content     string
	Category    string
	Author      string
	PublishedAt time.Time
	Probability float64
	Importance  *int
}

// KeywordHit is one article matched by keyword search.
type KeywordHit struct {
	ID      string
	Content string
}

// Classify labels articles in one batch and stores each in the collection for its label.
// Results keep input order.
func (c *Client) Classify(ctx context.Context, articles []Article) (_ []Classification, err error) {
	start := time.Now()
	defer func() { c.obs.observe("classify", start, len(articles), err) }()

	in := make([]domain.Article, len(articles))
	for i, a := range articles {
		in[i] = domain.Article{
			Title:           a.Title,
			Content:         a.Content,
			Category:        a.Category,
			Author:          a.Author,
			ExternalID:      a.ID,
			PublicationDate: a.PublishedAt,
		}
	}

	res, err := c.predictSvc.ClassifyAndStore(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	out := make([]Classification, len(res))
	for i, r := range res {
		out[i] = Classification{ID: r.ID, Important: r.Label.IsImportant(), Probability: r.Probability}
	}
	return out, nil
}

// Recent returns up to topK important articles published in the last 24 hours.
func (c *Client) Recent(ctx context.Context, topK int) (_ []StoredArticle, err error) {
	start := time.Now()
	n := -1
	defer func() { c.obs.observe("recent", start, n, err) }()

	res, err := c.retrievalSvc.FetchRecent(ctx, c.important, topK)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	n = len(res)

	out := make([]StoredArticle, len(res))
	for i, a := range res {
		out[i] = StoredArticle{
			ID:          a.ID,
			Title:       a.Title,
			Content:     a.Content,
			Category:    a.Category,
			Author:      a.Author,
			PublishedAt: a.PublicationDate,
			Probability: a.Probability,
			Importance:  a.Importance,
		}
	}
	return out, nil
}

// SearchKeywords runs the economic keyword search over important articles.
// A positive window keeps only articles published within it; hits are
// deduplicated with the first keyword's match winning.
func (c *Client) SearchKeywords(ctx context.Context, window time.Duration, topK int) (_ []KeywordHit, err error) {
	start := time.Now()
	n := -1
	defer func() { c.obs.observe("search_keywords", start, n, err) }()

	if window < 0 {
		return nil, fmt.Errorf("search keywords: negative window %s", window)
	}

	res, err := c.retrievalSvc.SearchByKeywords(ctx, int(window/time.Second), topK)
	if err != nil {
		return nil, fmt.Errorf("search keywords: %w", err)
	}
	n = len(res)

	out := make([]KeywordHit, len(res))
	for i, h := range res {
		out[i] = KeywordHit{ID: h.ID, Content: h.Content}
	}
	return out, nil
}

// Annotate records a manual importance score on an important article.
// It reports false when the article does not exist or the update failed.
func (c *Client) Annotate(ctx context.Context, id string, importance int) bool {
	start := time.Now()
	ok := c.retrievalSvc.AnnotateImportance(ctx, id, importance)

	var err error
	if !ok {
		err = fmt.Errorf("annotate %s: not updated", id)
	}
	c.obs.observe("annotate", start, -1, err)
	return ok
}
