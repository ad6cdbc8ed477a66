package domain

import (
	"time"

	"github.com/google/uuid"
)

// Article is an inbound news article as supplied by the caller.
type Article struct {
	Title           string
	Content         string
	Category        string
	Author          string
	ExternalID      string
	PublicationDate time.Time
}

// StoredArticle is the payload persisted next to an article's embedding.
type StoredArticle struct {
	ID              string
	Title           string
	Content         string
	Category        string
	Author          string
	PublicationDate time.Time
	Probability     float64
	Importance      *int
	// ContentMissing is set when the stored payload had no content value, as
	// opposed to an empty one.
	ContentMissing bool
}

// NewStoredArticle binds an article to its canonical id and predicted probability.
func NewStoredArticle(a Article, id string, probability float64) StoredArticle {
	return StoredArticle{
		ID:              id,
		Title:           a.Title,
		Content:         a.Content,
		Category:        a.Category,
		Author:          a.Author,
		PublicationDate: a.PublicationDate,
		Probability:     probability,
	}
}

// Classification is the per-article result returned to callers.
type Classification struct {
	ID          string
	Label       Label
	Probability float64
}

// KeywordHit is a single entry of the merged keyword search result.
type KeywordHit struct {
	ID      string
	Content string
}

// ResolveID returns the canonical form of externalID when it parses as a UUID.
// Anything else, including an empty string, yields a fresh random UUID.
func ResolveID(externalID string) string {
	if externalID != "" {
		if id, err := uuid.Parse(externalID); err == nil {
			return id.String()
		}
	}
	return uuid.NewString()
}
