package article

import (
	"math"
	"time"

	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/domain"
)

// Payload keys as stored next to each vector.
const (
	keyTitle           = "title"
	keyContent         = "content"
	keyCategory        = "category"
	keyAuthor          = "author"
	keyCustomID        = "custom_id"
	keyPublicationDate = "publication_date"
	keyProbability     = "probability"
	keyImportance      = "importance"
)

// NumericFields are the payload keys range filters run against.
var NumericFields = []string{keyPublicationDate}

func toPayload(a domain.StoredArticle) db.Payload {
	p := db.Payload{
		keyTitle:           a.Title,
		keyContent:         a.Content,
		keyCategory:        a.Category,
		keyAuthor:          a.Author,
		keyCustomID:        a.ID,
		keyPublicationDate: unixSeconds(a.PublicationDate),
		keyProbability:     a.Probability,
	}
	if a.Importance != nil {
		p[keyImportance] = int64(*a.Importance)
	}
	return p
}

func fromRecord(r db.Record) domain.StoredArticle {
	a := domain.StoredArticle{
		ID:       r.ID,
		Title:    r.Payload.String(keyTitle),
		Content:  r.Payload.String(keyContent),
		Category: r.Payload.String(keyCategory),
		Author:   r.Payload.String(keyAuthor),
	}
	if v, ok := r.Payload[keyContent]; !ok || v == nil {
		a.ContentMissing = true
	}
	if ts, ok := r.Payload.Float(keyPublicationDate); ok {
		a.PublicationDate = fromUnixSeconds(ts)
	}
	if p, ok := r.Payload.Float(keyProbability); ok {
		a.Probability = p
	}
	if v, ok := r.Payload.Int(keyImportance); ok {
		imp := int(v)
		a.Importance = &imp
	}
	return a
}

// unixSeconds renders t as fractional unix seconds.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

func fromUnixSeconds(ts float64) time.Time {
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}
