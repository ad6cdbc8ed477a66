package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/db/filter"
)

// Scroll returns up to q.Limit points matching q.Filter via FT.SEARCH.
func (s *Store) Scroll(ctx context.Context, q *db.ScrollQuery) ([]db.Record, error) {
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	query := buildFilter(q.Filter)
	if query == "" {
		query = "*"
	}
	args := []string{
		indexName(q.Collection), query,
		"RETURN", "1", fieldPayload,
		"LIMIT", "0", strconv.Itoa(q.Limit),
		"DIALECT", "2",
	}

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Collection: q.Collection, Err: notFoundAsCollection(err)}
	}

	hits, err := parseSearchResult(raw, q.Collection)
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Collection: q.Collection, Err: err}
	}
	out := make([]db.Record, len(hits))
	for i, h := range hits {
		out[i] = h.Record
	}
	return out, nil
}

// Query runs a KNN vector similarity search via FT.SEARCH.
func (s *Store) Query(ctx context.Context, q *db.KNNQuery) ([]db.ScoredRecord, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	knn := fmt.Sprintf("[KNN %d @%s $BLOB]", q.K, fieldVector)
	query := "*=>" + knn
	if f := buildFilter(q.Filter); f != "" {
		query = "(" + f + ")=>" + knn
	}
	args := []string{
		indexName(q.Collection), query,
		"RETURN", "2", fieldPayload, fieldScore,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	}

	raw, err := s.do(ctx, s.b().Arbitrary("FT.SEARCH").Args(args...).Build()).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Collection: q.Collection, Err: notFoundAsCollection(err)}
	}

	hits, err := parseSearchResult(raw, q.Collection)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Collection: q.Collection, Err: err}
	}
	return hits, nil
}

// parseSearchResult reads the 2-stride RESP2 reply [total, key1, fields1, key2, fields2, ...].
// The __vector_score distance, when present, becomes a higher-is-closer score.
func parseSearchResult(raw []rueidis.RedisMessage, collection string) ([]db.ScoredRecord, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	prefix := collection + ":"
	out := make([]db.ScoredRecord, 0, (len(raw)-1)/2)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		m := parseFieldPairs(fields)

		payload, err := decodePayload(m[fieldPayload])
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", key, err)
		}
		rec := db.ScoredRecord{Record: db.Record{ID: strings.TrimPrefix(key, prefix), Payload: payload}}
		if d, err := strconv.ParseFloat(m[fieldScore], 64); err == nil {
			rec.Score = 1 - d
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// buildFilter translates filter.Expression into an FT.SEARCH pre-filter query string.
func buildFilter(expr filter.Expression) string {
	if expr.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(expr.Must()))
	for _, c := range expr.Must() {
		parts = append(parts, buildNumericFilter(c.Key(), c.Range()))
	}
	return strings.Join(parts, " ")
}

func buildNumericFilter(key string, r filter.Range) string {
	minBound := "-inf"
	maxBound := "+inf"

	if r.GT() != nil {
		minBound = "(" + formatBound(*r.GT())
	} else if r.GTE() != nil {
		minBound = formatBound(*r.GTE())
	}

	if r.LT() != nil {
		maxBound = "(" + formatBound(*r.LT())
	} else if r.LTE() != nil {
		maxBound = formatBound(*r.LTE())
	}

	return fmt.Sprintf("@%s:[%s %s]", key, minBound, maxBound)
}

// formatBound avoids exponent notation, which FT.SEARCH range syntax rejects for unix timestamps.
func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
