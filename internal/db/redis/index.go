package redis

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/econpredict/internal/db"
)

// EnsureCollection creates the FT index for a collection when FT.INFO reports it missing.
func (s *Store) EnsureCollection(ctx context.Context, spec db.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: err}
	}

	info := s.b().Arbitrary("FT.INFO").Args(indexName(spec.Name)).Build()
	err := s.do(ctx, info).Error()
	if err == nil {
		return nil
	}
	if !isRedisErr(err, "unknown index name") && !isRedisErr(err, "no such index") {
		return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: err}
	}

	create := s.b().Arbitrary("FT.CREATE").Args(buildCreateArgs(spec)...).Build()
	if err := s.do(ctx, create).Error(); err != nil && !isRedisErr(err, "index already exists") {
		return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: err}
	}
	return nil
}

func buildCreateArgs(spec db.CollectionSpec) []string {
	metric := distanceMetric(spec.Distance)
	args := []string{
		indexName(spec.Name),
		"ON", "HASH",
		"PREFIX", "1", spec.Name + ":",
		"SCHEMA",
		fieldVector, "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(spec.Dim),
		"DISTANCE_METRIC", metric,
	}
	for _, f := range spec.NumericFields {
		args = append(args, f, "NUMERIC")
	}
	return args
}

func distanceMetric(d db.Distance) string {
	switch d {
	case db.DistanceDot:
		return "IP"
	case db.DistanceEuclid:
		return "L2"
	default:
		return "COSINE"
	}
}
