// Package qdrant implements db.VectorStore over the Qdrant gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kailas-cloud/econpredict/internal/db"
)

// DefaultGRPCPort is Qdrant's gRPC listener.
const DefaultGRPCPort = 6334

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

// Config holds connection parameters for a Qdrant store.
type Config struct {
	// URL is the Qdrant address, e.g. http://qdrant:6333. Only host and scheme are used;
	// the client always speaks gRPC on GRPCPort.
	URL      string
	APIKey   string
	GRPCPort int
}

// Store implements db.VectorStore with the official Qdrant client.
type Store struct {
	client *qdrant.Client
}

// NewStore creates a Qdrant store. The connection is lazy; use Ping to verify it.
func NewStore(cfg Config) (*Store, error) {
	qc, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(qc)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return &Store{client: client}, nil
}

func clientConfig(cfg Config) (*qdrant.Config, error) {
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}
	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("url %q has no host", cfg.URL)
	}

	port := cfg.GRPCPort
	if port <= 0 {
		port = DefaultGRPCPort
	}

	return &qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	}, nil
}

// Address returns host:port as dialed, for logs.
func Address(cfg Config) string {
	qc, err := clientConfig(cfg)
	if err != nil {
		return cfg.URL
	}
	return net.JoinHostPort(qc.Host, strconv.Itoa(qc.Port))
}

// Ping checks connectivity via the health check RPC.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection when absent and payload indexes for
// numeric fields on every call, so collections created elsewhere get them too.
func (s *Store) EnsureCollection(ctx context.Context, spec db.CollectionSpec) error {
	if err := spec.Validate(); err != nil {
		return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: err}
	}

	exists, err := s.client.CollectionExists(ctx, spec.Name)
	if err != nil {
		return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: err}
	}
	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: spec.Name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(spec.Dim),
				Distance: distance(spec.Distance),
			}),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: err}
		}
	}

	for _, field := range spec.NumericFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: spec.Name,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeFloat.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil && status.Code(err) != codes.AlreadyExists {
			return &db.Error{Op: db.OpEnsureCollection, Collection: spec.Name, Err: fmt.Errorf("index %s: %w", field, err)}
		}
	}
	return nil
}

// Upsert writes points and waits for the write to be applied.
func (s *Store) Upsert(ctx context.Context, collection string, points []db.Point) error {
	if len(points) == 0 {
		return nil
	}
	qp := make([]*qdrant.PointStruct, len(points))
	for i, p := range points {
		payload, err := qdrant.TryValueMap(p.Payload)
		if err != nil {
			return &db.Error{Op: db.OpUpsert, Collection: collection, Err: fmt.Errorf("point %s payload: %w", p.ID, err)}
		}
		qp[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(p.ID),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: payload,
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qp,
	})
	if err != nil {
		return &db.Error{Op: db.OpUpsert, Collection: collection, Err: mapStatus(err)}
	}
	return nil
}

// SetPayload merges payload keys into an existing point.
func (s *Store) SetPayload(ctx context.Context, collection, id string, payload db.Payload) error {
	values, err := qdrant.TryValueMap(payload)
	if err != nil {
		return &db.Error{Op: db.OpSetPayload, Collection: collection, Err: err}
	}
	_, err = s.client.SetPayload(ctx, &qdrant.SetPayloadPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Payload:        values,
		PointsSelector: qdrant.NewPointsSelector(qdrant.NewIDUUID(id)),
	})
	if err != nil {
		return &db.Error{Op: db.OpSetPayload, Collection: collection, Err: mapStatus(err)}
	}
	return nil
}

// Scroll reads up to q.Limit points matching q.Filter without vectors.
func (s *Store) Scroll(ctx context.Context, q *db.ScrollQuery) ([]db.Record, error) {
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.Collection,
		Filter:         toFilter(q.Filter),
		Limit:          qdrant.PtrOf(uint32(q.Limit)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpScroll, Collection: q.Collection, Err: mapStatus(err)}
	}

	out := make([]db.Record, 0, len(points))
	for _, p := range points {
		out = append(out, db.Record{ID: pointID(p.GetId()), Payload: fromValueMap(p.GetPayload())})
	}
	return out, nil
}

// Query runs a nearest-neighbour search.
func (s *Store) Query(ctx context.Context, q *db.KNNQuery) ([]db.ScoredRecord, error) {
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.Collection,
		Query:          qdrant.NewQuery(q.Vector...),
		Filter:         toFilter(q.Filter),
		Limit:          qdrant.PtrOf(uint64(q.K)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Collection: q.Collection, Err: mapStatus(err)}
	}

	out := make([]db.ScoredRecord, 0, len(points))
	for _, p := range points {
		out = append(out, db.ScoredRecord{
			Record: db.Record{ID: pointID(p.GetId()), Payload: fromValueMap(p.GetPayload())},
			Score:  float64(p.GetScore()),
		})
	}
	return out, nil
}

func distance(d db.Distance) qdrant.Distance {
	switch d {
	case db.DistanceDot:
		return qdrant.Distance_Dot
	case db.DistanceEuclid:
		return qdrant.Distance_Euclid
	default:
		return qdrant.Distance_Cosine
	}
}

// mapStatus tags NotFound statuses with db.ErrCollectionNotFound or db.ErrPointNotFound.
func mapStatus(err error) error {
	if nf := notFound(err); nf != nil {
		return fmt.Errorf("%w: %w", nf, err)
	}
	return err
}

// notFound reports which resource a NotFound status refers to, or nil.
// Only the server's status message is inspected: the client's wrapper text
// carries the collection name, which may itself contain "collection".
func notFound(err error) error {
	var se interface{ GRPCStatus() *status.Status }
	if !errors.As(err, &se) {
		return nil
	}
	st := se.GRPCStatus()
	if st.Code() != codes.NotFound {
		return nil
	}
	if strings.Contains(strings.ToLower(st.Message()), "collection") {
		return db.ErrCollectionNotFound
	}
	return db.ErrPointNotFound
}
