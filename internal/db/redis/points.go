package redis

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/econpredict/internal/db"
)

// Upsert stores every point as one hash in a single DoMulti round-trip.
// Numeric payload values are mirrored into top-level fields so NUMERIC index fields see them.
func (s *Store) Upsert(ctx context.Context, collection string, points []db.Point) error {
	if len(points) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(points))
	for i, p := range points {
		fields, err := hashFields(p.Payload)
		if err != nil {
			return &db.Error{Op: db.OpUpsert, Collection: collection, Err: fmt.Errorf("point %s: %w", p.ID, err)}
		}
		cmd := s.b().Hset().Key(pointKey(collection, p.ID)).FieldValue().
			FieldValue(fieldVector, vectorToBytes(p.Vector))
		for k, v := range fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpUpsert, Collection: collection, Err: fmt.Errorf("point %s: %w", points[i].ID, err)}
		}
	}
	return nil
}

// maxPayloadAttempts bounds optimistic retries when a watched point changes mid-merge.
const maxPayloadAttempts = 5

var errPayloadConflict = errors.New("point modified concurrently")

// SetPayload merges keys into the payload of an existing point. It never creates a point.
// The read-merge-write runs under WATCH on a dedicated connection and is retried when
// another writer touches the point before EXEC.
func (s *Store) SetPayload(ctx context.Context, collection, id string, payload db.Payload) error {
	key := pointKey(collection, id)

	err := s.client.Dedicated(func(c rueidis.DedicatedClient) error {
		for range maxPayloadAttempts {
			err := mergePayload(ctx, c, key, payload)
			if !errors.Is(err, errPayloadConflict) {
				return err
			}
		}
		return errPayloadConflict
	})
	if err != nil {
		return &db.Error{Op: db.OpSetPayload, Collection: collection, Err: err}
	}
	return nil
}

// mergePayload performs one WATCH, HGET, MULTI/HSET/EXEC attempt.
func mergePayload(ctx context.Context, c rueidis.DedicatedClient, key string, payload db.Payload) error {
	if err := c.Do(ctx, c.B().Watch().Key(key).Build()).Error(); err != nil {
		return err
	}

	raw, err := c.Do(ctx, c.B().Hget().Key(key).Field(fieldPayload).Build()).ToString()
	if err != nil {
		c.Do(ctx, c.B().Unwatch().Build())
		if rueidis.IsRedisNil(err) {
			return db.ErrPointNotFound
		}
		return err
	}

	current, err := decodePayload(raw)
	if err != nil {
		c.Do(ctx, c.B().Unwatch().Build())
		return err
	}
	maps.Copy(current, payload)
	fields, err := hashFields(current)
	if err != nil {
		c.Do(ctx, c.B().Unwatch().Build())
		return err
	}

	hset := c.B().Hset().Key(key).FieldValue()
	for k, v := range fields {
		hset = hset.FieldValue(k, v)
	}
	res := c.DoMulti(ctx,
		c.B().Multi().Build(),
		hset.Build(),
		c.B().Exec().Build(),
	)
	for _, r := range res[:len(res)-1] {
		if err := r.Error(); err != nil {
			return err
		}
	}
	if err := res[len(res)-1].Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return errPayloadConflict
		}
		return err
	}
	return nil
}

// hashFields renders the JSON payload field plus one field per numeric payload value.
func hashFields(p db.Payload) (map[string]string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	fields := map[string]string{fieldPayload: string(data)}
	for k := range p {
		if k == fieldPayload || k == fieldVector {
			continue
		}
		if v, ok := p.Float(k); ok {
			fields[k] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return fields, nil
}

func decodePayload(raw string) (db.Payload, error) {
	p := db.Payload{}
	if raw == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
