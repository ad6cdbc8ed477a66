package qdrant

import (
	"strconv"

	"github.com/qdrant/go-client/qdrant"

	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/db/filter"
)

func toFilter(expr filter.Expression) *qdrant.Filter {
	if expr.IsEmpty() {
		return nil
	}
	must := make([]*qdrant.Condition, 0, len(expr.Must()))
	for _, c := range expr.Must() {
		r := c.Range()
		must = append(must, qdrant.NewRange(c.Key(), &qdrant.Range{
			Gt:  r.GT(),
			Gte: r.GTE(),
			Lt:  r.LT(),
			Lte: r.LTE(),
		}))
	}
	return &qdrant.Filter{Must: must}
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func fromValueMap(m map[string]*qdrant.Value) db.Payload {
	out := make(db.Payload, len(m))
	for k, v := range m {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		vals := kind.ListValue.GetValues()
		out := make([]any, len(vals))
		for i, item := range vals {
			out[i] = fromValue(item)
		}
		return out
	case *qdrant.Value_StructValue:
		return map[string]any(fromValueMap(kind.StructValue.GetFields()))
	default:
		return nil
	}
}
