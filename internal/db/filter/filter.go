// Package filter holds the structured payload filters understood by every vector store driver.
package filter

import "fmt"

// MaxConditions is the maximum number of conditions in one expression.
const MaxConditions = 16

// Expression is a conjunction of conditions. The zero value matches everything.
type Expression struct {
	must []Condition
}

// And validates and combines conditions; a point must satisfy all of them.
func And(conds ...Condition) (Expression, error) {
	if len(conds) > MaxConditions {
		return Expression{}, fmt.Errorf("too many conditions (max %d)", MaxConditions)
	}
	return Expression{must: conds}, nil
}

// Must returns the conditions.
func (e Expression) Must() []Condition { return e.must }

// IsEmpty reports whether the expression has no conditions.
func (e Expression) IsEmpty() bool { return len(e.must) == 0 }

// Matches evaluates the expression against numeric payload lookups.
// A condition on a missing or non-numeric key does not match.
func (e Expression) Matches(lookup func(key string) (float64, bool)) bool {
	for _, c := range e.must {
		v, ok := lookup(c.key)
		if !ok || !c.rng.Contains(v) {
			return false
		}
	}
	return true
}

// Condition restricts a numeric payload key to a range.
type Condition struct {
	key string
	rng Range
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rng: r}, nil
}

// AtLeast is the common key >= v condition.
func AtLeast(key string, v float64) (Condition, error) {
	r, err := NewRangeBounds(nil, &v, nil, nil)
	if err != nil {
		return Condition{}, err
	}
	return NewRange(key, r)
}

// Key returns the payload key.
func (c Condition) Key() string { return c.key }

// Range returns the numeric range.
func (c Condition) Range() Range { return c.rng }

// Range is a numeric interval with optional gt/gte/lt/lte bounds.
type Range struct {
	gt  *float64
	gte *float64
	lt  *float64
	lte *float64
}

// NewRangeBounds validates and creates a Range.
// At least one bound is required; gt/gte and lt/lte are mutually exclusive.
func NewRangeBounds(gt, gte, lt, lte *float64) (Range, error) {
	if gt == nil && gte == nil && lt == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range bound is required")
	}
	if gt != nil && gte != nil {
		return Range{}, fmt.Errorf("cannot specify both gt and gte")
	}
	if lt != nil && lte != nil {
		return Range{}, fmt.Errorf("cannot specify both lt and lte")
	}
	return Range{gt: gt, gte: gte, lt: lt, lte: lte}, nil
}

// GT returns the lower exclusive bound.
func (r Range) GT() *float64 { return r.gt }

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LT returns the upper exclusive bound.
func (r Range) LT() *float64 { return r.lt }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Contains reports whether v lies within the range.
func (r Range) Contains(v float64) bool {
	switch {
	case r.gt != nil && v <= *r.gt:
		return false
	case r.gte != nil && v < *r.gte:
		return false
	case r.lt != nil && v >= *r.lt:
		return false
	case r.lte != nil && v > *r.lte:
		return false
	}
	return true
}
