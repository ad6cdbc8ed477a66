package filter

import (
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

func TestNewRangeBounds_Invalid(t *testing.T) {
	tests := []struct {
		name             string
		gt, gte, lt, lte *float64
		wantErr          string
	}{
		{"no bounds", nil, nil, nil, nil, "at least one"},
		{"gt and gte", floatPtr(1), floatPtr(1), nil, nil, "gt and gte"},
		{"lt and lte", nil, nil, floatPtr(1), floatPtr(1), "lt and lte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRangeBounds(tt.gt, tt.gte, tt.lt, tt.lte)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRange_Contains(t *testing.T) {
	r, err := NewRangeBounds(floatPtr(0), nil, nil, floatPtr(10))
	if err != nil {
		t.Fatal(err)
	}
	cases := map[float64]bool{-1: false, 0: false, 0.5: true, 10: true, 10.1: false}
	for v, want := range cases {
		if got := r.Contains(v); got != want {
			t.Errorf("Contains(%v) = %v, want %v", v, got, want)
		}
	}
}

func TestAtLeast(t *testing.T) {
	c, err := AtLeast("publication_date", 100)
	if err != nil {
		t.Fatal(err)
	}
	if c.Key() != "publication_date" || c.Range().GTE() == nil || *c.Range().GTE() != 100 {
		t.Fatalf("unexpected condition: %+v", c)
	}
	if !c.Range().Contains(100) || c.Range().Contains(99.9) {
		t.Error("AtLeast must be inclusive")
	}
}

func TestNewRange_EmptyKey(t *testing.T) {
	if _, err := NewRange("", Range{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestExpression_Matches(t *testing.T) {
	c, _ := AtLeast("publication_date", 100)
	expr, err := And(c)
	if err != nil {
		t.Fatal(err)
	}
	payload := map[string]float64{"publication_date": 150}
	lookup := func(k string) (float64, bool) { v, ok := payload[k]; return v, ok }

	if !expr.Matches(lookup) {
		t.Error("expected match")
	}
	payload["publication_date"] = 50
	if expr.Matches(lookup) {
		t.Error("expected no match")
	}
	delete(payload, "publication_date")
	if expr.Matches(lookup) {
		t.Error("missing key must not match")
	}
	if !(Expression{}).Matches(lookup) {
		t.Error("empty expression matches everything")
	}
}

func TestAnd_TooMany(t *testing.T) {
	c, _ := AtLeast("x", 0)
	conds := make([]Condition, MaxConditions+1)
	for i := range conds {
		conds[i] = c
	}
	if _, err := And(conds...); err == nil {
		t.Fatal("expected error")
	}
}
