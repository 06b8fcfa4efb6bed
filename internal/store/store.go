package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no document exists for the id.
var ErrNotFound = errors.New("store: document not found")

// Document is a flat JSON-ish field map. Nested values survive a round trip
// but queries only match top-level fields.
type Document map[string]any

type Op string

const (
	OpEq  Op = "=="
	OpGt  Op = ">"
	OpGte Op = ">="
	OpLt  Op = "<"
	OpLte Op = "<="
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the document persistence contract the engines are written
// against. Upsert merges fields into the existing document (creating it if
// missing); it never replaces the whole document.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	Upsert(ctx context.Context, collection, id string, fields Document) error
	AppendToSet(ctx context.Context, collection, id, field string, value any) error
	Increment(ctx context.Context, collection, id, field string, delta int64) error
	Delete(ctx context.Context, collection, id string) error
}

// Encode converts a struct into a Document via its json tags.
func Encode(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode fills a struct from a Document via its json tags.
func Decode(doc Document, out any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// Matches reports whether the document satisfies the filter. Numbers compare
// numerically regardless of concrete type; everything else compares as
// strings (RFC3339 timestamps and civil dates order correctly that way).
func (f Filter) Matches(doc Document) bool {
	got, ok := doc[f.Field]
	if !ok {
		return false
	}
	if gn, gok := asFloat(got); gok {
		wn, wok := asFloat(f.Value)
		if !wok {
			return false
		}
		return cmpOK(compareFloat(gn, wn), f.Op)
	}
	gs := fmt.Sprint(got)
	ws := fmt.Sprint(f.Value)
	switch {
	case gs == ws:
		return cmpOK(0, f.Op)
	case gs < ws:
		return cmpOK(-1, f.Op)
	default:
		return cmpOK(1, f.Op)
	}
}

func cmpOK(cmp int, op Op) bool {
	switch op {
	case OpEq:
		return cmp == 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	}
	return false
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func matchesAll(doc Document, filters []Filter) bool {
	for _, f := range filters {
		if !f.Matches(doc) {
			return false
		}
	}
	return true
}

// lessByField orders two documents by a field for OrderBy. Missing fields
// sort first.
func lessByField(a, b Document, field string) bool {
	av, aok := a[field]
	bv, bok := b[field]
	if !aok || !bok {
		return !aok && bok
	}
	if an, ok := asFloat(av); ok {
		if bn, ok2 := asFloat(bv); ok2 {
			return an < bn
		}
	}
	return fmt.Sprint(av) < fmt.Sprint(bv)
}
