package repository

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no record matches an id or filter.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
)

// Record is one stored row or document, keyed by snake_case field name.
type Record = map[string]any

// Kind is the storage type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindList // list of strings, stored as JSON
	KindMap  // string map, stored as JSON
	KindTime
)

// Reserved columns present on every table.
const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

// Schema describes one table or collection to a gateway.
type Schema struct {
	Table   string
	Columns map[string]Kind // excluding the reserved columns
	Unique  []string
}

// KindOf reports the kind of column, including the reserved ones.
func (s Schema) KindOf(column string) (Kind, bool) {
	switch column {
	case FieldID:
		return KindString, true
	case FieldCreatedAt, FieldUpdatedAt:
		return KindTime, true
	}
	k, ok := s.Columns[column]
	return k, ok
}

// Op is a comparison in a Condition.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpEqFold   // case-insensitive equality on strings
	OpNotEmpty // neither null nor ""
)

type Condition struct {
	Field string
	Op    Op
	Value any
}

// Filter is a conjunction of conditions.
type Filter []Condition

func Eq(field string, v any) Condition     { return Condition{Field: field, Op: OpEq, Value: v} }
func Ne(field string, v any) Condition     { return Condition{Field: field, Op: OpNe, Value: v} }
func EqFold(field, v string) Condition     { return Condition{Field: field, Op: OpEqFold, Value: v} }
func NotEmpty(field string) Condition      { return Condition{Field: field, Op: OpNotEmpty} }
func ByID(id string) Filter                { return Filter{Eq(FieldID, id)} }
func (f Filter) And(c ...Condition) Filter { return append(append(Filter{}, f...), c...) }

type Sort struct {
	Field string
	Desc  bool
}

// Gateway is the narrow persistence interface the services depend on.
// Every call is atomic for a single record only.
type Gateway interface {
	FindOne(ctx context.Context, table string, f Filter) (Record, error)
	FindMany(ctx context.Context, table string, f Filter, sort ...Sort) ([]Record, error)
	// Insert assigns the id and returns the stored record.
	Insert(ctx context.Context, table string, rec Record) (Record, error)
	// Update applies patch to the record with id and returns the result.
	Update(ctx context.Context, table, id string, patch Record) (Record, error)
	Delete(ctx context.Context, table, id string) error
	Count(ctx context.Context, table string, f Filter) (int64, error)
}

// schemaSet validates table and column names before they reach a backend.
type schemaSet map[string]Schema

func newSchemaSet(schemas []Schema) schemaSet {
	set := make(schemaSet, len(schemas))
	for _, s := range schemas {
		set[s.Table] = s
	}
	return set
}

func (s schemaSet) lookup(table string) (Schema, error) {
	sc, ok := s[table]
	if !ok {
		return Schema{}, fmt.Errorf("unknown table %q", table)
	}
	return sc, nil
}

func (s schemaSet) check(table string, f Filter, sorts []Sort) (Schema, error) {
	sc, err := s.lookup(table)
	if err != nil {
		return sc, err
	}
	for _, c := range f {
		if _, ok := sc.KindOf(c.Field); !ok {
			return sc, fmt.Errorf("unknown column %q on %s", c.Field, table)
		}
	}
	for _, o := range sorts {
		if _, ok := sc.KindOf(o.Field); !ok {
			return sc, fmt.Errorf("unknown sort column %q on %s", o.Field, table)
		}
	}
	return sc, nil
}

// checkRecord rejects any key the schema does not declare.
func (s schemaSet) checkRecord(sc Schema, rec Record) error {
	for k := range rec {
		if _, ok := sc.KindOf(k); !ok {
			return fmt.Errorf("unknown column %q on %s", k, sc.Table)
		}
	}
	return nil
}
