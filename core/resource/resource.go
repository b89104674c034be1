// Package resource holds the declarative table of resource kinds and the
// generic CRUD engine that executes against it.
package resource

import (
	"context"

	"beatmarket/repository"
)

// FieldActive is the soft-delete flag.
const FieldActive = "is_active"

type DeletePolicy int

const (
	HardDelete DeletePolicy = iota
	SoftDelete              // clears is_active; the record stays readable by id
)

// Resource is one registry entry.
type Resource struct {
	Name     string // route segment, e.g. "sound-kits"
	Label    string // used in messages, e.g. "Sound kit"
	Title    string // success messages; defaults to Label
	Table    string
	Singular string // response envelope keys
	Plural   string

	Fields []Field

	UniqueKey   string // empty when the resource has none
	UniqueLabel string // "ID" in "Track with this ID already exists"

	Delete DeletePolicy
	Sort   repository.Sort

	// Prepare runs after validation and before the write. It may rewrite
	// virtual fields into stored ones.
	Prepare func(ctx context.Context, rec repository.Record, create bool) error

	index map[string]*Field
}

// DisplayTitle names the resource in success messages.
func (r *Resource) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Label
}

func (r *Resource) buildIndex() {
	r.index = make(map[string]*Field, len(r.Fields))
	for i := range r.Fields {
		r.index[r.Fields[i].Name] = &r.Fields[i]
	}
}

func (r *Resource) field(name string) (*Field, bool) {
	if r.index == nil {
		for i := range r.Fields {
			if r.Fields[i].Name == name {
				return &r.Fields[i], true
			}
		}
		return nil, false
	}
	f, ok := r.index[name]
	return f, ok
}

// Schema describes the stored columns to a persistence gateway.
func (r *Resource) Schema() repository.Schema {
	sc := repository.Schema{Table: r.Table, Columns: map[string]repository.Kind{}}
	for _, f := range r.Fields {
		if f.Virtual {
			continue
		}
		sc.Columns[f.Name] = f.Kind
	}
	if r.UniqueKey != "" {
		sc.Unique = []string{r.UniqueKey}
	}
	return sc
}

// Registry indexes resources by route name.
type Registry struct {
	byName map[string]*Resource
	order  []*Resource
}

func NewRegistry(resources ...*Resource) *Registry {
	reg := &Registry{byName: make(map[string]*Resource, len(resources))}
	for _, r := range resources {
		r.buildIndex()
		reg.byName[r.Name] = r
		reg.order = append(reg.order, r)
	}
	return reg
}

func (reg *Registry) Get(name string) (*Resource, bool) {
	r, ok := reg.byName[name]
	return r, ok
}

// MustGet panics on an unknown name; use it only with the package constants.
func (reg *Registry) MustGet(name string) *Resource {
	r, ok := reg.byName[name]
	if !ok {
		panic("resource: unknown resource " + name)
	}
	return r
}

// All returns resources in registration order.
func (reg *Registry) All() []*Resource {
	return append([]*Resource(nil), reg.order...)
}

func (reg *Registry) Schemas() []repository.Schema {
	out := make([]repository.Schema, 0, len(reg.order))
	for _, r := range reg.order {
		out = append(out, r.Schema())
	}
	return out
}
