package resource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"beatmarket/core/apperr"
	"beatmarket/core/naming"
	"beatmarket/repository"
)

// Engine runs create/read/update/delete/list for one resource. Payloads in
// and records out use the external (camelCase) naming.
type Engine struct {
	gw  repository.Gateway
	res *Resource
	now func() time.Time
}

func NewEngine(gw repository.Gateway, res *Resource) *Engine {
	return &Engine{gw: gw, res: res, now: func() time.Time { return time.Now().UTC() }}
}

func (e *Engine) Resource() *Resource { return e.res }

// ListOptions narrows a listing.
type ListOptions struct {
	// IncludeInactive lists soft-deleted records too.
	IncludeInactive bool
	// Match holds exact-match filters keyed by external field name. Keys
	// that name no visible field are ignored.
	Match map[string]string
}

func (e *Engine) Create(ctx context.Context, payload map[string]any) (map[string]any, error) {
	rec, err := e.normalize(payload)
	if err != nil {
		return nil, err
	}
	for i := range e.res.Fields {
		f := &e.res.Fields[i]
		if f.Required && isBlank(rec[f.Name]) {
			return nil, apperr.Validation("%s is required", f.label())
		}
	}
	for i := range e.res.Fields {
		f := &e.res.Fields[i]
		if _, ok := rec[f.Name]; ok || f.Virtual {
			continue
		}
		switch {
		case f.DefaultFunc != nil:
			rec[f.Name] = f.DefaultFunc(rec)
		case f.Default != nil:
			rec[f.Name] = cloneDefault(f.Default)
		}
	}

	if err := e.checkUnique(ctx, rec, ""); err != nil {
		return nil, err
	}
	if e.res.Prepare != nil {
		if err := e.res.Prepare(ctx, rec, true); err != nil {
			return nil, err
		}
	}
	now := e.now()
	rec[repository.FieldCreatedAt] = now
	rec[repository.FieldUpdatedAt] = now

	stored, err := e.gw.Insert(ctx, e.res.Table, rec)
	if err != nil {
		return nil, e.translate("create", err)
	}
	return e.Present(stored), nil
}

func (e *Engine) Read(ctx context.Context, id string) (map[string]any, error) {
	rec, err := e.gw.FindOne(ctx, e.res.Table, repository.ByID(id))
	if err != nil {
		return nil, e.translate("read", err)
	}
	return e.Present(rec), nil
}

func (e *Engine) List(ctx context.Context, opts ListOptions) ([]map[string]any, error) {
	var f repository.Filter
	if e.res.Delete == SoftDelete && !opts.IncludeInactive {
		f = append(f, repository.Eq(FieldActive, true))
	}
	for key, value := range opts.Match {
		name := naming.SnakeKey(key)
		field, ok := e.res.field(name)
		if !ok || field.Hidden || field.Virtual {
			// Not a field, e.g. a cache buster.
			continue
		}
		if field.Kind != repository.KindString {
			return nil, apperr.Validation("Cannot filter by %s", key)
		}
		f = append(f, repository.Eq(name, value))
	}

	recs, err := e.gw.FindMany(ctx, e.res.Table, f, e.res.Sort)
	if err != nil {
		return nil, e.translate("list", err)
	}
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, e.Present(rec))
	}
	return out, nil
}

// Update merges the provided fields into the record. Absent fields are left alone.
func (e *Engine) Update(ctx context.Context, id string, payload map[string]any) (map[string]any, error) {
	patch, err := e.normalize(payload)
	if err != nil {
		return nil, err
	}
	for name, v := range patch {
		f, _ := e.res.field(name)
		if f.Required && isBlank(v) {
			return nil, apperr.Validation("%s is required", f.label())
		}
	}
	if len(patch) == 0 {
		return nil, apperr.Validation("No valid fields to update")
	}

	if _, err := e.gw.FindOne(ctx, e.res.Table, repository.ByID(id)); err != nil {
		return nil, e.translate("update", err)
	}
	if err := e.checkUnique(ctx, patch, id); err != nil {
		return nil, err
	}
	if e.res.Prepare != nil {
		if err := e.res.Prepare(ctx, patch, false); err != nil {
			return nil, err
		}
	}
	patch[repository.FieldUpdatedAt] = e.now()

	stored, err := e.gw.Update(ctx, e.res.Table, id, patch)
	if err != nil {
		return nil, e.translate("update", err)
	}
	return e.Present(stored), nil
}

// Delete applies the resource's delete policy.
func (e *Engine) Delete(ctx context.Context, id string) error {
	if e.res.Delete == SoftDelete {
		if _, err := e.gw.FindOne(ctx, e.res.Table, repository.ByID(id)); err != nil {
			return e.translate("delete", err)
		}
		_, err := e.gw.Update(ctx, e.res.Table, id, repository.Record{
			FieldActive:               false,
			repository.FieldUpdatedAt: e.now(),
		})
		if err != nil {
			return e.translate("delete", err)
		}
		return nil
	}
	if err := e.gw.Delete(ctx, e.res.Table, id); err != nil {
		return e.translate("delete", err)
	}
	return nil
}

// Lookup returns the first stored record matching f, hidden fields included.
// It is meant for internal callers such as sign-in.
func (e *Engine) Lookup(ctx context.Context, f repository.Filter) (repository.Record, error) {
	rec, err := e.gw.FindOne(ctx, e.res.Table, f)
	if err != nil {
		return nil, e.translate("read", err)
	}
	return rec, nil
}

// Present converts a stored record for clients: hidden and null fields are
// dropped and keys become camelCase.
func (e *Engine) Present(rec repository.Record) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if v == nil {
			continue
		}
		if f, ok := e.res.field(k); ok && f.Hidden {
			continue
		}
		out[k] = v
	}
	return naming.ExternalMap(out)
}

// normalize translates keys, drops unknown and read-only fields, coerces
// values and runs validators.
func (e *Engine) normalize(payload map[string]any) (repository.Record, error) {
	rec := repository.Record{}
	for name, raw := range naming.InternalMap(payload) {
		f, ok := e.res.field(name)
		if !ok || f.ReadOnly {
			continue
		}
		v, present, err := f.coerce(raw)
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		for _, validate := range f.Validators {
			if err := validate(f.label(), v); err != nil {
				return nil, err
			}
		}
		rec[name] = v
	}
	return rec, nil
}

// checkUnique fails with Conflict when another record already holds the
// unique key value in rec. selfID excludes the record being updated.
func (e *Engine) checkUnique(ctx context.Context, rec repository.Record, selfID string) error {
	key := e.res.UniqueKey
	if key == "" {
		return nil
	}
	v, ok := rec[key]
	if !ok || v == nil {
		return nil
	}
	f := repository.Filter{repository.Eq(key, v)}
	if selfID != "" {
		f = f.And(repository.Ne(repository.FieldID, selfID))
	}
	n, err := e.gw.Count(ctx, e.res.Table, f)
	if err != nil {
		return apperr.Storage(fmt.Sprintf("Failed to check %s", e.res.UniqueLabel), err)
	}
	if n > 0 {
		return e.conflict()
	}
	return nil
}

func (e *Engine) conflict() error {
	return apperr.Conflictf("%s with this %s already exists", e.res.Label, e.res.UniqueLabel)
}

// translate maps gateway errors onto the error kinds.
func (e *Engine) translate(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFoundf("%s not found", e.res.Label)
	case errors.Is(err, repository.ErrDuplicate):
		return e.conflict()
	}
	var kinded *apperr.Error
	if errors.As(err, &kinded) {
		return err
	}
	return apperr.Storage(fmt.Sprintf("Failed to %s %s", op, strings.ToLower(e.res.Label)), err)
}
