package model

import (
	"fmt"
	"strconv"

	"github.com/snarg/mtc-agent/internal/agenterrors"
)

// Factory validates entities of one name against an ordered list of
// Requirements: performing type coercions, then checking multiplicities and
// constraints, and rejecting unknown properties (entity lists are excepted,
// since their contained entities carry their own requirements) — spec.md §3.
type Factory struct {
	EntityName   string
	Requirements []Requirement
}

func NewFactory(name string, reqs ...Requirement) *Factory {
	return &Factory{EntityName: name, Requirements: reqs}
}

func (f *Factory) requirement(name string) (Requirement, bool) {
	for _, r := range f.Requirements {
		if r.Name == name {
			return r, true
		}
	}
	return Requirement{}, false
}

// Validate coerces and checks every property against this factory's
// requirements, accumulating violations into an ErrorList rather than
// failing on the first (spec.md §7 PropertyError policy). It returns the
// coerced entity (always non-nil) and the list of violations found, if any.
func (f *Factory) Validate(e *Entity) (*Entity, *agenterrors.ErrorList) {
	errs := &agenterrors.ErrorList{}
	out := NewEntity(e.Name)

	seen := make(map[string]int)
	for _, key := range e.Keys() {
		v, _ := e.Get(key)
		req, known := f.requirement(key)
		if !known {
			if v.Kind == KindEntityList {
				// lists are excepted from the unknown-property check
				out.Set(key, v)
				continue
			}
			errs.Add(key, "unknown property")
			continue
		}
		seen[key]++

		coerced, err := coerce(v, req)
		if err != nil {
			errs.Add(key, err.Error())
			continue
		}

		if req.Type == KindString && coerced.Kind == KindString {
			if req.Pattern != nil && !req.Pattern.MatchString(coerced.Str) {
				errs.Add(key, fmt.Sprintf("value %q does not match pattern", coerced.Str))
				continue
			}
			if !req.satisfiesVocabulary(coerced.Str) {
				errs.Add(key, fmt.Sprintf("value %q not in controlled vocabulary", coerced.Str))
				continue
			}
		}
		if req.VectorLen > 0 && coerced.Kind == KindVector && len(coerced.Vector) != req.VectorLen {
			errs.Add(key, fmt.Sprintf("expected vector length %d, got %d", req.VectorLen, len(coerced.Vector)))
			continue
		}
		if req.Nested != nil && coerced.Kind == KindEntity {
			nested, nerrs := req.Nested.Validate(coerced.Entity)
			if nerrs.HasErrors() {
				for _, ne := range nerrs.Errors {
					errs.Add(key+"."+ne.Property, ne.Reason)
				}
			}
			coerced.Entity = nested
		}

		out.Set(key, coerced)
	}

	for _, req := range f.Requirements {
		n := seen[req.Name]
		if !req.multiplicityAllows(n) {
			if req.Required && n == 0 {
				errs.Add(req.Name, "required property missing")
			} else {
				errs.Add(req.Name, fmt.Sprintf("multiplicity %d violates [%d,%d]", n, req.MinMulti, req.MaxMulti))
			}
		}
	}

	return out, errs
}

// coerce performs the type coercion step: a Value arriving as a string (the
// common case for wire-parsed input) is converted to the requirement's
// declared type when possible.
func coerce(v Value, req Requirement) (Value, error) {
	if v.Kind == req.Type {
		return v, nil
	}
	if v.Kind != KindString {
		return v, fmt.Errorf("expected kind %d, got %d", req.Type, v.Kind)
	}
	switch req.Type {
	case KindInt64:
		i, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return v, fmt.Errorf("not an integer: %q", v.Str)
		}
		return Int64Value(i), nil
	case KindDouble:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return v, fmt.Errorf("not a number: %q", v.Str)
		}
		return DoubleValue(f), nil
	case KindBool:
		b, err := strconv.ParseBool(v.Str)
		if err != nil {
			return v, fmt.Errorf("not a boolean: %q", v.Str)
		}
		return BoolValue(b), nil
	case KindString:
		return v, nil
	default:
		return v, fmt.Errorf("cannot coerce string to kind %d", req.Type)
	}
}

// Registry maps entity names to their Factory, mirroring the original
// agent's per-entity-name factory lookup (spec.md §3).
type Registry struct {
	factories map[string]*Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]*Factory)}
}

func (r *Registry) Register(f *Factory) {
	r.factories[f.EntityName] = f
}

func (r *Registry) Lookup(name string) (*Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// ValidateNamed looks up the factory for e.Name and validates against it,
// returning an EntityError if no factory is registered for that name.
func (r *Registry) ValidateNamed(e *Entity) (*Entity, error) {
	f, ok := r.Lookup(e.Name)
	if !ok {
		return nil, agenterrors.NewEntityError(e.Name, "no factory registered for entity name")
	}
	out, errs := f.Validate(e)
	if errs.HasErrors() {
		return out, &agenterrors.PropertyError{Property: e.Name, Reason: errs.Error()}
	}
	return out, nil
}
