package model

// Entity is a named polymorphic record holding a mapping from property keys
// to tagged Values (spec.md §3). The VALUE property, when present, holds the
// entity's primary payload for leaf observations.
type Entity struct {
	Name       string
	properties map[string]Value
	order      []string // presentation ordering only; never consulted by equality or pipeline logic
}

const ValueProperty = "VALUE"

func NewEntity(name string) *Entity {
	return &Entity{Name: name, properties: make(map[string]Value)}
}

// Set assigns a property, recording first-insertion order.
func (e *Entity) Set(key string, v Value) {
	if _, exists := e.properties[key]; !exists {
		e.order = append(e.order, key)
	}
	e.properties[key] = v
}

func (e *Entity) Get(key string) (Value, bool) {
	v, ok := e.properties[key]
	return v, ok
}

// Value returns the VALUE property, or an empty Value if absent.
func (e *Entity) Value() Value {
	v, ok := e.properties[ValueProperty]
	if !ok {
		return Empty()
	}
	return v
}

func (e *Entity) SetValue(v Value) { e.Set(ValueProperty, v) }

// Keys returns property keys in insertion order, for presentation layers
// (the REST/WS sinks). Pipeline logic must never depend on this ordering.
func (e *Entity) Keys() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

func (e *Entity) Has(key string) bool {
	_, ok := e.properties[key]
	return ok
}

// Clone returns a shallow copy: the property map and order slice are new,
// but Value payloads (including nested *Entity pointers) are shared. Callers
// mutating nested entities after Clone must Set a fresh Value instead.
func (e *Entity) Clone() *Entity {
	c := &Entity{
		Name:       e.Name,
		properties: make(map[string]Value, len(e.properties)),
		order:      make([]string, len(e.order)),
	}
	for k, v := range e.properties {
		c.properties[k] = v
	}
	copy(c.order, e.order)
	return c
}

// Equal performs structural equality over name and every property.
func (e *Entity) Equal(o *Entity) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Name != o.Name || len(e.properties) != len(o.properties) {
		return false
	}
	for k, v := range e.properties {
		ov, ok := o.properties[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
