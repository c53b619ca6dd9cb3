package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FieldKind describes how a field is represented on the wire and in storage.
type FieldKind string

const (
	// KindInt, KindFloat, KindString and KindBool are plain scalars.
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindString FieldKind = "string"
	KindBool   FieldKind = "bool"
	// KindJSON is an opaque JSON document stored as-is.
	KindJSON FieldKind = "json"
	// KindDate is an instant carried in a Date envelope
	// ({"__type":"Date","iso":...}) with microsecond precision.
	KindDate FieldKind = "date"
	// KindTimestamp is an instant carried as a bare ISO string. The
	// server-assigned createdAt/updatedAt columns use this form.
	KindTimestamp FieldKind = "timestamp"
	// KindDay is a civil date carried as "YYYY-MM-DD".
	KindDay FieldKind = "day"
	// KindReference points at another entity's record and is carried in a
	// Pointer envelope ({"__type":"Pointer","className":...,...}).
	KindReference FieldKind = "reference"
)

// FieldSpec is the static description of one entity field: its wire kind,
// visibility, mutability and a typed accessor/mutator pair bound at startup.
type FieldSpec struct {
	Name     string
	Kind     FieldKind
	RefClass string
	Readable bool
	Mutable  bool

	// Get returns the field's current value, nil when absent. The concrete
	// type depends on Kind: int64, float64, string, bool, any (JSON),
	// time.Time for date kinds, and the referenced identity string for
	// references.
	Get func(Record) any
	// Set assigns a value previously produced by Codec.UnserializeField.
	Set func(Record, any) error
}

// EntityType is the immutable schema for one record kind. Built once by
// BuildRegistry and never mutated afterwards.
type EntityType struct {
	Name          string
	IdentityField string
	specs         []FieldSpec
	byName        map[string]*FieldSpec

	// New returns an empty record of this type.
	New func() Record
	// NewIdentity mints an identity for a fresh record. Nil means the
	// default short URL-safe token form.
	NewIdentity func() string
	// PostSerialize lets a type append derived keys to a full-record
	// envelope after the field walk. Nil for most types.
	PostSerialize func(Record, map[string]any)
}

func newEntityType(name, identityField string, newFn func() Record, specs []FieldSpec) *EntityType {
	et := &EntityType{
		Name:          name,
		IdentityField: identityField,
		specs:         specs,
		byName:        make(map[string]*FieldSpec, len(specs)),
		New:           newFn,
	}
	for i := range et.specs {
		et.byName[et.specs[i].Name] = &et.specs[i]
	}
	return et
}

// Fields returns the ordered field specs.
func (et *EntityType) Fields() []FieldSpec {
	if et == nil {
		return nil
	}
	return et.specs
}

// Field looks a spec up by name.
func (et *EntityType) Field(name string) (*FieldSpec, bool) {
	if et == nil {
		return nil, false
	}
	spec, ok := et.byName[name]
	return spec, ok
}

func (et *EntityType) IsReadable(name string) bool {
	spec, ok := et.Field(name)
	return ok && spec.Readable
}

func (et *EntityType) IsMutable(name string) bool {
	spec, ok := et.Field(name)
	return ok && spec.Mutable
}

// MintIdentity returns a fresh identity in the type's identity form.
func (et *EntityType) MintIdentity() string {
	if et != nil && et.NewIdentity != nil {
		return et.NewIdentity()
	}
	return NewObjectID()
}

func (et *EntityType) KindOf(name string) (FieldKind, bool) {
	spec, ok := et.Field(name)
	if !ok {
		return "", false
	}
	return spec.Kind, true
}

// Registry holds every entity type, keyed by class name. It is read-only
// after construction.
type Registry struct {
	types map[string]*EntityType
}

func newRegistry(types ...*EntityType) (*Registry, error) {
	r := &Registry{types: make(map[string]*EntityType, len(types))}
	for _, et := range types {
		if et == nil {
			return nil, fmt.Errorf("core: entity type is nil")
		}
		name := strings.TrimSpace(et.Name)
		if name == "" {
			return nil, fmt.Errorf("core: entity type name is required")
		}
		if _, exists := r.types[name]; exists {
			return nil, fmt.Errorf("core: entity type already registered: %s", name)
		}
		r.types[name] = et
	}
	return r, nil
}

// Type returns the entity type for a class name.
func (r *Registry) Type(name string) (*EntityType, bool) {
	if r == nil {
		return nil, false
	}
	et, ok := r.types[strings.TrimSpace(name)]
	return et, ok
}

// Names returns the registered class names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Record is the minimal surface every persisted entity exposes to the
// generic pipeline. Field access beyond identity and timestamps goes
// through FieldSpec accessors.
type Record interface {
	EntityName() string
	Identity() string
	SetIdentity(string)
	// Stamp sets updatedAt, and createdAt on first persistence.
	Stamp(now time.Time)
}
