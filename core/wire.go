package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// storageISOLayout is the storage-internal instant form: microsecond
// precision with an explicit "+00:00" offset for UTC.
const storageISOLayout = "2006-01-02T15:04:05.000000-07:00"

// dayLayout is the civil-date wire form.
const dayLayout = "2006-01-02"

// SanitizeISODate rewrites the wire "Z" zone marker into the storage
// "+00:00" form. Applying it twice returns the same string.
func SanitizeISODate(iso string) string {
	if strings.HasSuffix(iso, "Z") {
		return iso[:len(iso)-1] + "+00:00"
	}
	return iso
}

// UnsanitizeISODate is the exact inverse of SanitizeISODate: the wire form
// always carries a trailing "Z" for UTC.
func UnsanitizeISODate(iso string) string {
	if strings.HasSuffix(iso, "+00:00") {
		return iso[:len(iso)-6] + "Z"
	}
	return iso
}

// FormatInstant renders an instant in the canonical wire form.
func FormatInstant(t time.Time) string {
	return UnsanitizeISODate(t.UTC().Format(storageISOLayout))
}

// ParseInstant accepts both the wire and the storage forms and truncates to
// microsecond precision.
func ParseInstant(iso string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, SanitizeISODate(iso))
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC().Truncate(time.Microsecond), nil
}

// Resolver checks that a referenced identity exists before a Pointer
// envelope is accepted.
type Resolver interface {
	Exists(ctx context.Context, entity, id string) (bool, error)
}

var (
	// errUnknownField marks a wire key that is not part of the schema.
	errUnknownField = errors.New("core: field is not declared")
	// errBadValue marks a wire value that fails unserialization.
	errBadValue = errors.New("core: value failed unserialization")
	// errRefMissing marks a Pointer whose referent does not exist.
	errRefMissing = errors.New("core: referenced record does not exist")
)

// Codec converts records to and from their wire envelopes using the entity
// registry. It holds no per-request state and is safe for concurrent use.
type Codec struct {
	registry *Registry
	resolver Resolver
}

func NewCodec(registry *Registry, resolver Resolver) *Codec {
	return &Codec{registry: registry, resolver: resolver}
}

// SerializeFull emits every readable field with a present value. Fields
// whose value is absent are omitted entirely, never emitted as null.
func (c *Codec) SerializeFull(r Record) (map[string]any, error) {
	et, ok := c.registry.Type(r.EntityName())
	if !ok {
		return nil, fmt.Errorf("core: entity type %q is not registered", r.EntityName())
	}
	out := map[string]any{}
	for i := range et.Fields() {
		spec := &et.Fields()[i]
		if !spec.Readable {
			continue
		}
		value, present, err := c.wireValue(spec, spec.Get(r))
		if err != nil {
			return nil, err
		}
		if !present {
			continue
		}
		out[spec.Name] = value
	}
	if et.PostSerialize != nil {
		et.PostSerialize(r, out)
	}
	return out, nil
}

// SerializeReference emits the minimal Pointer envelope for a record.
func (c *Codec) SerializeReference(r Record) (map[string]any, error) {
	et, ok := c.registry.Type(r.EntityName())
	if !ok {
		return nil, fmt.Errorf("core: entity type %q is not registered", r.EntityName())
	}
	return map[string]any{
		"__type":         "Pointer",
		"className":      et.Name,
		et.IdentityField: r.Identity(),
	}, nil
}

// SerializeField emits one named field regardless of readability. Used for
// the verb-specific echo fields in create/update responses.
func (c *Codec) SerializeField(r Record, name string) (any, error) {
	et, ok := c.registry.Type(r.EntityName())
	if !ok {
		return nil, fmt.Errorf("core: entity type %q is not registered", r.EntityName())
	}
	spec, ok := et.Field(name)
	if !ok {
		return nil, fmt.Errorf("core: %s has no field %q", et.Name, name)
	}
	value, present, err := c.wireValue(spec, spec.Get(r))
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	return value, nil
}

func (c *Codec) wireValue(spec *FieldSpec, raw any) (any, bool, error) {
	if raw == nil {
		return nil, false, nil
	}
	switch spec.Kind {
	case KindTimestamp:
		t := raw.(time.Time)
		if t.IsZero() {
			return nil, false, nil
		}
		return FormatInstant(t), true, nil
	case KindDate:
		t := raw.(time.Time)
		if t.IsZero() {
			return nil, false, nil
		}
		return map[string]any{"__type": "Date", "iso": FormatInstant(t)}, true, nil
	case KindDay:
		t := raw.(time.Time)
		if t.IsZero() {
			return nil, false, nil
		}
		return t.Format(dayLayout), true, nil
	case KindReference:
		id, ok := raw.(string)
		if !ok || id == "" {
			return nil, false, nil
		}
		ref, found := c.registry.Type(spec.RefClass)
		if !found {
			return nil, false, fmt.Errorf("core: referenced entity %q is not registered", spec.RefClass)
		}
		return map[string]any{
			"__type":          "Pointer",
			"className":       ref.Name,
			ref.IdentityField: id,
		}, true, nil
	default:
		return raw, true, nil
	}
}

// UnserializeField converts a client-supplied wire value into the typed
// value a FieldSpec mutator accepts. It reports errUnknownField for
// undeclared keys, errBadValue for malformed values and errRefMissing when
// a Pointer does not resolve.
func (c *Codec) UnserializeField(ctx context.Context, et *EntityType, name string, wire any) (any, error) {
	spec, ok := et.Field(name)
	if !ok {
		return nil, errUnknownField
	}
	if wire == nil {
		return nil, nil
	}
	switch spec.Kind {
	case KindInt:
		n, err := unserializeInt(wire)
		if err != nil {
			return nil, err
		}
		return n, nil
	case KindFloat:
		f, err := unserializeFloat(wire)
		if err != nil {
			return nil, err
		}
		return f, nil
	case KindString:
		s, ok := wire.(string)
		if !ok {
			return nil, errBadValue
		}
		return s, nil
	case KindBool:
		b, ok := wire.(bool)
		if !ok {
			return nil, errBadValue
		}
		return b, nil
	case KindJSON:
		return wire, nil
	case KindTimestamp:
		s, ok := wire.(string)
		if !ok {
			return nil, errBadValue
		}
		t, err := ParseInstant(s)
		if err != nil {
			return nil, errBadValue
		}
		return t, nil
	case KindDate:
		t, err := unserializeDate(wire)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindDay:
		s, ok := wire.(string)
		if !ok {
			return nil, errBadValue
		}
		t, err := time.Parse(dayLayout, s)
		if err != nil {
			return nil, errBadValue
		}
		return t.UTC(), nil
	case KindReference:
		id, err := c.unserializeReference(ctx, spec, wire)
		if err != nil {
			return nil, err
		}
		return id, nil
	default:
		return nil, errBadValue
	}
}

func unserializeInt(wire any) (int64, error) {
	switch v := wire.(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, errBadValue
		}
		return n, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		n := int64(v)
		if float64(n) != v {
			return 0, errBadValue
		}
		return n, nil
	default:
		return 0, errBadValue
	}
}

func unserializeFloat(wire any) (float64, error) {
	switch v := wire.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, errBadValue
		}
		return f, nil
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, errBadValue
	}
}

func unserializeDate(wire any) (time.Time, error) {
	envelope, ok := wire.(map[string]any)
	if !ok {
		return time.Time{}, errBadValue
	}
	if kind, present := envelope["__type"]; present && kind != "Date" {
		return time.Time{}, errBadValue
	}
	iso, ok := envelope["iso"].(string)
	if !ok {
		return time.Time{}, errBadValue
	}
	t, err := ParseInstant(iso)
	if err != nil {
		return time.Time{}, errBadValue
	}
	return t, nil
}

func (c *Codec) unserializeReference(ctx context.Context, spec *FieldSpec, wire any) (string, error) {
	envelope, ok := wire.(map[string]any)
	if !ok {
		return "", errBadValue
	}
	ref, found := c.registry.Type(spec.RefClass)
	if !found {
		return "", fmt.Errorf("core: referenced entity %q is not registered", spec.RefClass)
	}
	if envelope["__type"] != "Pointer" {
		return "", errBadValue
	}
	if envelope["className"] != ref.Name {
		return "", errBadValue
	}
	// Exactly the identity key may remain besides the envelope markers.
	if len(envelope) != 3 {
		return "", errBadValue
	}
	id, ok := envelope[ref.IdentityField].(string)
	if !ok || id == "" {
		return "", errBadValue
	}
	if c.resolver != nil {
		exists, err := c.resolver.Exists(ctx, ref.Name, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", errRefMissing
		}
	}
	return id, nil
}
