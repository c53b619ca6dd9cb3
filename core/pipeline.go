package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// Pipeline holds the shared machinery every object endpoint runs through:
// the entity catalog, the wire codec and the persistence surfaces.
type Pipeline struct {
	registry *Registry
	codec    *Codec
	stores   Stores
	logger   Logger
	now      func() time.Time
}

func NewPipeline(registry *Registry, codec *Codec, stores Stores, logger Logger, now func() time.Time) (*Pipeline, error) {
	if registry == nil {
		return nil, fmt.Errorf("core: pipeline requires a registry")
	}
	if codec == nil {
		return nil, fmt.Errorf("core: pipeline requires a codec")
	}
	if stores == nil {
		return nil, fmt.Errorf("core: pipeline requires stores")
	}
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		registry: registry,
		codec:    codec,
		stores:   stores,
		logger:   logger,
		now:      now,
	}, nil
}

func (p *Pipeline) Registry() *Registry { return p.registry }
func (p *Pipeline) Codec() *Codec       { return p.codec }
func (p *Pipeline) Stores() Stores      { return p.stores }
func (p *Pipeline) Now() time.Time      { return p.now() }

// ObjectRequest carries the per-call inputs of an object operation.
type ObjectRequest struct {
	// Principal is the authenticated account, nil for anonymous calls.
	Principal *User
	ObjectID  string
	Body      map[string]any
	Params    ListParams
}

// Endpoint binds the generic object operations to one entity with its
// access-check switches, response echo fields and side-effect hooks.
type Endpoint struct {
	pipe  *Pipeline
	etype *EntityType

	LoginRequired bool
	GetCheck      bool
	PutCheck      bool
	DeleteCheck   bool
	ListCheck     bool

	// CreateEcho and UpdateEcho name extra fields echoed beyond the
	// identity/timestamp pair.
	CreateEcho []string
	UpdateEcho []string

	// BeforeApply runs before wire fields are applied, BeforeSave after
	// application but before persistence, AfterSave and AfterDelete after
	// the write lands.
	BeforeApply func(ctx context.Context, req *ObjectRequest, r Record) error
	BeforeSave  func(ctx context.Context, req *ObjectRequest, r Record) error
	AfterSave   func(ctx context.Context, req *ObjectRequest, r Record) error
	AfterDelete func(ctx context.Context, req *ObjectRequest, r Record) error
}

// Endpoint builds the base endpoint for an entity. Callers flip check
// switches and attach hooks on the returned value.
func (p *Pipeline) Endpoint(entity string) (*Endpoint, error) {
	et, ok := p.registry.Type(entity)
	if !ok {
		return nil, fmt.Errorf("core: entity type %q is not registered", entity)
	}
	return &Endpoint{
		pipe:        p,
		etype:       et,
		GetCheck:    true,
		PutCheck:    true,
		DeleteCheck: true,
		ListCheck:   true,
	}, nil
}

func (e *Endpoint) EntityType() *EntityType { return e.etype }

func (e *Endpoint) requireLogin(req *ObjectRequest) error {
	if e.LoginRequired && req.Principal == nil {
		return ErrLoginRequired()
	}
	return nil
}

func (e *Endpoint) load(ctx context.Context, id string) (Record, error) {
	return e.pipe.stores.Records().Get(ctx, e.etype.Name, id)
}

func (e *Endpoint) requirePermission(ctx context.Context, r Record, principal *User, perm Permission) error {
	if principal == nil {
		return ErrNoPermission()
	}
	allowed, err := e.pipe.stores.Access().Allows(ctx, r, principal.ObjectID, perm)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrNoPermission()
	}
	return nil
}

// Get loads one record and returns its full serialization.
func (e *Endpoint) Get(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if err := e.requireLogin(req); err != nil {
		return nil, err
	}
	r, err := e.load(ctx, req.ObjectID)
	if err != nil {
		return nil, err
	}
	if e.GetCheck {
		if err := e.requirePermission(ctx, r, req.Principal, PermissionRead); err != nil {
			return nil, err
		}
	}
	return e.pipe.codec.SerializeFull(r)
}

// Create mints a fresh record, applies the body and persists it together
// with the caller's owner grants.
func (e *Endpoint) Create(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if err := e.requireLogin(req); err != nil {
		return nil, err
	}
	r := e.etype.New()
	r.SetIdentity(e.etype.MintIdentity())
	created, err := e.write(ctx, req, r, true)
	if err != nil {
		return nil, err
	}
	return e.echo(created, "createdAt", e.CreateEcho)
}

// Update applies the body to a loaded record after the write-grant check.
// Field application is all-or-nothing: a rejected field leaves the stored
// record untouched.
func (e *Endpoint) Update(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if err := e.requireLogin(req); err != nil {
		return nil, err
	}
	r, err := e.load(ctx, req.ObjectID)
	if err != nil {
		return nil, err
	}
	if e.PutCheck {
		if err := e.requirePermission(ctx, r, req.Principal, PermissionWrite); err != nil {
			return nil, err
		}
	}
	updated, err := e.write(ctx, req, r, false)
	if err != nil {
		return nil, err
	}
	return e.echo(updated, "updatedAt", e.UpdateEcho)
}

// Delete removes a record after the write-grant check.
func (e *Endpoint) Delete(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if err := e.requireLogin(req); err != nil {
		return nil, err
	}
	r, err := e.load(ctx, req.ObjectID)
	if err != nil {
		return nil, err
	}
	if e.DeleteCheck {
		if err := e.requirePermission(ctx, r, req.Principal, PermissionWrite); err != nil {
			return nil, err
		}
	}
	if err := e.pipe.stores.Records().Delete(ctx, r); err != nil {
		return nil, err
	}
	if e.AfterDelete != nil {
		if err := e.AfterDelete(ctx, req, r); err != nil {
			return nil, err
		}
	}
	return map[string]any{}, nil
}

// List compiles the query parameters and returns matching records under a
// "results" key. With the list check on, an authenticated caller only sees
// records they hold a read grant on.
func (e *Endpoint) List(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if err := e.requireLogin(req); err != nil {
		return nil, err
	}
	q, err := e.pipe.codec.CompileListQuery(ctx, e.etype, req.Params)
	if err != nil {
		return nil, err
	}
	results, err := e.listRecords(ctx, req, q)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": results}, nil
}

func (e *Endpoint) listRecords(ctx context.Context, req *ObjectRequest, q ListQuery) ([]map[string]any, error) {
	if e.ListCheck && req.Principal != nil {
		q.ReadableBy = req.Principal.ObjectID
	}
	records, err := e.pipe.stores.Records().List(ctx, e.etype.Name, q)
	if err != nil {
		return nil, err
	}
	results := make([]map[string]any, 0, len(records))
	for _, r := range records {
		doc, err := e.pipe.codec.SerializeFull(r)
		if err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, nil
}

func (e *Endpoint) write(ctx context.Context, req *ObjectRequest, r Record, fresh bool) (Record, error) {
	if e.BeforeApply != nil {
		if err := e.BeforeApply(ctx, req, r); err != nil {
			return nil, err
		}
	}
	if err := e.applyFields(ctx, r, req.Body); err != nil {
		return nil, err
	}
	if e.BeforeSave != nil {
		if err := e.BeforeSave(ctx, req, r); err != nil {
			return nil, err
		}
	}
	r.Stamp(e.pipe.now())
	if fresh {
		grants := AccessList{}
		if req.Principal != nil {
			grants = grants.GrantOwner(req.Principal.ObjectID)
		}
		if err := e.pipe.stores.Records().Create(ctx, r, grants); err != nil {
			return nil, ErrSaveFailed()
		}
	} else {
		if err := e.pipe.stores.Records().Update(ctx, r); err != nil {
			return nil, ErrSaveFailed()
		}
	}
	if e.AfterSave != nil {
		if err := e.AfterSave(ctx, req, r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// applyFields walks the body in wire form. A value identical to the stored
// one is skipped even on frozen fields; anything else on an undeclared or
// frozen field rejects the whole write.
func (e *Endpoint) applyFields(ctx context.Context, r Record, body map[string]any) error {
	for key, wire := range body {
		spec, known := e.etype.Field(key)
		if !known {
			if wire == nil {
				continue
			}
			return ErrUnknownField(key)
		}
		if wireEqual(spec, spec.Get(r), wire) {
			continue
		}
		if !spec.Mutable || spec.Set == nil {
			return ErrUnknownField(key)
		}
		value, err := e.pipe.codec.UnserializeField(ctx, e.etype, key, wire)
		if err != nil {
			if errors.Is(err, errBadValue) || errors.Is(err, errRefMissing) {
				return ErrInvalidType(key)
			}
			return err
		}
		if err := spec.Set(r, value); err != nil {
			return ErrInvalidType(key)
		}
	}
	return nil
}

func (e *Endpoint) echo(r Record, stamp string, extra []string) (map[string]any, error) {
	resp := map[string]any{}
	fields := append([]string{e.etype.IdentityField, stamp}, extra...)
	for _, name := range fields {
		value, err := e.pipe.codec.SerializeField(r, name)
		if err != nil {
			return nil, err
		}
		resp[name] = value
	}
	return resp, nil
}

// wireEqual compares a stored value against an unparsed wire value using
// scalar semantics. Date and reference kinds never compare equal since
// their wire forms are envelopes.
func wireEqual(spec *FieldSpec, current, wire any) bool {
	if current == nil && wire == nil {
		return true
	}
	if current == nil || wire == nil {
		return false
	}
	switch spec.Kind {
	case KindString:
		cs, ok := current.(string)
		ws, ok2 := wire.(string)
		return ok && ok2 && cs == ws
	case KindBool:
		cb, ok := current.(bool)
		wb, ok2 := wire.(bool)
		return ok && ok2 && cb == wb
	case KindInt:
		ci, ok := current.(int64)
		if !ok {
			return false
		}
		wf, ok := wireNumber(wire)
		return ok && wf == float64(ci)
	case KindFloat:
		cf, ok := current.(float64)
		if !ok {
			return false
		}
		wf, ok := wireNumber(wire)
		return ok && wf == cf
	case KindJSON:
		return reflect.DeepEqual(current, wire)
	default:
		return false
	}
}

func wireNumber(wire any) (float64, bool) {
	switch w := wire.(type) {
	case json.Number:
		f, err := w.Float64()
		return f, err == nil
	case float64:
		return w, true
	case int64:
		return float64(w), true
	case int:
		return float64(w), true
	default:
		return 0, false
	}
}
