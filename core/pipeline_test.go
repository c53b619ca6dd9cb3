package core

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"
)

// memoryStores backs the pipeline with plain maps. Get returns copies so a
// failed write cannot leak mutations into stored state, matching what a
// database round trip guarantees.
type memoryStores struct {
	records  map[string]map[string]Record
	grants   map[string]AccessList
	sessions map[string]string
}

func newMemoryStores() *memoryStores {
	return &memoryStores{
		records:  map[string]map[string]Record{},
		grants:   map[string]AccessList{},
		sessions: map[string]string{},
	}
}

func (m *memoryStores) Records() RecordStore       { return (*memoryRecordStore)(m) }
func (m *memoryStores) Access() AccessStore        { return (*memoryAccessStore)(m) }
func (m *memoryStores) Users() UserStore           { return (*memoryUserStore)(m) }
func (m *memoryStores) Sessions() SessionStore     { return (*memorySessionStore)(m) }
func (m *memoryStores) Aggregates() AggregateStore { return (*memoryAggregateStore)(m) }
func (m *memoryStores) Days() DayStore             { return (*memoryDayStore)(m) }

func grantKey(entity, id string) string {
	return entity + "/" + id
}

func cloneRecord(r Record) Record {
	switch v := r.(type) {
	case *User:
		c := *v
		return &c
	case *Sip:
		c := *v
		return &c
	case *Day:
		c := *v
		return &c
	case *Bottle:
		c := *v
		return &c
	case *UserHealthStats:
		c := *v
		return &c
	case *Glow:
		c := *v
		return &c
	case *Installation:
		c := *v
		return &c
	case *Location:
		c := *v
		return &c
	default:
		return r
	}
}

type memoryRecordStore memoryStores

func (m *memoryRecordStore) Get(_ context.Context, entity, id string) (Record, error) {
	table := m.records[entity]
	r, ok := table[id]
	if !ok {
		return nil, ErrDoesNotExist()
	}
	return cloneRecord(r), nil
}

func (m *memoryRecordStore) Exists(ctx context.Context, entity, id string) (bool, error) {
	_, err := m.Get(ctx, entity, id)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *memoryRecordStore) List(_ context.Context, entity string, q ListQuery) ([]Record, error) {
	var ids []string
	for id := range m.records[entity] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Record
	for _, id := range ids {
		r := m.records[entity][id]
		if q.ReadableBy != "" && !m.grants[grantKey(entity, id)].Allows(q.ReadableBy, PermissionRead) {
			continue
		}
		if !m.matches(r, q.Conditions) {
			continue
		}
		out = append(out, cloneRecord(r))
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (m *memoryRecordStore) matches(r Record, conditions []Condition) bool {
	for _, cond := range conditions {
		switch v := r.(type) {
		case *Sip:
			switch cond.Field {
			case "amount":
				if v.Amount != cond.Value.(int64) {
					return false
				}
			case "user":
				if v.UserID != cond.Value.(string) {
					return false
				}
			default:
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (m *memoryRecordStore) Create(_ context.Context, r Record, grants AccessList) error {
	entity := r.EntityName()
	if m.records[entity] == nil {
		m.records[entity] = map[string]Record{}
	}
	if _, exists := m.records[entity][r.Identity()]; exists {
		return fmt.Errorf("duplicate identity %s", r.Identity())
	}
	m.records[entity][r.Identity()] = cloneRecord(r)
	m.grants[grantKey(entity, r.Identity())] = grants
	return nil
}

func (m *memoryRecordStore) Update(_ context.Context, r Record) error {
	table := m.records[r.EntityName()]
	if _, ok := table[r.Identity()]; !ok {
		return ErrDoesNotExist()
	}
	table[r.Identity()] = cloneRecord(r)
	return nil
}

func (m *memoryRecordStore) SetGrants(_ context.Context, r Record, grants AccessList) error {
	m.grants[grantKey(r.EntityName(), r.Identity())] = grants
	return nil
}

func (m *memoryRecordStore) Delete(_ context.Context, r Record) error {
	table := m.records[r.EntityName()]
	if _, ok := table[r.Identity()]; !ok {
		return ErrDoesNotExist()
	}
	delete(table, r.Identity())
	delete(m.grants, grantKey(r.EntityName(), r.Identity()))
	return nil
}

type memoryAccessStore memoryStores

func (m *memoryAccessStore) Allows(_ context.Context, r Record, userID string, perm Permission) (bool, error) {
	return m.grants[grantKey(r.EntityName(), r.Identity())].Allows(userID, perm), nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *memoryStores) {
	t.Helper()
	registry, err := BuildRegistry()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	stores := newMemoryStores()
	codec := NewCodec(registry, stores.Records())
	now := func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	pipe, err := NewPipeline(registry, codec, stores, nil, now)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return pipe, stores
}

func sipEndpoint(t *testing.T, pipe *Pipeline) *Endpoint {
	t.Helper()
	endpoint, err := pipe.Endpoint(EntitySip)
	if err != nil {
		t.Fatalf("sip endpoint: %v", err)
	}
	endpoint.LoginRequired = true
	endpoint.CreateEcho = []string{"time"}
	return endpoint
}

func testPrincipal(id string) *User {
	return &User{ObjectID: id, Username: id}
}

func TestEndpointCreateAppliesBodyAndGrantsOwner(t *testing.T) {
	pipe, stores := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)
	owner := testPrincipal("owner-1")

	resp, err := endpoint.Create(context.Background(), &ObjectRequest{
		Principal: owner,
		Body: map[string]any{
			"time":   map[string]any{"__type": "Date", "iso": "2024-06-01T09:30:00.000Z"},
			"amount": float64(250),
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	id, _ := resp["objectId"].(string)
	if id == "" {
		t.Fatalf("response missing objectId: %v", resp)
	}
	if resp["createdAt"] == nil {
		t.Fatalf("response missing createdAt: %v", resp)
	}
	echoed, ok := resp["time"].(map[string]any)
	if !ok || echoed["__type"] != "Date" {
		t.Fatalf("time echo = %v", resp["time"])
	}

	stored := stores.records[EntitySip][id].(*Sip)
	if stored.Amount != 250 {
		t.Fatalf("stored amount = %d, want 250", stored.Amount)
	}
	grants := stores.grants[grantKey(EntitySip, id)]
	if !grants.Allows(owner.ObjectID, PermissionRead) || !grants.Allows(owner.ObjectID, PermissionWrite) {
		t.Fatalf("owner grants missing: %v", grants)
	}
}

func TestEndpointCreateRejectsUnknownField(t *testing.T) {
	pipe, stores := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)

	_, err := endpoint.Create(context.Background(), &ObjectRequest{
		Principal: testPrincipal("owner-1"),
		Body:      map[string]any{"bogus": float64(1)},
	})
	if err == nil {
		t.Fatal("expected unknown-field rejection")
	}
	if !IsAPIError(err) {
		t.Fatalf("expected API error, got %v", err)
	}
	if len(stores.records[EntitySip]) != 0 {
		t.Fatalf("rejected create must not persist, table has %d rows", len(stores.records[EntitySip]))
	}
}

func TestEndpointLoginRequired(t *testing.T) {
	pipe, _ := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)

	_, err := endpoint.List(context.Background(), &ObjectRequest{})
	if err == nil {
		t.Fatal("expected login-required rejection")
	}
	status, body := Envelope(err)
	if status != 400 || body["code"] != CodeLoginNeeded {
		t.Fatalf("envelope = %d %v, want 400 code %d", status, body, CodeLoginNeeded)
	}
}

func TestEndpointGetEnforcesReadGrant(t *testing.T) {
	pipe, _ := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)
	owner := testPrincipal("owner-1")

	resp, err := endpoint.Create(context.Background(), &ObjectRequest{
		Principal: owner,
		Body:      map[string]any{"amount": float64(100)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := resp["objectId"].(string)

	got, err := endpoint.Get(context.Background(), &ObjectRequest{Principal: owner, ObjectID: id})
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if got["amount"] != int64(100) {
		t.Fatalf("amount = %v (%T), want 100", got["amount"], got["amount"])
	}

	_, err = endpoint.Get(context.Background(), &ObjectRequest{Principal: testPrincipal("stranger"), ObjectID: id})
	if err == nil {
		t.Fatal("stranger get should be rejected")
	}
	_, body := Envelope(err)
	if body["code"] != CodeNoPermission {
		t.Fatalf("code = %v, want %d", body["code"], CodeNoPermission)
	}
}

func TestEndpointUpdateSkipsUnchangedFrozenField(t *testing.T) {
	pipe, _ := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)
	owner := testPrincipal("owner-1")

	resp, err := endpoint.Create(context.Background(), &ObjectRequest{
		Principal: owner,
		Body:      map[string]any{"amount": float64(100)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := resp["objectId"].(string)

	// Echoing the identity back unchanged is what clients do on every
	// save and must not count as a frozen-field write.
	_, err = endpoint.Update(context.Background(), &ObjectRequest{
		Principal: owner,
		ObjectID:  id,
		Body:      map[string]any{"objectId": id, "amount": float64(150)},
	})
	if err != nil {
		t.Fatalf("update with echoed identity: %v", err)
	}

	_, err = endpoint.Update(context.Background(), &ObjectRequest{
		Principal: owner,
		ObjectID:  id,
		Body:      map[string]any{"objectId": "different"},
	})
	if err == nil {
		t.Fatal("changing the identity should be rejected")
	}
}

func TestEndpointUpdateIsAtomic(t *testing.T) {
	pipe, stores := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)
	owner := testPrincipal("owner-1")

	resp, err := endpoint.Create(context.Background(), &ObjectRequest{
		Principal: owner,
		Body:      map[string]any{"amount": float64(100)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := resp["objectId"].(string)

	_, err = endpoint.Update(context.Background(), &ObjectRequest{
		Principal: owner,
		ObjectID:  id,
		Body: map[string]any{
			"amount": float64(999),
			"time":   "not-a-date-envelope",
		},
	})
	if err == nil {
		t.Fatal("expected invalid-type rejection")
	}

	stored := stores.records[EntitySip][id].(*Sip)
	if stored.Amount != 100 {
		t.Fatalf("stored amount = %d, rejected update must leave the record untouched", stored.Amount)
	}
}

func TestEndpointDeleteEnforcesWriteGrantAndRunsHook(t *testing.T) {
	pipe, stores := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)
	owner := testPrincipal("owner-1")

	var hookCalled bool
	endpoint.AfterDelete = func(_ context.Context, _ *ObjectRequest, r Record) error {
		hookCalled = true
		if r.EntityName() != EntitySip {
			t.Fatalf("hook record entity = %s", r.EntityName())
		}
		return nil
	}

	resp, err := endpoint.Create(context.Background(), &ObjectRequest{
		Principal: owner,
		Body:      map[string]any{"amount": float64(100)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := resp["objectId"].(string)

	_, err = endpoint.Delete(context.Background(), &ObjectRequest{Principal: testPrincipal("stranger"), ObjectID: id})
	if err == nil {
		t.Fatal("stranger delete should be rejected")
	}
	if hookCalled {
		t.Fatal("hook must not run on a rejected delete")
	}

	if _, err := endpoint.Delete(context.Background(), &ObjectRequest{Principal: owner, ObjectID: id}); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if !hookCalled {
		t.Fatal("hook did not run")
	}
	if _, ok := stores.records[EntitySip][id]; ok {
		t.Fatal("record still stored after delete")
	}
}

func TestEndpointListFiltersByReadGrant(t *testing.T) {
	pipe, _ := newTestPipeline(t)
	endpoint := sipEndpoint(t, pipe)
	owner := testPrincipal("owner-1")
	other := testPrincipal("owner-2")

	for _, p := range []*User{owner, other} {
		_, err := endpoint.Create(context.Background(), &ObjectRequest{
			Principal: p,
			Body:      map[string]any{"amount": float64(100)},
		})
		if err != nil {
			t.Fatalf("create for %s: %v", p.ObjectID, err)
		}
	}

	resp, err := endpoint.List(context.Background(), &ObjectRequest{Principal: owner})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	results := resp["results"].([]map[string]any)
	if len(results) != 1 {
		t.Fatalf("results = %d rows, want 1", len(results))
	}

	resp, err = endpoint.List(context.Background(), &ObjectRequest{
		Principal: owner,
		Params:    ListParams{Where: `{"amount": 100}`},
	})
	if err != nil {
		t.Fatalf("list with where: %v", err)
	}
	if len(resp["results"].([]map[string]any)) != 1 {
		t.Fatalf("where list = %v", resp["results"])
	}
}
