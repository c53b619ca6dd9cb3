package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

type memoryUserStore memoryStores

func (m *memoryUserStore) FindByUsername(_ context.Context, username string) (*User, error) {
	for _, r := range m.records[EntityUser] {
		u := r.(*User)
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrDoesNotExist()
}

func (m *memoryUserStore) EmailExists(_ context.Context, email string) (bool, error) {
	for _, r := range m.records[EntityUser] {
		if r.(*User).Email == email {
			return true, nil
		}
	}
	return false, nil
}

type memorySessionStore memoryStores

func (m *memorySessionStore) Create(_ context.Context, userID string) (string, error) {
	for token, id := range m.sessions {
		if id == userID {
			return token, nil
		}
	}
	token := NewSessionToken()
	m.sessions[token] = userID
	return token, nil
}

func (m *memorySessionStore) Resolve(_ context.Context, token string) (string, error) {
	userID, ok := m.sessions[token]
	if !ok {
		return "", ErrDoesNotExist()
	}
	return userID, nil
}

func (m *memorySessionStore) Destroy(_ context.Context, token string) error {
	delete(m.sessions, token)
	return nil
}

type memoryAggregateStore memoryStores

func (m *memoryAggregateStore) RefreshDayTotals(_ context.Context, dayID string, at time.Time) error {
	r, ok := m.records[EntityDay][dayID]
	if !ok {
		return ErrDoesNotExist()
	}
	var total, bottleTotal int64
	for _, sr := range m.records[EntitySip] {
		sip := sr.(*Sip)
		if sip.DayID != dayID {
			continue
		}
		total += sip.Amount
		if sip.BottleSerialNumber != "" {
			bottleTotal += sip.Amount
		}
	}
	day := r.(*Day)
	day.TotalAmount = total
	day.TotalBottleAmount = bottleTotal
	day.Stamp(at)
	return nil
}

func (m *memoryAggregateStore) RefreshUserRollups(_ context.Context, userID string, at time.Time) error {
	var volume int64
	for _, r := range m.records[EntitySip] {
		if sip := r.(*Sip); sip.UserID == userID {
			volume += sip.Amount
		}
	}
	var goalMet int64
	for _, r := range m.records[EntityDay] {
		day := r.(*Day)
		if day.UserID == userID && day.Goal != nil && float64(day.TotalAmount) >= *day.Goal {
			goalMet++
		}
	}
	for _, r := range m.records[EntityUserHealthStats] {
		stats := r.(*UserHealthStats)
		if stats.UserID != userID {
			continue
		}
		stats.Volume = float64(volume)
		stats.GoalMetCount = goalMet
		stats.Stamp(at)
	}
	return nil
}

type memoryDayStore memoryStores

func (m *memoryDayStore) EnsureDays(_ context.Context, days []*Day) error {
	if m.records[EntityDay] == nil {
		m.records[EntityDay] = map[string]Record{}
	}
	for _, day := range days {
		exists := false
		for _, r := range m.records[EntityDay] {
			existing := r.(*Day)
			if existing.UserID == day.UserID && existing.Date.Equal(day.Date) {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		c := *day
		m.records[EntityDay][day.ObjectID] = &c
	}
	return nil
}

func (m *memoryDayStore) BackfillOwnerGrants(_ context.Context, userID string) error {
	for id, r := range m.records[EntityDay] {
		day := r.(*Day)
		if day.UserID != userID {
			continue
		}
		key := grantKey(EntityDay, id)
		hasAny := false
		for _, g := range m.grants[key] {
			if g.UserID == userID {
				hasAny = true
				break
			}
		}
		if !hasAny {
			m.grants[key] = m.grants[key].GrantOwner(userID)
		}
	}
	return nil
}

func (m *memoryDayStore) UpdateGoals(_ context.Context, ownerID, principalID string, since time.Time, recommended, goal float64) error {
	for id, r := range m.records[EntityDay] {
		day := r.(*Day)
		if day.UserID != ownerID || day.Date.Before(since) {
			continue
		}
		if !m.grants[grantKey(EntityDay, id)].Allows(principalID, PermissionWrite) {
			continue
		}
		day.RecommendedGoal = recommended
		g := goal
		day.Goal = &g
	}
	return nil
}

// plainHasher swaps argon2 out of service tests to keep them fast.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "plain:" + password, nil
}

func (plainHasher) Verify(password, hash string) (bool, error) {
	if !strings.HasPrefix(hash, "plain:") {
		return false, fmt.Errorf("malformed hash")
	}
	return hash == "plain:"+password, nil
}

func newTestService(t *testing.T, now time.Time) (*Service, *memoryStores) {
	t.Helper()
	registry, err := BuildRegistry()
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	stores := newMemoryStores()
	codec := NewCodec(registry, stores.Records())
	pipe, err := NewPipeline(registry, codec, stores, nil, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	service, err := NewService(pipe, plainHasher{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service, stores
}

func serviceSignup(t *testing.T, service *Service, username string) (string, string) {
	t.Helper()
	resp, err := service.Signup(context.Background(), &ObjectRequest{
		Body: map[string]any{
			"username": username,
			"password": "secret",
			"email":    username + "@example.com",
		},
	})
	if err != nil {
		t.Fatalf("signup %s: %v", username, err)
	}
	id, _ := resp["objectId"].(string)
	token, _ := resp["sessionToken"].(string)
	if id == "" || token == "" {
		t.Fatalf("signup response incomplete: %v", resp)
	}
	return id, token
}

func TestSignupCreatesSessionStatsAndGrants(t *testing.T) {
	service, stores := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	id, token := serviceSignup(t, service, "alice")

	if stores.sessions[token] != id {
		t.Fatalf("session maps to %q, want %q", stores.sessions[token], id)
	}
	grants := stores.grants[grantKey(EntityUser, id)]
	if !grants.Allows(id, PermissionRead) || !grants.Allows(id, PermissionWrite) {
		t.Fatalf("account grants = %v", grants)
	}

	var statsRows int
	for _, r := range stores.records[EntityUserHealthStats] {
		if r.(*UserHealthStats).UserID == id {
			statsRows++
		}
	}
	if statsRows != 1 {
		t.Fatalf("stats rows = %d, want 1", statsRows)
	}

	stored := stores.records[EntityUser][id].(*User)
	if stored.PasswordHash != "plain:secret" {
		t.Fatalf("password hash = %q", stored.PasswordHash)
	}
}

func TestSignupRequiresPassword(t *testing.T) {
	service, _ := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	_, err := service.Signup(context.Background(), &ObjectRequest{
		Body: map[string]any{"username": "alice"},
	})
	if err == nil {
		t.Fatal("expected rejection")
	}
	_, body := Envelope(err)
	if body["error"] != "no password" {
		t.Fatalf("error = %v", body["error"])
	}
}

func TestLoginAndLogout(t *testing.T) {
	service, stores := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	id, _ := serviceSignup(t, service, "alice")

	resp, err := service.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp["objectId"] != id {
		t.Fatalf("login objectId = %v", resp["objectId"])
	}
	if _, present := resp["password"]; present {
		t.Fatal("login response must not include credentials")
	}
	token := resp["sessionToken"].(string)

	principal, err := service.ResolvePrincipal(context.Background(), token)
	if err != nil || principal == nil || principal.ObjectID != id {
		t.Fatalf("resolve principal = %v, %v", principal, err)
	}

	if _, err := service.Logout(context.Background(), principal, token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := stores.sessions[token]; ok {
		t.Fatal("session survived logout")
	}

	principal, err = service.ResolvePrincipal(context.Background(), token)
	if err != nil || principal != nil {
		t.Fatalf("stale token should resolve to anonymous, got %v, %v", principal, err)
	}
}

func TestLoginFailures(t *testing.T) {
	service, _ := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	serviceSignup(t, service, "alice")

	for _, tc := range []struct{ username, password string }{
		{"alice", "wrong"},
		{"nobody", "secret"},
		{"", "secret"},
		{"alice", ""},
	} {
		_, err := service.Login(context.Background(), tc.username, tc.password)
		if err == nil {
			t.Fatalf("login %q/%q should fail", tc.username, tc.password)
		}
		status, body := Envelope(err)
		if status != 404 || body["code"] != CodeLoginFailed {
			t.Fatalf("login %q envelope = %d %v", tc.username, status, body)
		}
	}
}

func TestDayListEnsuresTrackingWeek(t *testing.T) {
	// A Wednesday: the window runs Monday through Sunday.
	service, stores := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	id, _ := serviceSignup(t, service, "alice")
	principal := stores.records[EntityUser][id].(*User)

	resp, err := service.DayList(context.Background(), &ObjectRequest{Principal: principal})
	if err != nil {
		t.Fatalf("day list: %v", err)
	}
	results := resp["results"].([]map[string]any)
	if len(results) != 7 {
		t.Fatalf("results = %d days, want 7", len(results))
	}

	dates := map[string]bool{}
	for _, day := range results {
		date, _ := day["date"].(string)
		dates[date] = true
		if day["recommendedGoal"] != DefaultRecommendedGoal {
			t.Fatalf("recommendedGoal = %v", day["recommendedGoal"])
		}
	}
	for _, want := range []string{"2024-06-03", "2024-06-09"} {
		if !dates[want] {
			t.Fatalf("window should include %s, got %v", want, dates)
		}
	}

	// A second call inserts nothing new.
	resp, err = service.DayList(context.Background(), &ObjectRequest{Principal: principal})
	if err != nil {
		t.Fatalf("second day list: %v", err)
	}
	if len(resp["results"].([]map[string]any)) != 7 {
		t.Fatalf("second call = %d days", len(resp["results"].([]map[string]any)))
	}
}

func TestGlowSaveListDelete(t *testing.T) {
	service, stores := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	id, _ := serviceSignup(t, service, "alice")
	ctx := context.Background()
	principal := stores.records[EntityUser][id].(*User)

	_, err := service.SaveGlow(ctx, &ObjectRequest{Principal: principal, Body: map[string]any{}})
	if err == nil {
		t.Fatal("save without glow body should fail")
	}
	_, body := Envelope(err)
	if body["error"] != "missing glow" {
		t.Fatalf("error = %v", body["error"])
	}

	resp, err := service.SaveGlow(ctx, &ObjectRequest{
		Principal: principal,
		Body: map[string]any{
			"glow": map[string]any{"name": "morning", "content": map[string]any{"color": "blue"}},
		},
	})
	if err != nil {
		t.Fatalf("save glow: %v", err)
	}
	result := resp["result"].(map[string]any)
	glowID, _ := result["glowId"].(string)
	if glowID == "" || result["message"] != "Glow saved successfully" {
		t.Fatalf("save result = %v", result)
	}

	resp, err = service.SaveGlow(ctx, &ObjectRequest{
		Principal: principal,
		Body: map[string]any{
			"glow": map[string]any{"id": glowID, "name": "evening"},
		},
	})
	if err != nil {
		t.Fatalf("update glow: %v", err)
	}
	if resp["result"].(map[string]any)["glowId"] != glowID {
		t.Fatalf("update minted a new glow: %v", resp)
	}
	if stores.records[EntityGlow][glowID].(*Glow).Name != "evening" {
		t.Fatal("glow name not rewritten")
	}

	resp, err = service.MyGlows(ctx, &ObjectRequest{Principal: principal})
	if err != nil {
		t.Fatalf("my glows: %v", err)
	}
	glows := resp["result"].([]map[string]any)
	if len(glows) != 1 || glows[0]["name"] != "evening" {
		t.Fatalf("my glows = %v", glows)
	}

	if _, err := service.DeleteGlow(ctx, principal, ""); err == nil {
		t.Fatal("delete without id should fail")
	}
	resp, err = service.DeleteGlow(ctx, principal, glowID)
	if err != nil {
		t.Fatalf("delete glow: %v", err)
	}
	if resp["result"] != "Glow deleted successfully" {
		t.Fatalf("delete result = %v", resp)
	}
	if len(stores.records[EntityGlow]) != 0 {
		t.Fatal("glow survived delete")
	}
}

func TestUserExists(t *testing.T) {
	service, _ := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	serviceSignup(t, service, "alice")
	ctx := context.Background()

	resp, err := service.UserExists(ctx, "", false)
	if err != nil {
		t.Fatalf("absent email: %v", err)
	}
	if len(resp) != 0 {
		t.Fatalf("absent email response = %v, want empty", resp)
	}

	resp, err = service.UserExists(ctx, "alice@example.com", true)
	if err != nil {
		t.Fatalf("known email: %v", err)
	}
	result := resp["result"].(map[string]any)
	if result["exists"] != true || result["emailverified"] != false {
		t.Fatalf("known email result = %v", result)
	}

	resp, err = service.UserExists(ctx, "nobody@example.com", true)
	if err != nil {
		t.Fatalf("unknown email: %v", err)
	}
	if resp["result"].(map[string]any)["exists"] != false {
		t.Fatalf("unknown email result = %v", resp)
	}
}

func TestCalculateDayTotal(t *testing.T) {
	service, stores := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	id, _ := serviceSignup(t, service, "alice")
	principal := stores.records[EntityUser][id].(*User)
	ctx := context.Background()

	if _, err := service.CalculateDayTotal(ctx, principal, ""); err == nil {
		t.Fatal("missing dayId should fail")
	}

	day := &Day{UserID: id, Date: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), TotalAmount: 900}
	day.SetIdentity(NewObjectID())
	day.Stamp(service.pipe.Now())
	if err := stores.Records().Create(ctx, day, AccessList{}.GrantOwner(id)); err != nil {
		t.Fatalf("seed day: %v", err)
	}

	resp, err := service.CalculateDayTotal(ctx, principal, day.ObjectID)
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if resp["dayTotal"] != int64(900) || resp["dayId"] != day.ObjectID {
		t.Fatalf("response = %v", resp)
	}

	stranger := &User{ObjectID: "stranger"}
	if _, err := service.CalculateDayTotal(ctx, stranger, day.ObjectID); err == nil {
		t.Fatal("stranger should not read the day")
	}
}

func TestCanAddBottle(t *testing.T) {
	service, _ := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	resp := service.CanAddBottle()
	result := resp["result"].(map[string]any)
	if result["canAdd"] != true {
		t.Fatalf("result = %v", result)
	}
}

func TestSipSaveRefreshesRollups(t *testing.T) {
	service, stores := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	id, _ := serviceSignup(t, service, "alice")
	principal := stores.records[EntityUser][id].(*User)
	ctx := context.Background()

	goal := 500.0
	day := &Day{UserID: id, Date: time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), Goal: &goal}
	day.SetIdentity(NewObjectID())
	day.Stamp(service.pipe.Now())
	if err := stores.Records().Create(ctx, day, AccessList{}.GrantOwner(id)); err != nil {
		t.Fatalf("seed day: %v", err)
	}

	userPointer := map[string]any{"__type": "Pointer", "className": EntityUser, "objectId": id}
	dayPointer := map[string]any{"__type": "Pointer", "className": EntityDay, "objectId": day.ObjectID}

	for _, amount := range []float64{350, 200} {
		_, err := service.Sips().Create(ctx, &ObjectRequest{
			Principal: principal,
			Body: map[string]any{
				"amount":             amount,
				"user":               userPointer,
				"day":                dayPointer,
				"bottleSerialNumber": "SN-1",
			},
		})
		if err != nil {
			t.Fatalf("create sip: %v", err)
		}
	}

	refreshed := stores.records[EntityDay][day.ObjectID].(*Day)
	if refreshed.TotalAmount != 550 || refreshed.TotalBottleAmount != 550 {
		t.Fatalf("day totals = %d/%d, want 550/550", refreshed.TotalAmount, refreshed.TotalBottleAmount)
	}

	var stats *UserHealthStats
	for _, r := range stores.records[EntityUserHealthStats] {
		if s := r.(*UserHealthStats); s.UserID == id {
			stats = s
		}
	}
	if stats == nil {
		t.Fatal("stats row missing")
	}
	if stats.Volume != 550 {
		t.Fatalf("stats volume = %v, want 550", stats.Volume)
	}
	if stats.GoalMetCount != 1 {
		t.Fatalf("goal met count = %d, want 1", stats.GoalMetCount)
	}
}

func TestSipCreateDefaultsTime(t *testing.T) {
	now := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	service, stores := newTestService(t, now)

	id, _ := serviceSignup(t, service, "alice")
	principal := stores.records[EntityUser][id].(*User)

	resp, err := service.Sips().Create(context.Background(), &ObjectRequest{
		Principal: principal,
		Body:      map[string]any{"amount": float64(250)},
	})
	if err != nil {
		t.Fatalf("create sip: %v", err)
	}
	envelope, ok := resp["time"].(map[string]any)
	if !ok {
		t.Fatalf("time = %v, want a Date envelope of the save instant", resp["time"])
	}
	if envelope["__type"] != "Date" || envelope["iso"] != FormatInstant(now) {
		t.Fatalf("time envelope = %v", envelope)
	}

	sipID, _ := resp["objectId"].(string)
	stored := stores.records[EntitySip][sipID].(*Sip)
	if !stored.Time.Equal(now) {
		t.Fatalf("stored time = %v, want %v", stored.Time, now)
	}
}

func TestLoginReusesLiveSession(t *testing.T) {
	service, _ := newTestService(t, time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC))

	_, signupToken := serviceSignup(t, service, "alice")

	resp, err := service.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp["sessionToken"] != signupToken {
		t.Fatalf("login token = %v, want the live session %q", resp["sessionToken"], signupToken)
	}

	principal, err := service.ResolvePrincipal(context.Background(), signupToken)
	if err != nil || principal == nil {
		t.Fatalf("resolve principal = %v, %v", principal, err)
	}
	if _, err := service.Logout(context.Background(), principal, signupToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	resp, err = service.Login(context.Background(), "alice", "secret")
	if err != nil {
		t.Fatalf("login after logout: %v", err)
	}
	token, _ := resp["sessionToken"].(string)
	if token == "" || token == signupToken {
		t.Fatalf("login after logout should mint a fresh token, got %q", token)
	}
}
