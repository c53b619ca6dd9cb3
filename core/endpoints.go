package core

import (
	"context"
	"fmt"
	"time"
)

// Service assembles the full API surface on top of the pipeline: one
// configured endpoint per entity plus the account, session and function
// operations that fall outside the generic object verbs.
type Service struct {
	pipe      *Pipeline
	hasher    PasswordHasher
	logger    Logger
	refresher *StatsRefresher

	signup        *Endpoint
	users         *Endpoint
	installations *Endpoint
	bottles       *Endpoint
	sips          *Endpoint
	days          *Endpoint
	locations     *Endpoint
	glows         *Endpoint
	healthStats   *Endpoint
}

func NewService(pipe *Pipeline, hasher PasswordHasher, logger Logger) (*Service, error) {
	if pipe == nil {
		return nil, fmt.Errorf("core: service requires a pipeline")
	}
	if hasher == nil {
		return nil, fmt.Errorf("core: service requires a password hasher")
	}
	s := &Service{
		pipe:      pipe,
		hasher:    hasher,
		logger:    logger,
		refresher: NewStatsRefresher(pipe.Stores().Aggregates(), pipe.now),
	}
	if err := s.buildEndpoints(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) buildEndpoints() error {
	var err error

	if s.signup, err = s.pipe.Endpoint(EntityUser); err != nil {
		return err
	}
	s.signup.BeforeApply = s.hashSignupPassword
	// The fresh account is its own owner: grants and the session belong
	// to it, not to the anonymous caller.
	s.signup.BeforeSave = func(_ context.Context, req *ObjectRequest, r Record) error {
		req.Principal = r.(*User)
		return nil
	}
	s.signup.AfterSave = s.createHealthStats

	if s.users, err = s.pipe.Endpoint(EntityUser); err != nil {
		return err
	}
	s.users.LoginRequired = true
	s.users.AfterSave = s.rewriteRecentDayGoals

	if s.installations, err = s.pipe.Endpoint(EntityInstallation); err != nil {
		return err
	}
	// Installation detail skips the write-permission check only; reads
	// still require a read grant even though the endpoint allows
	// anonymous callers.
	s.installations.PutCheck = false

	if s.bottles, err = s.pipe.Endpoint(EntityBottle); err != nil {
		return err
	}
	s.bottles.LoginRequired = true
	s.bottles.CreateEcho = []string{"lastSynced", "shouldUpdate"}
	s.bottles.UpdateEcho = []string{"lastSynced"}
	// lastSynced tracks the save instant regardless of what the body says.
	s.bottles.BeforeSave = func(_ context.Context, _ *ObjectRequest, r Record) error {
		r.(*Bottle).LastSynced = s.pipe.Now()
		return nil
	}

	if s.sips, err = s.pipe.Endpoint(EntitySip); err != nil {
		return err
	}
	s.sips.LoginRequired = true
	s.sips.CreateEcho = []string{"time"}
	s.sips.UpdateEcho = []string{"time"}
	// A sip posted without a time defaults to the save instant.
	s.sips.BeforeSave = func(_ context.Context, _ *ObjectRequest, r Record) error {
		if sip := r.(*Sip); sip.Time.IsZero() {
			sip.Time = s.pipe.Now()
		}
		return nil
	}
	s.sips.AfterSave = s.refreshSipStats
	s.sips.AfterDelete = s.refreshSipStats

	if s.days, err = s.pipe.Endpoint(EntityDay); err != nil {
		return err
	}
	s.days.LoginRequired = true
	s.days.UpdateEcho = []string{"recommendedGoal", "goal", "totalBottleAmount"}

	if s.locations, err = s.pipe.Endpoint(EntityLocation); err != nil {
		return err
	}
	s.locations.LoginRequired = true

	if s.glows, err = s.pipe.Endpoint(EntityGlow); err != nil {
		return err
	}
	s.glows.LoginRequired = true

	if s.healthStats, err = s.pipe.Endpoint(EntityUserHealthStats); err != nil {
		return err
	}
	s.healthStats.LoginRequired = true
	s.healthStats.BeforeApply = func(_ context.Context, _ *ObjectRequest, r Record) error {
		r.(*UserHealthStats).StatDate = s.pipe.Now()
		return nil
	}

	return nil
}

// Endpoint accessors used by the transport layer for the plain object verbs.

func (s *Service) Users() *Endpoint         { return s.users }
func (s *Service) Installations() *Endpoint { return s.installations }
func (s *Service) Bottles() *Endpoint       { return s.bottles }
func (s *Service) Sips() *Endpoint          { return s.sips }
func (s *Service) Days() *Endpoint          { return s.days }
func (s *Service) Locations() *Endpoint     { return s.locations }
func (s *Service) HealthStats() *Endpoint   { return s.healthStats }

func (s *Service) hashSignupPassword(_ context.Context, req *ObjectRequest, r Record) error {
	raw, ok := req.Body["password"]
	if !ok {
		return ErrMissingField("no password")
	}
	delete(req.Body, "password")
	password, _ := raw.(string)
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return ErrSaveFailed()
	}
	r.(*User).PasswordHash = hash
	return nil
}

func (s *Service) createHealthStats(ctx context.Context, _ *ObjectRequest, r Record) error {
	user := r.(*User)
	stats := &UserHealthStats{UserID: user.ObjectID}
	stats.SetIdentity(NewObjectID())
	stats.Stamp(s.pipe.Now())
	if err := s.pipe.Stores().Records().Create(ctx, stats, AccessList{}.GrantOwner(user.ObjectID)); err != nil {
		return ErrSaveFailed()
	}
	return nil
}

func (s *Service) rewriteRecentDayGoals(ctx context.Context, req *ObjectRequest, r Record) error {
	user := r.(*User)
	since := s.pipe.Now().Add(-12 * time.Hour)
	return s.pipe.Stores().Days().UpdateGoals(
		ctx,
		user.ObjectID,
		req.Principal.ObjectID,
		since,
		RecommendedGoalFor(user),
		GoalForUser(user),
	)
}

func (s *Service) refreshSipStats(ctx context.Context, _ *ObjectRequest, r Record) error {
	return s.refresher.AfterSipChange(ctx, r.(*Sip))
}

// Signup creates an account, its owner grants, its health-stats row and a
// session. The password travels in the body but never through the schema.
func (s *Service) Signup(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	resp, err := s.signup.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	token, err := s.pipe.Stores().Sessions().Create(ctx, req.Principal.ObjectID)
	if err != nil {
		return nil, ErrSaveFailed()
	}
	resp["sessionToken"] = token
	return resp, nil
}

// Login validates credentials and returns the full account record with a
// fresh session token. Every failure mode collapses into the same error so
// usernames cannot be probed.
func (s *Service) Login(ctx context.Context, username, password string) (map[string]any, error) {
	user, err := s.authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	allowed, err := s.pipe.Stores().Access().Allows(ctx, user, user.ObjectID, PermissionRead)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNoPermission()
	}
	resp, err := s.pipe.Codec().SerializeFull(user)
	if err != nil {
		return nil, err
	}
	token, err := s.pipe.Stores().Sessions().Create(ctx, user.ObjectID)
	if err != nil {
		return nil, ErrSaveFailed()
	}
	resp["sessionToken"] = token
	return resp, nil
}

func (s *Service) authenticate(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrLoginFailed()
	}
	user, err := s.pipe.Stores().Users().FindByUsername(ctx, username)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrLoginFailed()
		}
		return nil, err
	}
	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil || !ok {
		if s.logger != nil {
			s.logger.Info("login rejected", "username", username)
		}
		return nil, ErrLoginFailed()
	}
	return user, nil
}

// Logout expires the caller's session.
func (s *Service) Logout(ctx context.Context, principal *User, token string) (map[string]any, error) {
	if principal == nil {
		return nil, ErrLoginRequired()
	}
	if err := s.pipe.Stores().Sessions().Destroy(ctx, token); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

// UserGet returns the account record with the caller's session token
// echoed back.
func (s *Service) UserGet(ctx context.Context, req *ObjectRequest, sessionToken string) (map[string]any, error) {
	resp, err := s.users.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	resp["sessionToken"] = sessionToken
	return resp, nil
}

// DayList ensures the current week's day rows exist and carry the owner's
// grants before running the regular list operation.
func (s *Service) DayList(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if req.Principal == nil {
		return nil, ErrLoginRequired()
	}
	if err := s.ensureWeek(ctx, req.Principal); err != nil {
		return nil, err
	}
	if err := s.pipe.Stores().Days().BackfillOwnerGrants(ctx, req.Principal.ObjectID); err != nil {
		return nil, err
	}
	return s.days.List(ctx, req)
}

// ensureWeek inserts day rows from the start of the tracking week through
// at least a full week, skipping days that already exist. On Mondays the
// window reaches back to the previous week so the just-finished week stays
// complete.
func (s *Service) ensureWeek(ctx context.Context, u *User) error {
	now := s.pipe.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekday := (int(today.Weekday()) + 6) % 7
	if weekday == 0 {
		weekday = 7
	}
	start := today.AddDate(0, 0, -weekday)
	span := weekday + 2
	if span < 7 {
		span = 7
	}

	recommended := RecommendedGoalFor(u)
	days := make([]*Day, 0, span)
	for i := 0; i < span; i++ {
		goal := GoalForUser(u)
		day := &Day{
			UserID:          u.ObjectID,
			Date:            start.AddDate(0, 0, i),
			RecommendedGoal: recommended,
			Goal:            &goal,
		}
		day.SetIdentity(NewObjectID())
		day.Stamp(now)
		days = append(days, day)
	}
	return s.pipe.Stores().Days().EnsureDays(ctx, days)
}

// HealthStatsList lists stats rows. Unlike the generic list operation the
// where document only honors a user_id key; everything else is ignored.
func (s *Service) HealthStatsList(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if req.Principal == nil {
		return nil, ErrLoginRequired()
	}
	params := req.Params
	whereRaw := params.Where
	params.Where = ""
	q, err := s.pipe.Codec().CompileListQuery(ctx, s.healthStats.EntityType(), params)
	if err != nil {
		return nil, err
	}
	if whereRaw != "" {
		doc, err := DecodeDocument([]byte(whereRaw))
		if err != nil {
			return nil, err
		}
		if raw, ok := doc["user_id"]; ok {
			id, ok := raw.(string)
			if !ok {
				return nil, ErrInvalidWhere()
			}
			q.Conditions = append(q.Conditions, Condition{Field: "user", Value: id})
		}
	}
	results, err := s.healthStats.listRecords(ctx, req, q)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": results}, nil
}

// SaveGlow creates a glow, or rewrites an existing one when the body names
// an id that resolves. The caller's grants replace whatever was attached.
func (s *Service) SaveGlow(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if req.Principal == nil {
		return nil, ErrLoginRequired()
	}
	raw, ok := req.Body["glow"]
	if !ok {
		return nil, ErrMissingField("missing glow")
	}
	body, ok := raw.(map[string]any)
	if !ok {
		return nil, ErrMissingField("missing glow")
	}

	var existing Record
	if id, ok := body["id"].(string); ok {
		if r, err := s.pipe.Stores().Records().Get(ctx, EntityGlow, id); err == nil {
			existing = r
		}
	}
	delete(body, "id")

	sub := &ObjectRequest{Principal: req.Principal, Body: body}
	var glow Record
	var err error
	if existing == nil {
		glow = s.glows.etype.New()
		glow.SetIdentity(s.glows.etype.MintIdentity())
		glow, err = s.glows.write(ctx, sub, glow, true)
	} else {
		glow, err = s.glows.write(ctx, sub, existing, false)
		if err == nil {
			if err = s.pipe.Stores().Records().SetGrants(ctx, glow, AccessList{}.GrantOwner(req.Principal.ObjectID)); err != nil {
				err = ErrSaveFailed()
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"result": map[string]any{
			"message": "Glow saved successfully",
			"glowId":  glow.Identity(),
		},
	}, nil
}

// MyGlows lists the glows the caller holds a read grant on.
func (s *Service) MyGlows(ctx context.Context, req *ObjectRequest) (map[string]any, error) {
	if req.Principal == nil {
		return nil, ErrLoginRequired()
	}
	results, err := s.glows.listRecords(ctx, req, ListQuery{})
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": results}, nil
}

// DeleteGlow removes a glow by the id supplied as a query parameter.
func (s *Service) DeleteGlow(ctx context.Context, principal *User, glowID string) (map[string]any, error) {
	if principal == nil {
		return nil, ErrLoginRequired()
	}
	if glowID == "" {
		return nil, ErrMissingField("glowId required")
	}
	req := &ObjectRequest{Principal: principal, ObjectID: glowID}
	if _, err := s.glows.Delete(ctx, req); err != nil {
		return nil, err
	}
	return map[string]any{"result": "Glow deleted successfully"}, nil
}

// UserExists reports whether an account with the email exists. The mobile
// client probes this before signup, so it runs without a session.
func (s *Service) UserExists(ctx context.Context, email string, present bool) (map[string]any, error) {
	if !present {
		return map[string]any{}, nil
	}
	exists, err := s.pipe.Stores().Users().EmailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"result": map[string]any{
			"exists":        exists,
			"emailverified": false,
		},
	}, nil
}

// CanAddBottle always approves; the client enforces its own pairing limits.
func (s *Service) CanAddBottle() map[string]any {
	return map[string]any{
		"result": map[string]any{
			"canAdd":     true,
			"bottleData": map[string]any{},
		},
	}
}

// CalculateDayTotal returns the stored total for one day the caller can
// read.
func (s *Service) CalculateDayTotal(ctx context.Context, principal *User, dayID string) (map[string]any, error) {
	if principal == nil {
		return nil, ErrLoginRequired()
	}
	if dayID == "" {
		return nil, ErrMissingField("dayId required")
	}
	r, err := s.pipe.Stores().Records().Get(ctx, EntityDay, dayID)
	if err != nil {
		return nil, err
	}
	if err := s.days.requirePermission(ctx, r, principal, PermissionRead); err != nil {
		return nil, err
	}
	day := r.(*Day)
	return map[string]any{
		"dayTotal": day.TotalAmount,
		"dayId":    day.ObjectID,
	}, nil
}

// ResolvePrincipal maps a session token to its account record. An unknown
// or expired token yields a nil principal, not an error.
func (s *Service) ResolvePrincipal(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, nil
	}
	userID, err := s.pipe.Stores().Sessions().Resolve(ctx, token)
	if err != nil || userID == "" {
		return nil, nil
	}
	r, err := s.pipe.Stores().Records().Get(ctx, EntityUser, userID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return r.(*User), nil
}
