package core

import (
	"context"
	"fmt"
	"time"
)

// RecommendedGoalFor returns the daily intake recommendation for a user.
// A flat constant until a per-profile recommendation model exists.
func RecommendedGoalFor(_ *User) float64 {
	return DefaultRecommendedGoal
}

// GoalForUser is the goal written onto fresh days: the user's own goal when
// set, otherwise the recommendation.
func GoalForUser(u *User) float64 {
	if u != nil && u.Goal != nil {
		return *u.Goal
	}
	return RecommendedGoalFor(u)
}

// StatsRefresher recomputes the intake roll-ups after a sip changes. Every
// derived value is re-summed from child rows in the store so a replayed or
// deleted sip can never leave a stale sum behind.
type StatsRefresher struct {
	aggregates AggregateStore
	now        func() time.Time
}

func NewStatsRefresher(aggregates AggregateStore, now func() time.Time) *StatsRefresher {
	if now == nil {
		now = time.Now
	}
	return &StatsRefresher{aggregates: aggregates, now: now}
}

// AfterSipChange refreshes the sip's day and every stats row of the sip's
// user. Called after create, update and delete of a sip.
func (s *StatsRefresher) AfterSipChange(ctx context.Context, sip *Sip) error {
	if s == nil || sip == nil {
		return fmt.Errorf("core: stats refresher requires a sip")
	}
	if sip.DayID != "" {
		if err := s.aggregates.RefreshDayTotals(ctx, sip.DayID, s.now()); err != nil {
			return err
		}
	}
	if sip.UserID != "" {
		if err := s.aggregates.RefreshUserRollups(ctx, sip.UserID, s.now()); err != nil {
			return err
		}
	}
	return nil
}
