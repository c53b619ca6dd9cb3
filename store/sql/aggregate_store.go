package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/uptrace/bun"
)

// AggregateStore recomputes intake roll-ups straight from child rows.
// Each refresh is a single UPDATE whose sums run as subselects, so the
// re-sum and the write-back cannot interleave with a concurrent sip
// write. Totals are never incremented in place.
type AggregateStore struct {
	db *bun.DB
}

func NewAggregateStore(db *bun.DB) (*AggregateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: aggregate store requires a bun.DB")
	}
	return &AggregateStore{db: db}, nil
}

func (s *AggregateStore) RefreshDayTotals(ctx context.Context, dayID string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: aggregate store is not configured")
	}
	dayID = strings.TrimSpace(dayID)
	if dayID == "" {
		return fmt.Errorf("sqlstore: day id is required")
	}
	res, err := s.db.NewUpdate().
		Model((*dayRecord)(nil)).
		Set("total_amount = (SELECT COALESCE(SUM(amount), 0) FROM sips WHERE day_id = ?)", dayID).
		Set("total_bottle_amount = (SELECT COALESCE(SUM(CASE WHEN bottle_serial_number <> '' THEN amount ELSE 0 END), 0) FROM sips WHERE day_id = ?)", dayID).
		Set("updated_at = ?", at.UTC()).
		Where("object_id = ?", dayID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.ErrDoesNotExist()
	}
	return nil
}

func (s *AggregateStore) RefreshUserRollups(ctx context.Context, userID string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: aggregate store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("sqlstore: user id is required")
	}
	_, err := s.db.NewUpdate().
		Model((*userHealthStatsRecord)(nil)).
		Set("volume = (SELECT COALESCE(SUM(amount), 0) FROM sips WHERE user_id = ?)", userID).
		Set("goal_met_count = (SELECT COUNT(*) FROM days WHERE user_id = ? AND goal IS NOT NULL AND total_amount >= goal)", userID).
		Set("updated_at = ?", at.UTC()).
		Where("user_id = ?", userID).
		Exec(ctx)
	return err
}
