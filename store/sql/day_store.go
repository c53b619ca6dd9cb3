package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/uptrace/bun"
)

// DayStore performs the bulk day maintenance the day list endpoint runs
// before every read.
type DayStore struct {
	db *bun.DB
}

func NewDayStore(db *bun.DB) (*DayStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: day store requires a bun.DB")
	}
	return &DayStore{db: db}, nil
}

// EnsureDays inserts the given days, skipping (user, date) pairs that
// already exist. Existing rows are left untouched.
func (s *DayStore) EnsureDays(ctx context.Context, days []*core.Day) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: day store is not configured")
	}
	if len(days) == 0 {
		return nil
	}
	rows := make([]*dayRecord, 0, len(days))
	for _, day := range days {
		row, err := newDayRecord(day)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (user_id, date) DO NOTHING").
		Exec(ctx)
	return err
}

// BackfillOwnerGrants attaches the owner's read and write grants to any of
// their days that carry no grant for them yet. Days seeded by EnsureDays
// start without grants and pick them up here.
func (s *DayStore) BackfillOwnerGrants(ctx context.Context, userID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: day store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var ids []string
		err := tx.NewSelect().
			Model((*dayRecord)(nil)).
			Column("object_id").
			Where("?TableAlias.user_id = ?", userID).
			Where("NOT EXISTS (SELECT 1 FROM record_grants AS rg"+
				" JOIN acl_grants AS g ON g.id = rg.grant_id"+
				" WHERE rg.entity = ? AND rg.record_id = ?TableAlias.object_id"+
				" AND g.user_id = ?)", core.EntityDay, userID).
			Scan(ctx, &ids)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		grants := core.AccessList{}.GrantOwner(userID)
		for _, id := range ids {
			if err := attachGrants(ctx, tx, core.EntityDay, id, grants); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateGoals rewrites goal fields on the owner's days since the cutoff,
// restricted to days the principal holds a write grant on. Row timestamps
// are left alone.
func (s *DayStore) UpdateGoals(ctx context.Context, ownerID, principalID string, since time.Time, recommended, goal float64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: day store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*dayRecord)(nil)).
		Set("recommended_goal = ?", recommended).
		Set("goal = ?", goal).
		Where("?TableAlias.user_id = ?", strings.TrimSpace(ownerID)).
		Where("?TableAlias.date >= ?", since).
		Where("EXISTS (SELECT 1 FROM record_grants AS rg"+
			" JOIN acl_grants AS g ON g.id = rg.grant_id"+
			" WHERE rg.entity = ? AND rg.record_id = ?TableAlias.object_id"+
			" AND g.user_id = ? AND g.permission = ?)",
			core.EntityDay, strings.TrimSpace(principalID), string(core.PermissionWrite)).
		Exec(ctx)
	return err
}
