package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RecordStore persists every entity table plus the grant rows that gate
// access to individual records.
type RecordStore struct {
	db *bun.DB
}

func NewRecordStore(db *bun.DB) (*RecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: record store requires a bun.DB")
	}
	return &RecordStore{db: db}, nil
}

func (s *RecordStore) Get(ctx context.Context, entity, id string) (core.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: record store is not configured")
	}
	t, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	model := t.newModel()
	err = s.db.NewSelect().
		Model(model).
		Where("?TableAlias."+t.pk+" = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrDoesNotExist()
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (s *RecordStore) Exists(ctx context.Context, entity, id string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: record store is not configured")
	}
	t, err := tableFor(entity)
	if err != nil {
		return false, err
	}
	count, err := s.db.NewSelect().
		Model(t.newModel()).
		Where("?TableAlias."+t.pk+" = ?", strings.TrimSpace(id)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *RecordStore) List(ctx context.Context, entity string, q core.ListQuery) ([]core.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: record store is not configured")
	}
	t, err := tableFor(entity)
	if err != nil {
		return nil, err
	}

	var buildErr error
	build := func(query *bun.SelectQuery) *bun.SelectQuery {
		for _, cond := range q.Conditions {
			column, ok := t.columns[cond.Field]
			if !ok {
				buildErr = fmt.Errorf("sqlstore: entity %q has no column for field %q", entity, cond.Field)
				return query
			}
			value, err := conditionValue(cond.Value)
			if err != nil {
				buildErr = err
				return query
			}
			query = query.Where("?TableAlias."+column+" = ?", value)
		}
		if q.ReadableBy != "" {
			query = readableByClause(query, t, q.ReadableBy)
		}
		if q.Order != "" {
			column, ok := t.columns[q.Order]
			if !ok {
				buildErr = fmt.Errorf("sqlstore: entity %q has no column for field %q", entity, q.Order)
				return query
			}
			direction := " ASC"
			if q.Descending {
				direction = " DESC"
			}
			query = query.OrderExpr("?TableAlias." + column + direction)
		}
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
		return query
	}

	records, err := t.list(ctx, s.db, build)
	if buildErr != nil {
		return nil, buildErr
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func readableByClause(query *bun.SelectQuery, t entityTable, userID string) *bun.SelectQuery {
	return query.Where(
		"EXISTS (SELECT 1 FROM record_grants AS rg"+
			" JOIN acl_grants AS g ON g.id = rg.grant_id"+
			" WHERE rg.entity = ? AND rg.record_id = ?TableAlias."+t.pk+
			" AND g.user_id = ? AND g.permission = ?)",
		t.entity, userID, string(core.PermissionRead),
	)
}

func (s *RecordStore) Create(ctx context.Context, r core.Record, grants core.AccessList) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: record store is not configured")
	}
	t, err := tableFor(r.EntityName())
	if err != nil {
		return err
	}
	model, err := t.fromDomain(r)
	if err != nil {
		return err
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(model).Exec(ctx); err != nil {
			return err
		}
		return attachGrants(ctx, tx, t.entity, r.Identity(), grants)
	})
}

func (s *RecordStore) Update(ctx context.Context, r core.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: record store is not configured")
	}
	t, err := tableFor(r.EntityName())
	if err != nil {
		return err
	}
	model, err := t.fromDomain(r)
	if err != nil {
		return err
	}
	res, err := s.db.NewUpdate().Model(model).WherePK().Exec(ctx)
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

// SetGrants replaces the record's grant links with exactly the given set.
func (s *RecordStore) SetGrants(ctx context.Context, r core.Record, grants core.AccessList) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: record store is not configured")
	}
	t, err := tableFor(r.EntityName())
	if err != nil {
		return err
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*recordGrantRecord)(nil)).
			Where("entity = ?", t.entity).
			Where("record_id = ?", r.Identity()).
			Exec(ctx); err != nil {
			return err
		}
		return attachGrants(ctx, tx, t.entity, r.Identity(), grants)
	})
}

func (s *RecordStore) Delete(ctx context.Context, r core.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: record store is not configured")
	}
	t, err := tableFor(r.EntityName())
	if err != nil {
		return err
	}
	model, err := t.fromDomain(r)
	if err != nil {
		return err
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*recordGrantRecord)(nil)).
			Where("entity = ?", t.entity).
			Where("record_id = ?", r.Identity()).
			Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model(model).WherePK().Exec(ctx)
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
	})
}

// ensureGrant returns the id of the (user, permission) grant row, creating
// it when absent. A user holds at most one grant row per permission.
func ensureGrant(ctx context.Context, db bun.IDB, userID string, perm core.Permission) (string, error) {
	grant := &grantRecord{
		ID:         uuid.NewString(),
		UserID:     userID,
		Permission: string(perm),
	}
	if _, err := db.NewInsert().
		Model(grant).
		On("CONFLICT (user_id, permission) DO NOTHING").
		Exec(ctx); err != nil {
		return "", err
	}
	var id string
	err := db.NewSelect().
		Model((*grantRecord)(nil)).
		Column("id").
		Where("user_id = ?", userID).
		Where("permission = ?", string(perm)).
		Limit(1).
		Scan(ctx, &id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func attachGrants(ctx context.Context, db bun.IDB, entity, recordID string, grants core.AccessList) error {
	for _, grant := range grants {
		grantID, err := ensureGrant(ctx, db, grant.UserID, grant.Permission)
		if err != nil {
			return err
		}
		link := &recordGrantRecord{
			Entity:   entity,
			RecordID: recordID,
			GrantID:  grantID,
		}
		if _, err := db.NewInsert().
			Model(link).
			On("CONFLICT (entity, record_id, grant_id) DO NOTHING").
			Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
