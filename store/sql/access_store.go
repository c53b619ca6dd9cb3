package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/uptrace/bun"
)

// AccessStore answers per-record grant checks against the grant tables.
type AccessStore struct {
	db *bun.DB
}

func NewAccessStore(db *bun.DB) (*AccessStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: access store requires a bun.DB")
	}
	return &AccessStore{db: db}, nil
}

func (s *AccessStore) Allows(ctx context.Context, r core.Record, userID string, perm core.Permission) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: access store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}
	count, err := s.db.NewSelect().
		Model((*recordGrantRecord)(nil)).
		Join("JOIN acl_grants AS g ON g.id = rg.grant_id").
		Where("rg.entity = ?", r.EntityName()).
		Where("rg.record_id = ?", r.Identity()).
		Where("g.user_id = ?", userID).
		Where("g.permission = ?", string(perm)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
