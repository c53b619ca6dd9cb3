package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	"github.com/uptrace/bun"
)

// UserStore covers the account lookups the login and user-exists endpoints
// need beyond generic record access.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: user store requires a bun.DB")
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (*core.User, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: user store is not configured")
	}
	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", strings.TrimSpace(username)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrDoesNotExist()
		}
		return nil, err
	}
	return record.toDomain().(*core.User), nil
}

func (s *UserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: user store is not configured")
	}
	count, err := s.db.NewSelect().
		Model((*userRecord)(nil)).
		Where("?TableAlias.email = ?", strings.TrimSpace(email)).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
