package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionStore maps bearer tokens to account identities. Tokens are minted
// here; callers never choose them.
type SessionStore struct {
	db   *bun.DB
	repo repository.Repository[*sessionRecord]
}

// Create returns the account's live session token, minting a fresh one
// only when no session exists for the user.
func (s *SessionStore) Create(ctx context.Context, userID string) (string, error) {
	if s == nil || s.repo == nil {
		return "", fmt.Errorf("sqlstore: session store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("sqlstore: session requires a user id")
	}
	existing, _, err := s.repo.List(ctx,
		repository.SelectBy("user_id", "=", userID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return existing[0].Token, nil
	}
	record := &sessionRecord{
		ID:     uuid.NewString(),
		Token:  core.NewSessionToken(),
		UserID: userID,
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return "", err
	}
	return created.Token, nil
}

func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	if s == nil || s.repo == nil {
		return "", fmt.Errorf("sqlstore: session store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", core.ErrDoesNotExist()
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("token", "=", token),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", core.ErrDoesNotExist()
	}
	return records[0].UserID, nil
}

func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	_, err := s.db.NewDelete().
		Model((*sessionRecord)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	return err
}
