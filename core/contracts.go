package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// RecordStore is the entity-generic persistence surface. Implementations
// dispatch on Record.EntityName to the right table.
type RecordStore interface {
	// Get loads a record by identity or returns a does-not-exist error.
	Get(ctx context.Context, entity, id string) (Record, error)
	// Exists reports identity presence without loading the record.
	Exists(ctx context.Context, entity, id string) (bool, error)
	// List applies a compiled query, including its read-grant restriction.
	List(ctx context.Context, entity string, q ListQuery) ([]Record, error)
	// Create persists a fresh record together with its access list in a
	// single transaction.
	Create(ctx context.Context, r Record, grants AccessList) error
	// Update persists changed fields of a loaded record.
	Update(ctx context.Context, r Record) error
	// SetGrants replaces the record's access list.
	SetGrants(ctx context.Context, r Record, grants AccessList) error
	// Delete removes the record and its grant attachments.
	Delete(ctx context.Context, r Record) error
}

// AccessStore answers grant checks for a single record.
type AccessStore interface {
	Allows(ctx context.Context, r Record, userID string, perm Permission) (bool, error)
}

// UserStore covers the lookups the account endpoints need beyond generic
// record access.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// SessionStore maps bearer tokens to account identities.
type SessionStore interface {
	// Create returns the account's live session token, minting a fresh
	// one only when none exists.
	Create(ctx context.Context, userID string) (token string, err error)
	Resolve(ctx context.Context, token string) (userID string, err error)
	Destroy(ctx context.Context, token string) error
}

// AggregateStore recomputes the intake roll-ups derived from child rows.
// Every refresh re-sums and writes back in one atomic statement so
// concurrent sip writes cannot interleave a stale read-sum-write cycle.
// Values are never incremented in place.
type AggregateStore interface {
	// RefreshDayTotals re-sums one day's sip amounts, total and
	// bottle-tracked, onto the day row.
	RefreshDayTotals(ctx context.Context, dayID string, at time.Time) error
	// RefreshUserRollups rewrites volume and goal-met counts on every
	// stats row attached to a user.
	RefreshUserRollups(ctx context.Context, userID string, at time.Time) error
}

// DayStore covers the bulk day maintenance the day list endpoint performs.
type DayStore interface {
	// EnsureDays inserts the given days, skipping (user, date) pairs that
	// already exist.
	EnsureDays(ctx context.Context, days []*Day) error
	// BackfillOwnerGrants attaches the owner's read and write grants to
	// any of their days that carry no grant for them yet.
	BackfillOwnerGrants(ctx context.Context, userID string) error
	// UpdateGoals rewrites goal fields on the owner's recent days the
	// principal holds a write grant on.
	UpdateGoals(ctx context.Context, ownerID, principalID string, since time.Time, recommended, goal float64) error
}

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}

// Stores bundles every persistence surface the pipeline needs.
type Stores interface {
	Records() RecordStore
	Access() AccessStore
	Users() UserStore
	Sessions() SessionStore
	Aggregates() AggregateStore
	Days() DayStore
}
