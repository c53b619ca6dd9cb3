package sqlstore

import (
	"fmt"

	"github.com/Ninjaclasher/hidrateapp-server/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// RepositoryFactory builds and caches every persistence surface the
// pipeline needs over a single bun.DB.
type RepositoryFactory struct {
	db           *bun.DB
	sessionCache repositorycache.CacheService

	recordStore    *RecordStore
	accessStore    *AccessStore
	userStore      *UserStore
	sessionStore   core.SessionStore
	aggregateStore *AggregateStore
	dayStore       *DayStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

// WithSessionCache wires a cache in front of session resolution. Call it
// before BuildStores.
func (f *RepositoryFactory) WithSessionCache(cacheService repositorycache.CacheService) *RepositoryFactory {
	if f != nil {
		f.sessionCache = cacheService
	}
	return f
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.Stores, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.recordStore != nil && f.sessionStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) Records() core.RecordStore {
	if f == nil {
		return nil
	}
	return f.recordStore
}

func (f *RepositoryFactory) Access() core.AccessStore {
	if f == nil {
		return nil
	}
	return f.accessStore
}

func (f *RepositoryFactory) Users() core.UserStore {
	if f == nil {
		return nil
	}
	return f.userStore
}

func (f *RepositoryFactory) Sessions() core.SessionStore {
	if f == nil {
		return nil
	}
	return f.sessionStore
}

func (f *RepositoryFactory) Aggregates() core.AggregateStore {
	if f == nil {
		return nil
	}
	return f.aggregateStore
}

func (f *RepositoryFactory) Days() core.DayStore {
	if f == nil {
		return nil
	}
	return f.dayStore
}

func (f *RepositoryFactory) initStores() error {
	sessionRepo := repository.NewRepository[*sessionRecord](f.db, sessionHandlers())
	if validator, ok := sessionRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid session repository wiring: %w", err)
		}
	}

	recordStore, err := NewRecordStore(f.db)
	if err != nil {
		return err
	}
	f.recordStore = recordStore

	accessStore, err := NewAccessStore(f.db)
	if err != nil {
		return err
	}
	f.accessStore = accessStore

	userStore, err := NewUserStore(f.db)
	if err != nil {
		return err
	}
	f.userStore = userStore

	aggregateStore, err := NewAggregateStore(f.db)
	if err != nil {
		return err
	}
	f.aggregateStore = aggregateStore

	dayStore, err := NewDayStore(f.db)
	if err != nil {
		return err
	}
	f.dayStore = dayStore

	f.sessionStore = &SessionStore{db: f.db, repo: sessionRepo}
	if f.sessionCache != nil {
		cached, err := NewCachedSessionStore(f.sessionStore, f.sessionCache)
		if err != nil {
			return err
		}
		f.sessionStore = cached
	}
	return nil
}

func resolveBunDB(persistenceClient any) (*bun.DB, error) {
	switch client := persistenceClient.(type) {
	case *bun.DB:
		if client == nil {
			return nil, fmt.Errorf("sqlstore: bun.DB is nil")
		}
		return client, nil
	case interface{ DB() *bun.DB }:
		db := client.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned a nil bun.DB")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client %T", persistenceClient)
	}
}
