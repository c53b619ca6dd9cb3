package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Ninjaclasher/hidrateapp-server/auth"
	"github.com/Ninjaclasher/hidrateapp-server/core"
	hidratemigrations "github.com/Ninjaclasher/hidrateapp-server/migrations"
	sqlstore "github.com/Ninjaclasher/hidrateapp-server/store/sql"
	"github.com/Ninjaclasher/hidrateapp-server/transport"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// fileRawConfigLoader reads a JSON configuration document from disk. A
// missing file is not an error; the defaults and environment take over.
type fileRawConfigLoader struct {
	path string
}

func (l fileRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if strings.TrimSpace(l.path) == "" {
		return map[string]any{}, nil
	}
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", l.path, err)
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", l.path, err)
	}
	return values, nil
}

// runtimeConfigFromEnv collects the environment overrides. These win over
// both the defaults and the config file.
func runtimeConfigFromEnv() core.Config {
	cfg := core.Config{}
	cfg.Server.Address = os.Getenv("HIDRATE_SERVER_ADDRESS")
	cfg.Database.Driver = os.Getenv("HIDRATE_DATABASE_DRIVER")
	cfg.Database.DSN = os.Getenv("HIDRATE_DATABASE_DSN")
	cfg.Credentials.ApplicationID = os.Getenv("HIDRATE_APPLICATION_ID")
	cfg.Credentials.RESTKey = os.Getenv("HIDRATE_REST_KEY")
	cfg.Credentials.ClientKey = os.Getenv("HIDRATE_CLIENT_KEY")
	return cfg
}

// persistenceConfig adapts the resolved configuration to the persistence
// client's expectations.
type persistenceConfig struct {
	cfg   core.Config
	debug bool
}

func (c persistenceConfig) GetDebug() bool                { return c.debug }
func (c persistenceConfig) GetDriver() string             { return c.cfg.Database.Driver }
func (c persistenceConfig) GetServer() string             { return c.cfg.Database.DSN }
func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }
func (c persistenceConfig) GetOtelIdentifier() string     { return c.cfg.ServiceName }

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case "sqlite3":
		return sqlitedialect.New(), nil
	case "postgres":
		return pgdialect.New(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func migrationDialectFor(driver string) string {
	if driver == "sqlite3" {
		return hidratemigrations.DialectSQLite
	}
	return hidratemigrations.DialectPostgres
}

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON configuration file")
	debugSQL := flag.Bool("debug-sql", false, "log every SQL statement")
	flag.Parse()

	_, logger := glog.Resolve("hidrateapp", nil, nil)

	if err := run(context.Background(), *configPath, *debugSQL, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, debugSQL bool, logger core.Logger) error {
	provider := core.NewCfgxConfigProvider(fileRawConfigLoader{path: configPath})
	loaded, err := provider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := core.GoOptionsResolver{}.Resolve(core.DefaultConfig(), loaded, runtimeConfigFromEnv())
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	dialect, err := dialectFor(cfg.Database.Driver)
	if err != nil {
		return err
	}
	sqlDB, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if cfg.Database.Driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{cfg: cfg, debug: debugSQL}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("persistence client: %w", err)
	}
	defer client.Close()

	wantDialect := migrationDialectFor(cfg.Database.Driver)
	_, err = hidratemigrations.Register(ctx, func(_ context.Context, migrationDialect string, _ string, fsys fs.FS) error {
		if migrationDialect != wantDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, hidratemigrations.WithValidationTargets(wantDialect))
	if err != nil {
		return fmt.Errorf("register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = 5 * time.Minute
	sessionCache, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return fmt.Errorf("session cache: %w", err)
	}
	stores, err := sqlstore.NewRepositoryFactory().WithSessionCache(sessionCache).BuildStores(client)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}

	registry, err := core.BuildRegistry()
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}
	codec := core.NewCodec(registry, stores.Records())
	pipe, err := core.NewPipeline(registry, codec, stores, logger, time.Now)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	service, err := core.NewService(pipe, auth.NewArgon2Hasher(), logger)
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	server, err := transport.NewServer(cfg, service, logger)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
