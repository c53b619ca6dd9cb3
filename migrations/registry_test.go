package migrations_test

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/Ninjaclasher/hidrateapp-server/migrations"
)

func TestFilesystemsExposeBothDialects(t *testing.T) {
	specs, err := migrations.Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("specs = %d, want postgres and sqlite", len(specs))
	}

	byDialect := map[string]migrations.FilesystemSpec{}
	for _, spec := range specs {
		byDialect[spec.Dialect] = spec
	}

	for _, dialect := range []string{migrations.DialectPostgres, migrations.DialectSQLite} {
		spec, ok := byDialect[dialect]
		if !ok {
			t.Fatalf("dialect %s missing", dialect)
		}
		ups, err := fs.Glob(spec.FS, "*.up.sql")
		if err != nil {
			t.Fatalf("glob %s: %v", dialect, err)
		}
		if len(ups) == 0 {
			t.Fatalf("dialect %s has no up migrations", dialect)
		}
		downs, err := fs.Glob(spec.FS, "*.down.sql")
		if err != nil {
			t.Fatalf("glob %s downs: %v", dialect, err)
		}
		if len(downs) != len(ups) {
			t.Fatalf("dialect %s has %d ups but %d downs", dialect, len(ups), len(downs))
		}
	}

	if !strings.HasSuffix(byDialect[migrations.DialectSQLite].Path, "/sqlite") {
		t.Fatalf("sqlite path = %q", byDialect[migrations.DialectSQLite].Path)
	}
}

func TestRegisterInvokesCallbackPerTarget(t *testing.T) {
	var seen []string
	reg, err := migrations.Register(context.Background(), func(_ context.Context, dialect, sourceLabel string, fsys fs.FS) error {
		if sourceLabel != "hidrateapp" {
			t.Fatalf("source label = %q", sourceLabel)
		}
		if fsys == nil {
			t.Fatalf("nil filesystem for %s", dialect)
		}
		seen = append(seen, dialect)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("callback ran for %v, want both dialects", seen)
	}
	if len(reg.Filesystems) != 2 {
		t.Fatalf("registration filesystems = %d", len(reg.Filesystems))
	}
}

func TestRegisterHonorsValidationTargets(t *testing.T) {
	var seen []string
	_, err := migrations.Register(context.Background(), func(_ context.Context, dialect, _ string, _ fs.FS) error {
		seen = append(seen, dialect)
		return nil
	}, migrations.WithValidationTargets(migrations.DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(seen) != 1 || seen[0] != migrations.DialectSQLite {
		t.Fatalf("callback ran for %v, want sqlite only", seen)
	}
}

func TestRegisterRequiresCallback(t *testing.T) {
	if _, err := migrations.Register(context.Background(), nil); err == nil {
		t.Fatal("nil register function should be rejected")
	}
}
