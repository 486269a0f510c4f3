package test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hrygo/bookcircle/internal/profile"
	"github.com/hrygo/bookcircle/internal/version"
	"github.com/hrygo/bookcircle/store"
	"github.com/hrygo/bookcircle/store/db"
)

// NewTestingStore returns a migrated store. SQLite on a temporary file is used unless
// DRIVER=postgres, in which case POSTGRES_TEST_DSN must point at an empty database.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	return newTestingStore(ctx, t, "dev")
}

// NewTestingStoreWithMode is NewTestingStore for a specific profile mode.
func NewTestingStoreWithMode(ctx context.Context, t *testing.T, mode string) *store.Store {
	t.Helper()
	return newTestingStore(ctx, t, mode)
}

func newTestingStore(ctx context.Context, t *testing.T, mode string) *store.Store {
	profile := getTestingProfile(t, mode)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	st := store.New(dbDriver, profile)
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

func getTestingProfile(t *testing.T, mode string) *profile.Profile {
	dir := t.TempDir()
	driver := getDriverFromEnv()

	p := &profile.Profile{
		Mode:    mode,
		Data:    dir,
		Driver:  driver,
		Version: version.GetCurrentVersion(mode),
	}
	switch driver {
	case "postgres":
		dsn := os.Getenv("POSTGRES_TEST_DSN")
		if dsn == "" {
			t.Skip("POSTGRES_TEST_DSN is not set")
		}
		p.DSN = dsn
	default:
		p.DSN = filepath.Join(dir, "bookcircle_test.db")
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}
