package sqlite_test

import (
	"testing"

	"github.com/tablemate/tablemate-server/internal/store"
	"github.com/tablemate/tablemate-server/internal/store/testutil"

	_ "github.com/tablemate/tablemate-server/internal/store/sqlite"
)

func TestSQLiteDriver(t *testing.T) {
	testutil.RunPlanStoreTests(t, "sqlite", &store.DriverConfig{
		Driver:  "sqlite",
		DataDir: t.TempDir(),
	})
}

func TestSQLiteDriverRequiresDataDir(t *testing.T) {
	_, err := store.New(&store.DriverConfig{Driver: "sqlite"})
	if err == nil {
		t.Fatal("expected error for missing data_dir")
	}
}
