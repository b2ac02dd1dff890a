package repository

import (
	"path/filepath"
	"testing"

	"github.com/209works/api-platform/internal/storage"
	"github.com/stretchr/testify/require"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

// newTestDB opens a throwaway sqlite database with the full schema and
// the built-in tiers. The cgo-free driver registers as "sqlite", so the
// dialector's default driver name is overridden.
func newTestDB(t *testing.T) *storage.Postgres {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.sqlite")
	db, err := gorm.Open(gormsqlite.Dialector{DriverName: "sqlite", DSN: dsn}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	pg := &storage.Postgres{DB: db}
	require.NoError(t, pg.AutoMigrate())
	require.NoError(t, pg.SeedTiers())

	t.Cleanup(func() { pg.Close() })

	return pg
}
