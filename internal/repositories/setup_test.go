package repositories

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDbContext(t *testing.T) *DbContext {
	t.Helper()

	dbCtx, err := NewDbContext(DriverSQLite, filepath.Join(t.TempDir(), "outreach_test.db"))
	require.NoError(t, err)
	require.NoError(t, dbCtx.Migrate())

	t.Cleanup(func() { _ = dbCtx.Close() })
	return dbCtx
}
