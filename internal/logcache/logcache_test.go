package logcache

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	store, err := OpenStore(context.Background(), filepath.Join(t.TempDir(), ".tidybot", DBFileName), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func tableExists(t *testing.T, s *Store, kind, name string) bool {
	t.Helper()
	var count int
	err := s.db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name,
	).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestOpenStore_RunsMigrations(t *testing.T) {
	s := openTestStore(t, 0)

	assert.True(t, tableExists(t, s, "table", "schema_migrations"))
	assert.True(t, tableExists(t, s, "table", "run_logs"))
	assert.True(t, tableExists(t, s, "index", "idx_run_logs_fetched_at"))

	// Running again is a no-op.
	require.NoError(t, RunMigrations(context.Background(), s.db))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = '001'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRunMigrations_InvalidFilename(t *testing.T) {
	s := openTestStore(t, 0)
	fsys := fstest.MapFS{
		"migrations/bad.sql": {Data: []byte("-- +up\nSELECT 1;\n")},
	}

	err := runMigrationsFS(context.Background(), s.db, fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")
}

func TestRunMigrations_AppliesInVersionOrder(t *testing.T) {
	s := openTestStore(t, 0)
	fsys := fstest.MapFS{
		"migrations/101_add_note.sql": {Data: []byte("-- +up\nALTER TABLE extra ADD COLUMN note TEXT;\n-- +down\n")},
		"migrations/100_extra.sql":    {Data: []byte("-- +up\nCREATE TABLE extra (id INTEGER);\n-- +down\nDROP TABLE extra;\n")},
	}

	require.NoError(t, runMigrationsFS(context.Background(), s.db, fsys))
	_, err := s.db.Exec("INSERT INTO extra (id, note) VALUES (1, 'ok')")
	require.NoError(t, err)
}

func TestSplitSections(t *testing.T) {
	up, down := splitSections("-- header\n-- +up\nCREATE TABLE a (x);\n-- +down\nDROP TABLE a;\n")
	assert.Equal(t, "CREATE TABLE a (x);", up)
	assert.Equal(t, "DROP TABLE a;\n", down)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`
-- comment; with semicolon
CREATE TABLE a (x TEXT DEFAULT 'a;b');
INSERT INTO a VALUES ("c;d");

`)
	assert.Equal(t, []string{
		"CREATE TABLE a (x TEXT DEFAULT 'a;b')",
		`INSERT INTO a VALUES ("c;d")`,
	}, stmts)
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0)

	_, ok, err := s.Get(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "acme/widgets", 1, []byte("first")))
	require.NoError(t, s.Put(ctx, "acme/widgets", 1, []byte("second")))
	require.NoError(t, s.Put(ctx, "acme/other", 1, []byte("other")))

	data, ok, err := s.Get(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("second"), data)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Entries)
	assert.Equal(t, int64(len("second")+len("other")), st.Bytes)
}

func TestStore_TTLAndPrune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, time.Hour)

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return start }
	require.NoError(t, s.Put(ctx, "acme/widgets", 1, []byte("old")))

	s.now = func() time.Time { return start.Add(90 * time.Minute) }
	require.NoError(t, s.Put(ctx, "acme/widgets", 2, []byte("new")))

	_, ok, err := s.Get(ctx, "acme/widgets", 1)
	require.NoError(t, err)
	assert.False(t, ok, "expired entry must be a miss")

	_, ok, err = s.Get(ctx, "acme/widgets", 2)
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := s.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestCache_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := New(nil, time.Minute)
	defer c.Close()

	_, ok := c.Get(ctx, "acme/widgets", 3)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "acme/widgets", 3, []byte("zip")))
	data, ok := c.Get(ctx, "acme/widgets", 3)
	require.True(t, ok)
	assert.Equal(t, []byte("zip"), data)

	_, ok = c.Get(ctx, "acme/other", 3)
	assert.False(t, ok)
}

func TestCache_PromotesFromStore(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0)
	require.NoError(t, s.Put(ctx, "acme/widgets", 9, []byte("persisted")))

	c := New(s, time.Minute)

	data, ok := c.Get(ctx, "acme/widgets", 9)
	require.True(t, ok)
	assert.Equal(t, []byte("persisted"), data)

	// Served from memory once the store entry is gone.
	_, err := s.Clear(ctx)
	require.NoError(t, err)
	data, ok = c.Get(ctx, "acme/widgets", 9)
	require.True(t, ok)
	assert.Equal(t, []byte("persisted"), data)
}

func TestCache_DeleteDropsBothTiers(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t, 0)
	c := New(s, time.Minute)

	require.NoError(t, c.Put(ctx, "acme/widgets", 4, []byte("corrupt")))
	require.NoError(t, c.Delete(ctx, "acme/widgets", 4))

	_, ok := c.Get(ctx, "acme/widgets", 4)
	assert.False(t, ok)
	_, ok, err := s.Get(ctx, "acme/widgets", 4)
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing run is fine.
	require.NoError(t, c.Delete(ctx, "acme/widgets", 99))
}

func TestCache_HitExtendsMemoryLifetime(t *testing.T) {
	ctx := context.Background()
	c := New(nil, 100*time.Millisecond)

	require.NoError(t, c.Put(ctx, "acme/widgets", 5, []byte("zip")))
	time.Sleep(60 * time.Millisecond)
	_, ok := c.Get(ctx, "acme/widgets", 5)
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get(ctx, "acme/widgets", 5)
	assert.True(t, ok)
}
