package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellarlinkco/aria/internal/config"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	fs, err := NewFileStore(filepath.Join(dir, "profiles.json"))
	require.NoError(t, err)

	ss, err := NewSQLiteStore(filepath.Join(dir, "profiles.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(RedisOptions{Addr: mr.Addr(), Prefix: "test"})
	require.NoError(t, err)

	all := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
		"sqlite": ss,
		"redis":  rs,
	}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "missing")
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)

			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Empty(t, keys)

			require.NoError(t, s.Set(ctx, "u2", []byte(`{"id":"u2"}`)))
			require.NoError(t, s.Set(ctx, "u1", []byte(`{"id":"u1"}`)))
			require.NoError(t, s.Set(ctx, "u1", []byte(`{"id":"u1","name":"Sam"}`)))

			got, err := s.Get(ctx, "u1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"u1","name":"Sam"}`, string(got))

			keys, err = s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"u1", "u2"}, keys)
		})
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	buf := []byte(`{"id":"a"}`)
	require.NoError(t, s.Set(ctx, "a", buf))
	buf[2] = 'X'

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"a"}`, string(got))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "profiles.json")

	s1, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "u1", []byte(`{"id":"u1"}`)))

	s2, err := NewFileStore(path)
	require.NoError(t, err)
	got, err := s2.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1"}`, string(got))
}

func TestFileStore_CorruptDocument(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profiles.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = s.Get(ctx, "u1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Error(t, s.Set(ctx, "u1", []byte(`{"id":"u1"}`)))
}

func TestFileStore_RejectsNonJSON(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)
	assert.Error(t, s.Set(context.Background(), "u1", []byte("plain")))
}

func TestSQLiteStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "profiles.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Set(ctx, "u1", []byte(`{"id":"u1"}`)))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"u1"}`, string(got))
}

func TestRedisStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "u1", []byte(`{"id":"u1"}`)))
	assert.True(t, mr.Exists("aria:profile:u1"))
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(RedisOptions{Addr: addr})
	assert.Error(t, err)
}

func TestOpen_Drivers(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(config.StoreConfig{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.StoreConfig{Path: filepath.Join(dir, "p.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(config.StoreConfig{Driver: "SQLite", Path: filepath.Join(dir, "p.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.StoreConfig{Driver: "cassandra"})
	assert.Error(t, err)
}
