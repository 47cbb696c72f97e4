// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return New(afero.NewMemMapFs(), "/migrations")
}

func TestCreateAssignsSequentialVersions(t *testing.T) {
	s := newTestStore()

	m1, err := s.Create("create_users", "CREATE TABLE users (id INTEGER);")
	require.NoError(t, err)
	assert.Equal(t, 1, m1.Version)
	assert.Equal(t, "0001_create_users.sql", m1.FileName)

	m2, err := s.Create("create_orders", "CREATE TABLE orders (id INTEGER);")
	require.NoError(t, err)
	assert.Equal(t, 2, m2.Version)
}

func TestCreateRejectsInvalidName(t *testing.T) {
	s := newTestStore()
	_, err := s.Create("CreateUsers", "SELECT 1;")
	assert.Error(t, err)

	_, err = s.Create("", "SELECT 1;")
	assert.Error(t, err)
}

func TestLoadAllReturnsSortedMigrations(t *testing.T) {
	s := newTestStore()
	_, err := s.Create("second", "SELECT 2;")
	require.NoError(t, err)
	_, err = s.Create("third", "SELECT 3;")
	require.NoError(t, err)

	// Manually seed an out-of-band earlier migration to confirm sort order,
	// not creation order, drives LoadAll.
	fs := s.fs
	require.NoError(t, afero.WriteFile(fs, "/migrations/0000_first.sql", []byte("SELECT 1;"), 0o644))

	migrations, warnings, err := s.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, migrations, 3)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "second", migrations[1].Name)
	assert.Equal(t, "third", migrations[2].Name)
}

func TestLoadAllSkipsBadFileNameWithWarning(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.fs.MkdirAll("/migrations", 0o755))
	require.NoError(t, afero.WriteFile(s.fs, "/migrations/not-a-migration.sql", []byte("x"), 0o644))
	_, err := s.Create("create_users", "CREATE TABLE users (id INTEGER);")
	require.NoError(t, err)

	migrations, warnings, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, migrations, 1)
	require.Len(t, warnings, 1)
	assert.Equal(t, "not-a-migration.sql", warnings[0].FileName)
}

func TestLoadAllIgnoresDownFiles(t *testing.T) {
	s := newTestStore()
	m, err := s.Create("create_users", "CREATE TABLE users (id INTEGER);")
	require.NoError(t, err)
	require.NoError(t, s.WithDownStub(m))

	migrations, _, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, migrations, 1)

	down, ok, err := s.LoadDown(m)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, down, "down migration")
}

func TestChecksumIsStableAndContentSensitive(t *testing.T) {
	a := Checksum([]byte("CREATE TABLE x (id INTEGER);"))
	b := Checksum([]byte("CREATE TABLE x (id INTEGER);"))
	c := Checksum([]byte("CREATE TABLE x (id BIGINT);"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
