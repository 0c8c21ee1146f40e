// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Doorman Contributors

package store

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doorman-auth/doorman/pkg/errutil"
)

type mockMigrate struct {
	upErr          error
	downErr        error
	version        uint
	dirty          bool
	versionErr     error
	forced         *int
	forceErr       error
	closeSourceErr error
	closeDBErr     error
}

func (m *mockMigrate) Up() error                    { return m.upErr }
func (m *mockMigrate) Down() error                  { return m.downErr }
func (m *mockMigrate) Version() (uint, bool, error) { return m.version, m.dirty, m.versionErr }
func (m *mockMigrate) Close() (error, error)        { return m.closeSourceErr, m.closeDBErr }

func (m *mockMigrate) Force(v int) error {
	m.forced = &v
	return m.forceErr
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("invalid://url")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/db":   "pgx5://u:p@localhost:5432/db",
		"postgresql://u:p@localhost:5432/db": "pgx5://u:p@localhost:5432/db",
		"pgx5://localhost/db":                "pgx5://localhost/db",
	}
	for in, want := range tests {
		assert.Equal(t, want, migrateURL(in), in)
	}
}

func TestMigrator_Up(t *testing.T) {
	t.Run("applies", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{}}
		assert.NoError(t, m.Up())
	})

	t.Run("no change is success", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{upErr: migrate.ErrNoChange}}
		assert.NoError(t, m.Up())
	})

	t.Run("failure", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{upErr: errors.New("syntax error")}}
		err := m.Up()
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "MIGRATION_UP_FAILED")
	})
}

func TestMigrator_Down(t *testing.T) {
	m := &Migrator{m: &mockMigrate{downErr: migrate.ErrNoChange}}
	assert.NoError(t, m.Down())

	m = &Migrator{m: &mockMigrate{downErr: errors.New("locked")}}
	errutil.AssertErrorCode(t, m.Down(), "MIGRATION_DOWN_FAILED")
}

func TestMigrator_Version(t *testing.T) {
	m := &Migrator{m: &mockMigrate{version: 3, dirty: true}}
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)
	assert.True(t, dirty)

	m = &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
	v, dirty, err = m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)

	m = &Migrator{m: &mockMigrate{versionErr: errors.New("connection reset")}}
	_, _, err = m.Version()
	errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
}

func TestMigrator_Force(t *testing.T) {
	mock := &mockMigrate{}
	m := &Migrator{m: mock}

	require.NoError(t, m.Force(2))
	require.NotNil(t, mock.forced)
	assert.Equal(t, 2, *mock.forced)

	mock.forced = nil
	err := m.Force(-1)
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	assert.Nil(t, mock.forced, "negative version must not reach the driver")

	mock.forceErr = errors.New("boom")
	errutil.AssertErrorCode(t, m.Force(1), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Close(t *testing.T) {
	m := &Migrator{m: &mockMigrate{}}
	assert.NoError(t, m.Close())

	m = &Migrator{m: &mockMigrate{
		closeSourceErr: errors.New("source"),
		closeDBErr:     errors.New("database"),
	}}
	err := m.Close()
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	assert.Contains(t, err.Error(), "source")
	assert.Contains(t, err.Error(), "database")
}

func TestMigrator_Status(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	t.Run("empty database", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: migrate.ErrNilVersion}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Empty(t, st.Applied)
		assert.Equal(t, all, st.Pending)
	})

	t.Run("partially migrated", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{version: 2}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Equal(t, all[:2], st.Applied)
		assert.Equal(t, all[2:], st.Pending)
	})

	t.Run("current", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{version: all[len(all)-1].Version}}
		st, err := m.Status()
		require.NoError(t, err)
		assert.Equal(t, all, st.Applied)
		assert.Empty(t, st.Pending)
	})

	t.Run("version error", func(t *testing.T) {
		m := &Migrator{m: &mockMigrate{versionErr: errors.New("down")}}
		_, err := m.Status()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}
