package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		name    string
		want    Dialect
		wantErr bool
	}{
		{name: "", want: DialectSQLite},
		{name: "sqlite", want: DialectSQLite},
		{name: "sqlite3", want: DialectSQLite},
		{name: "mysql", want: DialectMySQL},
		{name: "postgres", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDialect(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitDB_SQLite(t *testing.T) {
	ResetDB()
	t.Cleanup(ResetDB)

	dsn := filepath.Join(t.TempDir(), "positions.db")
	database, err := InitDB(DialectSQLite, dsn)
	require.NoError(t, err)

	assert.Same(t, database, GetDB())
	assert.Equal(t, DialectSQLite, GetDialect())

	var mode string
	require.NoError(t, database.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	_, err = database.Exec("INSERT INTO positions (room_id, pos_key, x, y) VALUES ('r', 'pos0', 1, 2)")
	require.NoError(t, err)

	// Later calls return the same connection, whatever they ask for.
	again, err := InitDB(DialectMySQL, "ignored")
	require.NoError(t, err)
	assert.Same(t, database, again)
	assert.Equal(t, DialectSQLite, GetDialect())
}

func TestInitDB_MySQLUnreachable(t *testing.T) {
	ResetDB()
	t.Cleanup(ResetDB)

	_, err := InitDB(DialectMySQL, "relay:relay@tcp(127.0.0.1:1)/relay?timeout=1s")
	require.Error(t, err)
	assert.Nil(t, GetDB())

	// The failure sticks until the singleton is reset.
	_, err = InitDB(DialectSQLite, filepath.Join(t.TempDir(), "positions.db"))
	assert.Error(t, err)

	ResetDB()
	_, err = InitDB(DialectSQLite, filepath.Join(t.TempDir(), "positions.db"))
	assert.NoError(t, err)
}

func TestResetDB(t *testing.T) {
	ResetDB()

	_, err := InitDB(DialectSQLite, filepath.Join(t.TempDir(), "positions.db"))
	require.NoError(t, err)
	require.NotNil(t, GetDB())

	ResetDB()
	assert.Nil(t, GetDB())
	assert.Equal(t, Dialect(""), GetDialect())
	assert.NoError(t, CloseDB())
}
