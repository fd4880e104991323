package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTableColumns(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, Path: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE test_items (id INTEGER PRIMARY KEY, name TEXT NOT NULL, description TEXT)").Error
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE INDEX idx_test_items_name ON test_items (name)").Error)

	columns, err := GetTableColumns(db, "test_items")
	require.NoError(t, err)
	assert.Len(t, columns, 3)

	byName := make(map[string]ColumnInfo)
	for _, col := range columns {
		byName[col.Field] = col
	}

	assert.Equal(t, "integer", byName["id"].Type)
	assert.Equal(t, "PRI", byName["id"].Key)
	assert.Equal(t, "text", byName["name"].Type)
	assert.Equal(t, "NO", byName["name"].Null)
	assert.Equal(t, "YES", byName["description"].Null)

	assert.True(t, HasIndex(db, "test_items", "idx_test_items_name"))
	assert.False(t, HasIndex(db, "test_items", "idx_missing"))

	// PRAGMA table_info returns an empty result for a missing table
	cols, err := GetTableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, cols)
}
