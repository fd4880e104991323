package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ColumnInfo describes one column of a table, normalised across drivers.
type ColumnInfo struct {
	Field   string
	Type    string
	Null    string
	Key     string
	Default *string // Pointer because NULL default is possible
	Extra   string
}

// GetTableColumns retrieves the column definitions for a given table.
// A missing table yields an empty slice on SQLite and Postgres.
func GetTableColumns(db *gorm.DB, tableName string) ([]ColumnInfo, error) {
	var columns []ColumnInfo

	switch db.Dialector.Name() {
	case "sqlite":
		type sqliteColumn struct {
			Cid       int
			Name      string
			Type      string
			Notnull   int
			DfltValue *string
			Pk        int
		}
		var sqliteCols []sqliteColumn
		if err := db.Raw(fmt.Sprintf("PRAGMA table_info('%s')", tableName)).Scan(&sqliteCols).Error; err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		for _, col := range sqliteCols {
			info := ColumnInfo{
				Field:   strings.ToLower(col.Name),
				Type:    strings.ToLower(col.Type),
				Null:    "YES",
				Default: col.DfltValue,
			}
			if col.Notnull == 1 {
				info.Null = "NO"
			}
			if col.Pk > 0 {
				info.Key = "PRI"
			}
			columns = append(columns, info)
		}
		return columns, nil

	case "postgres":
		err := db.Raw(`SELECT column_name AS field, data_type AS type, is_nullable AS "null", column_default AS "default"
			FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = ? ORDER BY ordinal_position`, tableName).
			Scan(&columns).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}

	default:
		err := db.Raw(fmt.Sprintf("SHOW COLUMNS FROM `%s`", tableName)).Scan(&columns).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
	}

	for i := range columns {
		columns[i].Type = strings.ToLower(columns[i].Type)
		columns[i].Field = strings.ToLower(columns[i].Field)
	}
	return columns, nil
}

// HasIndex reports whether the named index exists on the table.
func HasIndex(db *gorm.DB, tableName, indexName string) bool {
	return db.Migrator().HasIndex(tableName, indexName)
}
