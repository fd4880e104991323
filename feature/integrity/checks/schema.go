package checks

import (
	"fmt"
	"sort"
	"sync"

	"timeline-cache/core/cache"
	"timeline-cache/core/database"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// SchemaReport is the result of comparing the database against the cache models.
type SchemaReport struct {
	Driver  string                 `json:"driver"`
	Matched bool                   `json:"matched"`
	Tables  map[string]TableReport `json:"tables"`
	Errors  []string               `json:"errors"`
}

// TableReport lists what one table lacks.
type TableReport struct {
	MissingColumns []string `json:"missing_columns"`
	MissingIndexes []string `json:"missing_indexes"`
	Status         string   `json:"status"` // "ok", "missing", "error"
}

// CheckSchema verifies the cache tables using the gorm models as the source
// of truth: every mapped column must exist and every lookup index named by
// cache.Indexes must be present.
func CheckSchema(db *gorm.DB) (*SchemaReport, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	report := &SchemaReport{
		Driver:  db.Dialector.Name(),
		Matched: true,
		Tables:  make(map[string]TableReport),
		Errors:  []string{},
	}
	indexes := cache.Indexes()
	cacheSchemas := &sync.Map{}

	for _, m := range cache.Models() {
		sch, err := schema.Parse(m, cacheSchemas, db.NamingStrategy)
		if err != nil {
			return nil, fmt.Errorf("parse model %T: %w", m, err)
		}

		actual, err := database.GetTableColumns(db, sch.Table)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("inspect table %s: %v", sch.Table, err))
			report.Tables[sch.Table] = TableReport{Status: "error"}
			report.Matched = false
			continue
		}
		if len(actual) == 0 {
			report.Tables[sch.Table] = TableReport{Status: "missing"}
			report.Matched = false
			continue
		}

		present := make(map[string]struct{}, len(actual))
		for _, col := range actual {
			present[col.Field] = struct{}{}
		}

		tbl := TableReport{MissingColumns: []string{}, MissingIndexes: []string{}, Status: "ok"}
		for _, field := range sch.Fields {
			if field.DBName == "" {
				continue
			}
			if _, ok := present[field.DBName]; !ok {
				tbl.MissingColumns = append(tbl.MissingColumns, field.DBName)
			}
		}
		for _, idx := range indexes[sch.Table] {
			if !database.HasIndex(db, sch.Table, idx) {
				tbl.MissingIndexes = append(tbl.MissingIndexes, idx)
			}
		}
		sort.Strings(tbl.MissingColumns)

		if len(tbl.MissingColumns) > 0 || len(tbl.MissingIndexes) > 0 {
			tbl.Status = "error"
			report.Matched = false
		}
		report.Tables[sch.Table] = tbl
	}

	return report, nil
}
