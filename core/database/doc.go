// Package database opens the gorm connection backing the timeline cache.
//
// DATABASE_DRIVER picks the dialector: sqlite (default, a local file in WAL
// mode with a single connection so writers never contend), mysql (utf8mb4,
// UTC timestamps) or postgres. Connect pings before returning; the tables
// themselves are migrated by core/cache.
//
// GetTableColumns reads column metadata with each driver's own catalog query
// and HasIndex asks the gorm migrator; both back the integrity schema check.
package database
