// Package integrity checks the health of the cache database and the snapshot bucket.
//
// # Checks Provided
//
//   - Schema: every column of the cache models exists and the lookup indexes are present.
//   - Consistency: row counts, edges whose source status is gone, bucket entries
//     without their status row, unknown content kinds, users whose full flag
//     disagrees with their content kind, and orphan users.
//   - Storage: the snapshot bucket exists and only holds objects named by an export.
//
// # HTTP Endpoints
//
//   - GET /integrity : Runs all checks.
//   - GET /integrity/schema : Runs the schema check.
//   - GET /integrity/consistency : Runs the consistency check (supports ?fix=true&users=true).
//   - GET /integrity/storage : Runs the storage check (supports ?fix=true).
package integrity
