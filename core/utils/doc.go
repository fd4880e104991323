// Package utils converts loosely typed values scanned from raw SQL rows.
//
// Integrity checks read counts and flags with db.Raw(...).Scan(&[]map[string]any{}),
// whose value types depend on the driver. The helpers here normalise them.
package utils
