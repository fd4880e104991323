package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// deref unwraps the *interface{} gorm stores for untyped columns such as
// COUNT(*) on SQLite.
func deref(val any) any {
	for {
		p, ok := val.(*any)
		if !ok {
			return val
		}
		if p == nil {
			return nil
		}
		val = *p
	}
}

// Int64 converts a scanned column value to int64. Drivers disagree on the
// representation of counts and flags: SQLite and Postgres hand out int64,
// MySQL hands out []byte. Unparseable values yield 0.
func Int64(val any) int64 {
	switch v := deref(val).(type) {
	case nil:
		return 0
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case uint8:
		return int64(v)
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		i, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i
	case []byte:
		i, _ := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return i
	default:
		i, _ := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		return i
	}
}

// String converts a scanned column value to string. NULL becomes "".
func String(val any) string {
	switch v := deref(val).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// Bool converts a scanned boolean column. SQLite stores booleans as 0/1,
// MySQL as tinyint, Postgres as a native bool.
func Bool(val any) bool {
	switch v := deref(val).(type) {
	case bool:
		return v
	case string:
		return parseBool(v)
	case []byte:
		return parseBool(string(v))
	default:
		return Int64(v) != 0
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes":
		return true
	}
	return false
}

// Column looks a value up in a raw row by column name, ignoring case.
// Postgres folds unquoted aliases to lower case; MySQL keeps them as written.
func Column(row map[string]any, name string) any {
	if v, ok := row[name]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}
