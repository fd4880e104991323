// Package snapshot exports the cache rows of one account to object storage
// and restores them.
//
// A snapshot is a JSON lines object: a header line naming the account, one
// line per user, status, reference and paging entry row, and a footer line
// with the row counts. Import rejects objects whose footer is missing or
// disagrees with the rows read, so a truncated upload is never half applied.
//
// Objects are named <prefix><escaped account>/<UTC timestamp>.jsonl and are
// rotated after each export, keeping the newest Config.Keep per account.
package snapshot
