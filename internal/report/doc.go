// Package report persists scheduler status messages.
//
// Every Initialize/Poll decision produces one Record. Drivers:
//   - "log":    writes records through logx
//   - "file":   append-only JSON Lines file
//   - "sqlite": SQLite table (modernc.org/sqlite, pure Go)
//
// Several drivers can be active at once; Multi fans out to all of them.
package report
