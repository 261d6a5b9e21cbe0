//go:build querynerd_cgo

package store

import _ "github.com/mattn/go-sqlite3"

// driverName is the database/sql driver the run store opens.
const driverName = "sqlite3"

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}
