//go:build !querynerd_cgo

package store

import _ "modernc.org/sqlite"

// driverName is the database/sql driver the run store opens.
const driverName = "sqlite"

func dsn(path string) string {
	return "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
