// Package sqliteexternal provides the optional CGO SQLite driver.
//
// Importing it registers github.com/mattn/go-sqlite3 under the name
// "sqlite3". core/sqlite does so when built with the cgo_sqlite tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/glycotorsion
//
// The default build uses the pure Go modernc.org/sqlite driver and needs no
// C toolchain. The CGO driver is faster when writing torsion series for
// long trajectories.
package sqliteexternal
