//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqlite

import (
	sqliteexternal "github.com/FocuswithJustin/GlycoTorsion/contrib/sqlite-external"
)

const (
	driverName       = sqliteexternal.DriverName
	driverType       = sqliteexternal.DriverType
	driverPackage    = sqliteexternal.DriverPackage + " (via contrib/sqlite-external)"
	foreignKeysParam = "_foreign_keys=1"
)
