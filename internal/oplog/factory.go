package oplog

import (
	"fmt"
	"os"
)

// Driver identifies a concrete log backend.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-memory only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file (default)
	DriverPostgres Driver = "postgres" // PostgreSQL server
)

// Open selects a backend for the project at path using environment
// variables. Defaults to sqlite with the project path as the database file.
//
//	REELCORE_LOG_DRIVER: memory|sqlite|postgres (default sqlite)
//	REELCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func Open(path string) (Log, error) {
	driver := Driver(os.Getenv("REELCORE_LOG_DRIVER"))
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverMemory:
		return NewMemoryLog(), nil
	case DriverSQLite:
		return OpenSQLite(path)
	case DriverPostgres:
		return OpenPostgres(os.Getenv("REELCORE_POSTGRES_DSN"), path)
	default:
		return nil, fmt.Errorf("unknown log driver %s", driver)
	}
}
