// Package backend assembles the REST backend's ledger from configuration:
// it opens the selected store, connects the optional event publisher and
// hands both to services.Ledger.
package backend

import (
	"time"

	"wallet/internal/services"
)

// CleanupFunc releases what a Result holds.
type CleanupFunc func() error

// Result contains the ledger and the function that closes it.
type Result struct {
	Ledger  *services.Ledger
	Cleanup CleanupFunc
	// EventsEnabled is false when no AMQP URL was set or the broker could
	// not be reached at startup.
	EventsEnabled bool
}

// Config holds configuration for backend creation.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresDSN string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// CacheTTL of the ledger's list caches; zero disables them.
	CacheTTL time.Duration
}

// Type names a storage backend.
type Type string

const (
	MemoryBackend   Type = "memory"
	SQLiteBackend   Type = "sqlite"
	PostgresBackend Type = "postgres"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known
func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
