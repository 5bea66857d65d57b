package backend

import (
	"context"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened store and, when AMQP is configured, the
// event client. Closing the store and the client is the caller's job.
type BackendResult struct {
	Store  storage.Store
	Events *amqp.Client
}

// Publisher returns Events as an EventPublisher, nil when AMQP is disabled.
func (r *BackendResult) Publisher() amqp.EventPublisher {
	if r.Events == nil {
		return nil
	}
	return r.Events
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File backend
	DataDirectory   string
	BackupRetention time.Duration

	// SQLite backend
	SQLiteDBPath string

	// Postgres backend
	DatabaseURL string

	// Optional ledger event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend     BackendType = "file"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
