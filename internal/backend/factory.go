package backend

import (
	"context"
	"fmt"

	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
	"fintrack/internal/storage/file"
	"fintrack/internal/storage/memory"
	"fintrack/internal/storage/postgres"
	"fintrack/internal/storage/sqlite"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory derives the backend, storage and amqp loggers from logger's base,
// so each line carries a single component.
func NewFactory(logger *applog.Logger) Factory {
	return &DefaultFactory{
		logger: applog.OrNew(logger).WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend opens the configured store. An AMQP client that cannot
// connect is logged and skipped: the ledger works without events.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Store: store}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue,
			f.logger.WithComponent(applog.ComponentAMQP).Logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", applog.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Events = client
		}
	}
	return result, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (storage.Store, error) {
	storeLogger := f.logger.WithComponent(applog.ComponentStorage).Logger

	switch config.Type {
	case FileBackend:
		store, err := file.Open(config.DataDirectory, config.BackupRetention, file.WithLogger(storeLogger))
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		f.logger.Info("Initialized file backend", "data_directory", config.DataDirectory)
		return store, nil
	case SQLiteBackend:
		store, err := sqlite.Open(config.SQLiteDBPath, storeLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return store, nil
	case PostgresBackend:
		store, err := postgres.Open(ctx, config.DatabaseURL, storeLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		f.logger.Info("Initialized postgres backend")
		return store, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory backend")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
