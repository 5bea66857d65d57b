// Package sqlite stores the ledger in a SQLite database (modernc.org/sqlite,
// no cgo) with its schema managed by golang-migrate.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"

	_ "modernc.org/sqlite"
)

// isoDate is the column format for dates; it sorts chronologically.
const isoDate = "2006-01-02"

var _ storage.Store = (*Store)(nil)

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the database file if needed, migrates it and returns a store.
// dbPath may be ":memory:" for a private in-memory database.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One long-lived connection serializes writers; with :memory: it is also
	// the only copy of the database, so it must never be recycled.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, logger: applog.OrDefault(logger)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, user_id, type, amount, category, date, description, payment_method
		FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t           core.Transaction
			typ, amount string
			date        string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &typ, &amount, &t.Category, &date, &t.Description, &t.PaymentMethod); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = core.TxType(typ)
		if t.Amount, err = core.ParseDecimal(amount); err != nil {
			s.corrupt("transactions", t.ID, err)
			continue
		}
		if t.Date, err = parseISO(date); err != nil {
			s.corrupt("transactions", t.ID, err)
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SaveTransactions(ctx context.Context, txns []core.Transaction) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO transactions (transaction_id, user_id, type, amount, category, date, description, payment_method)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txns {
			if _, err := stmt.ExecContext(ctx, t.ID, t.UserID, string(t.Type), t.Amount.String(),
				t.Category, formatISO(t.Date), t.Description, t.PaymentMethod); err != nil {
				return fmt.Errorf("insert transaction %s: %w", t.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) LoadGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, target, saved, contributions
		FROM goals WHERE user_id = ? ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g                           core.Goal
			target, saved, contribution string
		)
		if err := rows.Scan(&g.Name, &target, &saved, &contribution); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		if g.Target, err = core.ParseDecimal(target); err != nil {
			s.corrupt("goals", g.Name, err)
			continue
		}
		if g.Saved, err = core.ParseDecimal(saved); err != nil {
			s.corrupt("goals", g.Name, err)
			continue
		}
		if err := json.Unmarshal([]byte(contribution), &g.Contributions); err != nil {
			s.corrupt("goals", g.Name, err)
			continue
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) SaveGoals(ctx context.Context, userID string, goals []core.Goal) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear goals: %w", err)
		}
		for i, g := range goals {
			contrib, err := json.Marshal(nonNil(g.Contributions))
			if err != nil {
				return fmt.Errorf("encode contributions: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO goals (user_id, position, name, target, saved, contributions)
				VALUES (?, ?, ?, ?, ?, ?)`,
				userID, i, g.Name, g.Target.String(), g.Saved.String(), string(contrib)); err != nil {
				return fmt.Errorf("insert goal %q: %w", g.Name, err)
			}
		}
		return nil
	})
}

func (s *Store) LoadRecurring(ctx context.Context) ([]core.RecurringEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, type, amount, category, description, payment_method,
		       every, day, month, start_date, end_date, last_generated
		FROM recurring ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query recurring: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringEntry
	for rows.Next() {
		var (
			e                         core.RecurringEntry
			typ, every, amount        string
			start, end, lastGenerated string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &amount, &e.Category, &e.Description, &e.PaymentMethod,
			&every, &e.Day, &e.Month, &start, &end, &lastGenerated); err != nil {
			return nil, fmt.Errorf("scan recurring: %w", err)
		}
		e.Type = core.TxType(typ)
		e.Every = core.Frequency(every)
		if e.Amount, err = core.ParseDecimal(amount); err != nil {
			s.corrupt("recurring", e.ID, err)
			continue
		}
		if e.StartDate, err = parseISO(start); err != nil {
			s.corrupt("recurring", e.ID, err)
			continue
		}
		if e.EndDate, err = parseOptionalISO(end); err != nil {
			s.corrupt("recurring", e.ID, err)
			continue
		}
		if e.LastGenerated, err = parseOptionalISO(lastGenerated); err != nil {
			s.corrupt("recurring", e.ID, err)
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveRecurring(ctx context.Context, entries []core.RecurringEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM recurring`); err != nil {
			return fmt.Errorf("clear recurring: %w", err)
		}
		for _, e := range entries {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO recurring (id, user_id, type, amount, category, description, payment_method,
				                       every, day, month, start_date, end_date, last_generated)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				e.ID, e.UserID, string(e.Type), e.Amount.String(), e.Category, e.Description, e.PaymentMethod,
				string(e.Every), e.Day, e.Month, formatISO(e.StartDate), formatISO(e.EndDate), formatISO(e.LastGenerated)); err != nil {
				return fmt.Errorf("insert recurring %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// corrupt logs a row that could not be decoded; the row is skipped.
func (s *Store) corrupt(table, key string, err error) {
	s.logger.Warn("Skipping undecodable row",
		"table", table,
		"key", key,
		applog.FieldOperation, applog.OpLoad,
		applog.FieldError, fmt.Errorf("%w: %v", core.ErrCorruptData, err))
}

func formatISO(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format(isoDate)
}

func parseISO(s string) (core.Date, error) {
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return core.Date{}, err
	}
	return core.DateOf(t), nil
}

func parseOptionalISO(s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	return parseISO(s)
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
