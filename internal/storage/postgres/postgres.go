// Package postgres stores the ledger in PostgreSQL through a pgx connection
// pool. Amounts are NUMERIC columns and travel as text, so they stay exact.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

const isoDate = "2006-01-02"

var _ storage.Store = (*Store)(nil)

type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open migrates the database and connects a pool to it.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: applog.OrDefault(logger)}, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) LoadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transaction_id, user_id, type, amount::text, category,
		       to_char(date, 'YYYY-MM-DD'), description, payment_method
		FROM transactions ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t                 core.Transaction
			typ, amount, date string
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
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("clear transactions: %w", err)
		}
		batch := &pgx.Batch{}
		for _, t := range txns {
			batch.Queue(`
				INSERT INTO transactions (transaction_id, user_id, type, amount, category, date, description, payment_method)
				VALUES ($1, $2, $3, $4::numeric, $5, $6::date, $7, $8)`,
				t.ID, t.UserID, string(t.Type), t.Amount.String(), t.Category, formatISO(t.Date), t.Description, t.PaymentMethod)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadGoals(ctx context.Context, userID string) ([]core.Goal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, target::text, saved::text, contributions::text
		FROM goals WHERE user_id = $1 ORDER BY position`, userID)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []core.Goal
	for rows.Next() {
		var (
			g                  core.Goal
			target, saved, ids string
		)
		if err := rows.Scan(&g.Name, &target, &saved, &ids); err != nil {
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
		if err := json.Unmarshal([]byte(ids), &g.Contributions); err != nil {
			s.corrupt("goals", g.Name, err)
			continue
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) SaveGoals(ctx context.Context, userID string, goals []core.Goal) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM goals WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear goals: %w", err)
		}
		batch := &pgx.Batch{}
		for i, g := range goals {
			ids := g.Contributions
			if ids == nil {
				ids = []string{}
			}
			contrib, err := json.Marshal(ids)
			if err != nil {
				return fmt.Errorf("encode contributions: %w", err)
			}
			batch.Queue(`
				INSERT INTO goals (user_id, position, name, target, saved, contributions)
				VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::jsonb)`,
				userID, i, g.Name, g.Target.String(), g.Saved.String(), string(contrib))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert goals: %w", err)
		}
		return nil
	})
}

func (s *Store) LoadRecurring(ctx context.Context) ([]core.RecurringEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, amount::text, category, description, payment_method, every, day, month,
		       to_char(start_date, 'YYYY-MM-DD'),
		       COALESCE(to_char(end_date, 'YYYY-MM-DD'), ''),
		       COALESCE(to_char(last_generated, 'YYYY-MM-DD'), '')
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
		if end != "" {
			if e.EndDate, err = parseISO(end); err != nil {
				s.corrupt("recurring", e.ID, err)
				continue
			}
		}
		if lastGenerated != "" {
			if e.LastGenerated, err = parseISO(lastGenerated); err != nil {
				s.corrupt("recurring", e.ID, err)
				continue
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) SaveRecurring(ctx context.Context, entries []core.RecurringEntry) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM recurring`); err != nil {
			return fmt.Errorf("clear recurring: %w", err)
		}
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`
				INSERT INTO recurring (id, user_id, type, amount, category, description, payment_method,
				                       every, day, month, start_date, end_date, last_generated)
				VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11::date, $12::date, $13::date)`,
				e.ID, e.UserID, string(e.Type), e.Amount.String(), e.Category, e.Description, e.PaymentMethod,
				string(e.Every), e.Day, e.Month, formatISO(e.StartDate), nullableISO(e.EndDate), nullableISO(e.LastGenerated))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert recurring: %w", err)
		}
		return nil
	})
}

func (s *Store) corrupt(table, key string, err error) {
	s.logger.Warn("Skipping undecodable row",
		"table", table,
		"key", key,
		applog.FieldOperation, applog.OpLoad,
		applog.FieldError, fmt.Errorf("%w: %v", core.ErrCorruptData, err))
}

func formatISO(d core.Date) string {
	return d.Format(isoDate)
}

func nullableISO(d core.Date) any {
	if d.IsZero() {
		return nil
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
