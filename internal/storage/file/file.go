// Package file stores the ledger as JSON documents in a data directory, keeps
// a CSV mirror of the transactions and copies every saved file into a
// timestamped backup.
package file

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/storage"
)

const (
	TransactionsFile = "transactions.json"
	TransactionsCSV  = "transactions.csv"
	GoalsFile        = "goals.json"
	RecurringFile    = "recurring.json"
	BackupDir        = "backup"

	backupStamp = "20060102_150405"
	backupExt   = ".bak"
)

var _ storage.Store = (*Store)(nil)

type Store struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Store)

// WithLogger sets the logger used for warnings about corrupt documents.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open prepares dir and its backup directory, then removes backups older than
// retention. A retention of zero keeps every backup.
func Open(dir string, retention time.Duration, opts ...Option) (*Store, error) {
	s := &Store{dir: dir, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := os.MkdirAll(filepath.Join(dir, BackupDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if retention > 0 {
		if _, err := s.CleanupBackups(retention); err != nil {
			s.logger.Warn("Backup cleanup failed",
				applog.FieldOperation, applog.OpCleanup,
				applog.FieldError, err)
		}
	}
	return s, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) LoadTransactions(_ context.Context) ([]core.Transaction, error) {
	var txns []core.Transaction
	if err := s.readJSON(TransactionsFile, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// SaveTransactions writes the JSON document and the CSV mirror concurrently
// and only renames them into place once both were written.
func (s *Store) SaveTransactions(ctx context.Context, txns []core.Transaction) error {
	if txns == nil {
		txns = []core.Transaction{}
	}
	doc, err := json.MarshalIndent(txns, "", "    ")
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}

	var jsonTmp, csvTmp string
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jsonTmp, err = s.writeTemp(TransactionsFile, doc)
		return err
	})
	g.Go(func() error {
		var buf bytes.Buffer
		if err := writeCSV(&buf, txns); err != nil {
			return fmt.Errorf("encode csv mirror: %w", err)
		}
		var err error
		csvTmp, err = s.writeTemp(TransactionsCSV, buf.Bytes())
		return err
	})
	if err := g.Wait(); err != nil {
		removeAll(jsonTmp, csvTmp)
		return err
	}

	if err := os.Rename(jsonTmp, s.path(TransactionsFile)); err != nil {
		removeAll(jsonTmp, csvTmp)
		return fmt.Errorf("replace %s: %w", TransactionsFile, err)
	}
	if err := os.Rename(csvTmp, s.path(TransactionsCSV)); err != nil {
		removeAll(csvTmp)
		return fmt.Errorf("replace %s: %w", TransactionsCSV, err)
	}

	s.backup(TransactionsFile)
	s.backup(TransactionsCSV)
	return nil
}

func (s *Store) LoadGoals(_ context.Context, userID string) ([]core.Goal, error) {
	all, err := s.loadGoalDoc()
	if err != nil {
		return nil, err
	}
	return all[userID], nil
}

func (s *Store) SaveGoals(_ context.Context, userID string, goals []core.Goal) error {
	all, err := s.loadGoalDoc()
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		delete(all, userID)
	} else {
		all[userID] = goals
	}
	return s.writeJSON(GoalsFile, all)
}

func (s *Store) LoadRecurring(_ context.Context) ([]core.RecurringEntry, error) {
	var entries []core.RecurringEntry
	if err := s.readJSON(RecurringFile, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) SaveRecurring(_ context.Context, entries []core.RecurringEntry) error {
	if entries == nil {
		entries = []core.RecurringEntry{}
	}
	return s.writeJSON(RecurringFile, entries)
}

// CleanupBackups deletes backup files whose modification time is older than
// retention and returns how many were removed.
func (s *Store) CleanupBackups(retention time.Duration) (int, error) {
	dir := filepath.Join(s.dir, BackupDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read backup directory: %w", err)
	}

	cutoff := s.now().Add(-retention)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), backupExt) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return deleted, fmt.Errorf("remove backup %s: %w", e.Name(), err)
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info("Deleted old backups",
			applog.FieldOperation, applog.OpCleanup,
			applog.FieldCount, deleted)
	}
	return deleted, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) loadGoalDoc() (map[string][]core.Goal, error) {
	all := map[string][]core.Goal{}
	if err := s.readJSON(GoalsFile, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = map[string][]core.Goal{}
	}
	return all, nil
}

// readJSON decodes name into v. A missing file leaves v untouched; a corrupt
// one is logged and v is reset to its zero value.
func (s *Store) readJSON(name string, v any) error {
	b, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		s.logger.Warn("Could not read stored document, starting empty",
			applog.FieldPath, s.path(name),
			applog.FieldOperation, applog.OpLoad,
			applog.FieldError, fmt.Errorf("%w: %v", core.ErrCorruptData, err))
		resetZero(v)
	}
	return nil
}

func (s *Store) writeJSON(name string, v any) error {
	doc, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := s.writeTemp(name, doc)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		removeAll(tmp)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	s.backup(name)
	return nil
}

// writeTemp writes data to a synced temporary file next to name.
func (s *Store) writeTemp(name string, data []byte) (string, error) {
	f, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file for %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return f.Name(), nil
}

// backup copies name into the backup directory as name_YYYYMMDD_HHMMSS.bak.
// Failures are logged; the save itself already succeeded.
func (s *Store) backup(name string) {
	target := filepath.Join(s.dir, BackupDir, BackupName(name, s.now()))
	if err := copyFile(s.path(name), target); err != nil {
		s.logger.Warn("Backup failed",
			applog.FieldPath, target,
			applog.FieldOperation, applog.OpBackup,
			applog.FieldError, err)
	}
}

// BackupName is the file name used for a backup of name taken at t.
func BackupName(name string, t time.Time) string {
	return name + "_" + t.Format(backupStamp) + backupExt
}

func writeCSV(w io.Writer, txns []core.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.CSVHeader); err != nil {
		return err
	}
	for _, t := range txns {
		if err := cw.Write(t.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeAll(paths ...string) {
	for _, p := range paths {
		if p != "" {
			os.Remove(p)
		}
	}
}

func resetZero(v any) {
	switch p := v.(type) {
	case *[]core.Transaction:
		*p = nil
	case *[]core.RecurringEntry:
		*p = nil
	case *map[string][]core.Goal:
		*p = map[string][]core.Goal{}
	}
}
