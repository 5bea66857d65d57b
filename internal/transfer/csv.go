// Package transfer moves transactions in and out of the ledger as CSV, and
// exports them to Google Sheets.
package transfer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/ledger"
	applog "fintrack/internal/log"
)

// ErrMissingColumn is returned when an import header lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Ledger is the part of the ledger an import needs.
type Ledger interface {
	Snapshot() []core.Transaction
	Add(ctx context.Context, tx core.Transaction, opts ...ledger.AddOption) (core.Transaction, error)
}

// ExportCSV writes userID's transactions as a header row followed by one row
// per transaction, in core.CSVHeader order.
func ExportCSV(w io.Writer, userID string, txns []core.Transaction) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.CSVHeader); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	n := 0
	for _, tx := range txns {
		if tx.UserID != userID {
			continue
		}
		if err := cw.Write(tx.Record()); err != nil {
			return n, fmt.Errorf("write %s: %w", tx.ID, err)
		}
		n++
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("flush csv: %w", err)
	}
	return n, nil
}

// RowError reports a rejected import row.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ImportResult summarizes an import.
type ImportResult struct {
	Added      int
	Duplicates int
	Rejected   []RowError
}

// ImportCSV adds the rows of r to l as transactions owned by userID. The file
// must start with a header naming at least type, amount, category, date and
// payment_method; transaction_id and user_id columns are ignored because the
// ledger assigns IDs and the importing user owns every row.
//
// A row is a duplicate, and skipped, when a transaction with the same user,
// date, amount and category already exists, including one added earlier from
// the same file. Rows that fail validation are collected in Rejected and the
// import continues. Only a persistence failure stops the import.
func ImportCSV(ctx context.Context, r io.Reader, userID string, l Ledger, logger *slog.Logger) (ImportResult, error) {
	logger = applog.OrDefault(logger)
	var res ImportResult

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return res, err
	}

	seen := map[dedupeKey]struct{}{}
	for _, tx := range l.Snapshot() {
		if tx.UserID == userID {
			seen[keyOf(tx)] = struct{}{}
		}
	}

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return res, fmt.Errorf("read csv: %w", err)
			}
			res.Rejected = append(res.Rejected, RowError{Line: perr.Line, Err: err})
			continue
		}
		line, _ := cr.FieldPos(0)
		if isBlank(record) {
			continue
		}

		tx, err := cols.parse(record, userID)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err})
			continue
		}
		key := keyOf(tx)
		if _, dup := seen[key]; dup {
			res.Duplicates++
			continue
		}

		added, err := l.Add(ctx, tx)
		if err != nil && added.ID == "" {
			var perr *core.PersistenceError
			if errors.As(err, &perr) {
				return res, err
			}
			res.Rejected = append(res.Rejected, RowError{Line: line, Err: err})
			continue
		}
		seen[key] = struct{}{}
		res.Added++
	}

	logger.InfoContext(ctx, "CSV import finished",
		applog.FieldOperation, applog.OpImport,
		applog.FieldUserID, userID,
		applog.FieldCount, res.Added,
		"duplicates", res.Duplicates,
		"rejected", len(res.Rejected))
	return res, nil
}

type dedupeKey struct {
	user, date, amount, category string
}

// keyOf normalizes the fields that identify a transaction for dedupe: amounts
// compare numerically and categories ignore case.
func keyOf(tx core.Transaction) dedupeKey {
	return dedupeKey{
		user:     tx.UserID,
		date:     tx.Date.String(),
		amount:   tx.Amount.String(),
		category: strings.ToLower(strings.TrimSpace(tx.Category)),
	}
}

type columns map[string]int

var requiredColumns = []string{"type", "amount", "category", "date", "payment_method"}

func columnIndex(header []string) (columns, error) {
	cols := columns{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	return cols, nil
}

func (c columns) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columns) parse(record []string, userID string) (core.Transaction, error) {
	typ, err := core.ParseTxType(c.get(record, "type"))
	if err != nil {
		return core.Transaction{}, err
	}
	amount, err := core.ParseAmount(c.get(record, "amount"))
	if err != nil {
		return core.Transaction{}, err
	}
	date, err := core.ParseDate(c.get(record, "date"))
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		UserID:        userID,
		Type:          typ,
		Amount:        amount,
		Category:      c.get(record, "category"),
		Date:          date,
		Description:   c.get(record, "description"),
		PaymentMethod: c.get(record, "payment_method"),
	}
	return tx, tx.Validate()
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
