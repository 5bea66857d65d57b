package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
	"fintrack/internal/goals"
	"fintrack/internal/report"
	"fintrack/internal/services"
)

var errUsage = errors.New("usage")

type sheetExporter interface {
	Export(ctx context.Context, userID string, txns []core.Transaction) (int, error)
}

type runner struct {
	svc    *services.FinanceService
	out    io.Writer
	now    func() time.Time
	sheets func(ctx context.Context) (sheetExporter, error)
}

func usage(w io.Writer) {
	fmt.Fprint(w, `usage: fintrack <command> [flags]

Transactions:
  add          -user -type income|expense -amount -category -date dd/mm/yyyy -payment [-desc] [-goal]
  list         -user [-category] [-from] [-to] [-min] [-max] [-sort date|amount] [-order asc|desc]
  update       -user -id [-type] [-amount] [-category] [-date] [-desc] [-payment]
  delete       -user -id

Reports:
  summary      -user
  monthly      -user -year -month
  categories   -user
  trends       -user
  last-months  -user [-n 12]

Goals:
  goal set     -user -name -target
  goal list    -user

Recurring entries:
  recurring add     -user -type -amount -category -payment -every monthly|yearly -day [-month] -start [-end] [-desc]
  recurring list    -user
  recurring remove  -user -id
  recurring run

Transfer:
  export       -user [-out file.csv] [-sheets]
  import       -user -file file.csv
`)
}

func (r *runner) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "add":
		return r.add(ctx, rest)
	case "list":
		return r.list(rest)
	case "update":
		return r.update(ctx, rest)
	case "delete":
		return r.delete(ctx, rest)
	case "summary":
		return r.summary(rest)
	case "monthly":
		return r.monthly(rest)
	case "categories":
		return r.categories(rest)
	case "trends":
		return r.trends(rest)
	case "last-months":
		return r.lastMonths(rest)
	case "goal":
		return r.goal(ctx, rest)
	case "recurring":
		return r.recurring(ctx, rest)
	case "export":
		return r.export(ctx, rest)
	case "import":
		return r.importCSV(ctx, rest)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

func requireUser(fs *flag.FlagSet, user string) error {
	if strings.TrimSpace(user) == "" {
		return fmt.Errorf("%w: %s: -user is required", errUsage, fs.Name())
	}
	return nil
}

func (r *runner) add(ctx context.Context, args []string) error {
	fs := newFlagSet("add")
	user := fs.String("user", "", "user id")
	typ := fs.String("type", "", "income or expense")
	amount := fs.String("amount", "", "amount")
	category := fs.String("category", "", "category")
	date := fs.String("date", "", "date dd/mm/yyyy (default today)")
	desc := fs.String("desc", "", "description")
	payment := fs.String("payment", "", "payment method")
	goal := fs.String("goal", "", "savings goal for savings expenses")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	tx := core.Transaction{
		UserID:        *user,
		Category:      *category,
		Description:   *desc,
		PaymentMethod: *payment,
	}
	var err error
	if tx.Type, err = core.ParseTxType(*typ); err != nil {
		return err
	}
	if tx.Amount, err = core.ParseAmount(*amount); err != nil {
		return err
	}
	if strings.TrimSpace(*date) == "" {
		tx.Date = core.DateOf(r.now())
	} else if tx.Date, err = core.ParseDate(*date); err != nil {
		return err
	}

	added, err := r.svc.AddTransaction(ctx, tx, *goal)
	if errors.Is(err, goals.ErrGoalSelectionRequired) {
		return fmt.Errorf("%w: choose one with -goal (%s)", err, r.goalNames(ctx, *user))
	}
	if err != nil && added.ID == "" {
		return err
	}
	fmt.Fprintf(r.out, "added %s\n", added.ID)
	// A committed transaction with a failed hook still reports the failure.
	return err
}

func (r *runner) goalNames(ctx context.Context, userID string) string {
	active, err := r.svc.Goals(ctx, userID)
	if err != nil {
		return "goals unavailable"
	}
	names := make([]string, len(active))
	for i, p := range active {
		names[i] = p.Goal.Name
	}
	return strings.Join(names, ", ")
}

func (r *runner) list(args []string) error {
	fs := newFlagSet("list")
	user := fs.String("user", "", "user id")
	category := fs.String("category", "", "only this category")
	from := fs.String("from", "", "start date dd/mm/yyyy")
	to := fs.String("to", "", "end date dd/mm/yyyy")
	minAmount := fs.String("min", "", "minimum amount")
	maxAmount := fs.String("max", "", "maximum amount")
	sortKey := fs.String("sort", "", "date or amount")
	order := fs.String("order", "", "asc or desc")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}

	txns := r.svc.Transactions(*user)
	if *category != "" {
		txns = report.FilterByCategory(txns, *category)
	}
	if *from != "" || *to != "" {
		start, end := dateRange(*from, *to)
		var err error
		if txns, err = report.FilterByDateRange(txns, start, end); err != nil {
			return err
		}
	}
	if *minAmount != "" || *maxAmount != "" {
		lo, hi, err := amountRange(*minAmount, *maxAmount)
		if err != nil {
			return err
		}
		if txns, err = report.FilterByAmountRange(txns, lo, hi); err != nil {
			return err
		}
	}
	if *sortKey != "" {
		key, err := report.ParseSortKey(*sortKey)
		if err != nil {
			return err
		}
		dir, err := report.ParseDirection(*order)
		if err != nil {
			return err
		}
		txns = report.Sort(txns, key, dir)
	}

	writeTransactions(r.out, txns)
	return nil
}

// unbounded stands in for a missing upper amount bound.
var unbounded = core.NewMoney(decimal.New(1, 18))

// amountRange parses optional bounds; a missing bound is open.
// dateRange fills a missing date bound with the earliest or latest date.
func dateRange(from, to string) (string, string) {
	if from == "" {
		from = "01/01/0001"
	}
	if to == "" {
		to = "31/12/9999"
	}
	return from, to
}

func amountRange(lower, upper string) (core.Money, core.Money, error) {
	var lo, hi core.Money
	var err error
	if lower != "" {
		if lo, err = core.ParseDecimal(lower); err != nil {
			return lo, hi, err
		}
	}
	if upper == "" {
		return lo, unbounded, nil
	}
	hi, err = core.ParseDecimal(upper)
	return lo, hi, err
}

func writeTransactions(w io.Writer, txns []core.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tPAYMENT\tDESCRIPTION")
	for _, tx := range txns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.ID, tx.Date, tx.Type, tx.Amount.Display(), tx.Category, tx.PaymentMethod, tx.Description)
	}
	tw.Flush()
}

func (r *runner) update(ctx context.Context, args []string) error {
	fs := newFlagSet("update")
	user := fs.String("user", "", "user id")
	id := fs.String("id", "", "transaction id")
	typ := fs.String("type", "", "income or expense")
	amount := fs.String("amount", "", "amount")
	category := fs.String("category", "", "category")
	date := fs.String("date", "", "date dd/mm/yyyy")
	desc := fs.String("desc", "", "description")
	payment := fs.String("payment", "", "payment method")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: update: -id is required", errUsage)
	}

	// Only flags given on the command line are changed.
	var patch core.TransactionPatch
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "type":
			var t core.TxType
			if t, err = core.ParseTxType(*typ); err == nil {
				patch.Type = &t
			}
		case "amount":
			var m core.Money
			if m, err = core.ParseAmount(*amount); err == nil {
				patch.Amount = &m
			}
		case "category":
			patch.Category = category
		case "date":
			var d core.Date
			if d, err = core.ParseDate(*date); err == nil {
				patch.Date = &d
			}
		case "desc":
			patch.Description = desc
		case "payment":
			patch.PaymentMethod = payment
		}
	})
	if err != nil {
		return err
	}

	ok, err := r.svc.UpdateTransaction(ctx, *user, *id, patch)
	if !ok && err == nil {
		return fmt.Errorf("transaction %s not found", *id)
	}
	if ok {
		fmt.Fprintf(r.out, "updated %s\n", *id)
	}
	return err
}

func (r *runner) delete(ctx context.Context, args []string) error {
	fs := newFlagSet("delete")
	user := fs.String("user", "", "user id")
	id := fs.String("id", "", "transaction id")
	if err := parse(fs, args); err != nil {
		return err
	}
	if err := requireUser(fs, *user); err != nil {
		return err
	}
	ok, err := r.svc.DeleteTransaction(ctx, *user, *id)
	if !ok && err == nil {
		return fmt.Errorf("transaction %s not found", *id)
	}
	if ok {
		fmt.Fprintf(r.out, "deleted %s\n", *id)
	}
	return err
}

func (r *runner) userFlags(name string, args []string) (*flag.FlagSet, *string, func() error) {
	fs := newFlagSet(name)
	user := fs.String("user", "", "user id")
	return fs, user, func() error {
		if err := parse(fs, args); err != nil {
			return err
		}
		return requireUser(fs, *user)
	}
}

func (r *runner) summary(args []string) error {
	_, user, parseArgs := r.userFlags("summary", args)
	if err := parseArgs(); err != nil {
		return err
	}
	s := report.DashboardSummary(r.svc.Snapshot(), *user)
	writeTotals(r.out, s.Totals)
	fmt.Fprintf(r.out, "Transactions: %d\n", s.Count)
	return nil
}

func writeTotals(w io.Writer, t core.Totals) {
	fmt.Fprintf(w, "Income:  %s\nExpense: %s\nBalance: %s\n",
		t.Income.Display(), t.Expense.Display(), t.Balance.Display())
}

func (r *runner) monthly(args []string) error {
	fs, user, parseArgs := r.userFlags("monthly", args)
	now := r.now()
	year := fs.Int("year", now.Year(), "year")
	month := fs.Int("month", int(now.Month()), "month 1-12")
	if err := parseArgs(); err != nil {
		return err
	}
	m, err := report.MonthlyReport(r.svc.Snapshot(), *user, *year, *month)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Report for %04d-%02d\n", m.Year, m.Month)
	writeTotals(r.out, m.Totals)
	writeTransactions(r.out, m.Transactions)
	return nil
}

func (r *runner) categories(args []string) error {
	_, user, parseArgs := r.userFlags("categories", args)
	if err := parseArgs(); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tINCOME\tEXPENSE")
	for _, c := range report.CategoryBreakdown(r.svc.Snapshot(), *user) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Income.Display(), c.Expense.Display())
	}
	return tw.Flush()
}

func (r *runner) trends(args []string) error {
	_, user, parseArgs := r.userFlags("trends", args)
	if err := parseArgs(); err != nil {
		return err
	}
	writeMonths(r.out, report.SpendingTrends(r.svc.Snapshot(), *user))
	return nil
}

func (r *runner) lastMonths(args []string) error {
	fs, user, parseArgs := r.userFlags("last-months", args)
	n := fs.Int("n", 12, "number of months")
	if err := parseArgs(); err != nil {
		return err
	}
	writeMonths(r.out, report.LastMonths(r.svc.Snapshot(), *user, core.DateOf(r.now()), *n))
	return nil
}

func writeMonths(w io.Writer, months []core.MonthAmount) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MONTH\tEXPENSE")
	for _, m := range months {
		fmt.Fprintf(tw, "%s\t%s\n", m.Month, m.Amount.Display())
	}
	tw.Flush()
}

func (r *runner) goal(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: goal needs set or list", errUsage)
	}
	switch args[0] {
	case "set":
		fs, user, parseArgs := r.userFlags("goal set", args[1:])
		name := fs.String("name", "", "goal name")
		target := fs.String("target", "", "target amount")
		if err := parseArgs(); err != nil {
			return err
		}
		amount, err := core.ParseDecimal(*target)
		if err != nil {
			return err
		}
		p, err := r.svc.SetGoal(ctx, *user, *name, amount)
		if err != nil {
			return err
		}
		writeProgress(r.out, []goals.Progress{p})
		return nil
	case "list":
		_, user, parseArgs := r.userFlags("goal list", args[1:])
		if err := parseArgs(); err != nil {
			return err
		}
		active, err := r.svc.Goals(ctx, *user)
		if err != nil {
			return err
		}
		writeProgress(r.out, active)
		return nil
	default:
		return fmt.Errorf("%w: unknown goal command %q", errUsage, args[0])
	}
}

func writeProgress(w io.Writer, progress []goals.Progress) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GOAL\tTARGET\tSAVED\tREMAINING\tPROGRESS")
	for _, p := range progress {
		status := p.Pct.StringFixed(1) + "%"
		if p.Completed {
			status += " completed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.Goal.Name, p.Goal.Target.Display(), p.Goal.Saved.Display(), p.Remaining.Display(), status)
	}
	tw.Flush()
}

func (r *runner) recurring(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: recurring needs add, list, remove or run", errUsage)
	}
	switch args[0] {
	case "add":
		return r.recurringAdd(ctx, args[1:])
	case "list":
		_, user, parseArgs := r.userFlags("recurring list", args[1:])
		if err := parseArgs(); err != nil {
			return err
		}
		entries, err := r.svc.RecurringEntries(ctx, *user)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tEVERY\tDAY\tMONTH\tTYPE\tAMOUNT\tCATEGORY\tSTART\tEND\tLAST")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.Every, e.Day, e.Month, e.Type, e.Amount.Display(), e.Category,
				e.StartDate, e.EndDate, e.LastGenerated)
		}
		return tw.Flush()
	case "remove":
		fs, user, parseArgs := r.userFlags("recurring remove", args[1:])
		id := fs.String("id", "", "recurring entry id")
		if err := parseArgs(); err != nil {
			return err
		}
		ok, err := r.svc.RemoveRecurring(ctx, *user, *id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("recurring entry %s not found", *id)
		}
		fmt.Fprintf(r.out, "removed %s\n", *id)
		return nil
	case "run":
		n, err := r.svc.ProcessRecurring(ctx, r.now())
		if n > 0 || err == nil {
			fmt.Fprintf(r.out, "created %d transactions\n", n)
		}
		return err
	default:
		return fmt.Errorf("%w: unknown recurring command %q", errUsage, args[0])
	}
}

func (r *runner) recurringAdd(ctx context.Context, args []string) error {
	fs, user, parseArgs := r.userFlags("recurring add", args)
	typ := fs.String("type", "", "income or expense")
	amount := fs.String("amount", "", "amount")
	category := fs.String("category", "", "category")
	desc := fs.String("desc", "", "description")
	payment := fs.String("payment", "", "payment method")
	every := fs.String("every", "monthly", "monthly or yearly")
	day := fs.Int("day", 0, "day of month 1-31")
	month := fs.Int("month", 0, "month 1-12 (yearly only)")
	start := fs.String("start", "", "start date dd/mm/yyyy (default today)")
	end := fs.String("end", "", "optional end date dd/mm/yyyy")
	if err := parseArgs(); err != nil {
		return err
	}

	e := core.RecurringEntry{
		UserID:        *user,
		Category:      *category,
		Description:   *desc,
		PaymentMethod: *payment,
		Day:           *day,
		Month:         *month,
	}
	var err error
	if e.Type, err = core.ParseTxType(*typ); err != nil {
		return err
	}
	if e.Amount, err = core.ParseAmount(*amount); err != nil {
		return err
	}
	if e.Every, err = core.ParseFrequency(*every); err != nil {
		return err
	}
	if *start == "" {
		e.StartDate = core.DateOf(r.now())
	} else if e.StartDate, err = core.ParseDate(*start); err != nil {
		return err
	}
	if *end != "" {
		if e.EndDate, err = core.ParseDate(*end); err != nil {
			return err
		}
	}

	added, err := r.svc.AddRecurring(ctx, e)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "added %s\n", added.ID)
	return nil
}

func (r *runner) export(ctx context.Context, args []string) error {
	fs, user, parseArgs := r.userFlags("export", args)
	out := fs.String("out", "", "CSV file (default stdout)")
	toSheets := fs.Bool("sheets", false, "export to Google Sheets instead of CSV")
	if err := parseArgs(); err != nil {
		return err
	}

	if *toSheets {
		exp, err := r.sheets(ctx)
		if err != nil {
			return err
		}
		n, err := exp.Export(ctx, *user, r.svc.Snapshot())
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "exported %d transactions to Google Sheets\n", n)
		return nil
	}

	if *out == "" {
		_, err := r.svc.ExportCSV(r.out, *user)
		return err
	}
	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	n, err := r.svc.ExportCSV(f, *user)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "exported %d transactions to %s\n", n, *out)
	return nil
}

func (r *runner) importCSV(ctx context.Context, args []string) error {
	fs, user, parseArgs := r.userFlags("import", args)
	path := fs.String("file", "", "CSV file to import")
	if err := parseArgs(); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("%w: import: -file is required", errUsage)
	}
	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	res, err := r.svc.ImportCSV(ctx, f, *user)
	fmt.Fprintf(r.out, "imported %d transactions, %d duplicates skipped, %d rows rejected\n",
		res.Added, res.Duplicates, len(res.Rejected))
	for _, rej := range res.Rejected {
		fmt.Fprintf(r.out, "  %v\n", rej)
	}
	return err
}
