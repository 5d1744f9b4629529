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

	"cashbook/internal/aggregate"
	"cashbook/internal/chart"
	"cashbook/internal/cli"
	"cashbook/internal/config"
	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/log"
	"cashbook/internal/services"
)

var errUsage = errors.New("invalid usage")

const dateLayout = "02 Jan 2006, 15:04"

type app struct {
	ledger    *cli.Ledger
	cfg       *config.Config
	logger    *log.Logger
	formatter *core.CurrencyFormatter
	loc       *time.Location
	now       func() time.Time
	out       io.Writer
}

// service wires a LedgerService without a publisher; the CLI never emits events.
func (a *app) service() *services.LedgerService {
	return services.NewLedgerService(a.ledger.Store, nil, a.logger)
}

func (a *app) engine() aggregate.Engine {
	return aggregate.New(a.loc)
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: add <category> <amount> <description...>", errUsage)
	}
	category, err := core.ParseCategory(args[0])
	if err != nil {
		return err
	}
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return err
	}
	description := strings.Join(args[2:], " ")

	t, err := a.service().RecordTransaction(ctx, category, description, amount)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Recorded %s %s %q (%s)\n", category.Label(), a.formatter.Format(t.Amount), t.Description, t.ID)
	return nil
}

func (a *app) summary(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: summary takes no arguments", errUsage)
	}
	totals := aggregate.TotalsByCategory(a.ledger.Store.Snapshot())

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, c := range core.Categories() {
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\n", c.Label(), a.formatter.Format(totals.Get(c)), aggregate.Share(totals, c))
	}
	fmt.Fprintf(tw, "Cash in Hand\t%s\t\n", a.formatter.Format(aggregate.NetBalance(totals)))
	return tw.Flush()
}

func (a *app) months(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: months takes no arguments", errUsage)
	}
	months := aggregate.SortedMonths(a.engine().GroupByMonth(a.ledger.Store.Snapshot()))
	if len(months) == 0 {
		fmt.Fprintln(a.out, "No transactions yet.")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, b := range months {
		fmt.Fprintf(tw, "%s\tNet: %s\t\n", b.Key.Label(), a.formatter.Format(b.Net))
		for _, t := range b.NewestFirst() {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n",
				t.Timestamp.In(a.loc).Format(dateLayout), t.Category.Label(), t.Description, a.formatter.Format(t.Amount))
		}
	}
	return tw.Flush()
}

func (a *app) window(args []string) error {
	fs := flag.NewFlagSet("window", flag.ContinueOnError)
	fs.SetOutput(a.out)
	width := fs.Int("width", a.cfg.WindowWidth, "number of months in the window")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	if *width < 1 {
		return fmt.Errorf("%w: width must be at least 1", errUsage)
	}

	window := a.engine().RollingWindow(a.ledger.Store.Snapshot(), a.now(), *width)

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprint(tw, "Month")
	for _, c := range core.Categories() {
		fmt.Fprintf(tw, "\t%s", c.Label())
	}
	fmt.Fprintln(tw, "\tNet")
	for _, b := range window {
		fmt.Fprint(tw, b.Key.String())
		for _, c := range core.Categories() {
			fmt.Fprintf(tw, "\t%s", a.formatter.Format(b.Totals.Get(c)))
		}
		fmt.Fprintf(tw, "\t%s\n", a.formatter.Format(b.Net))
	}
	return tw.Flush()
}

func (a *app) importFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: import <file>", errUsage)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	txs, err := ledger.Decode(data)
	if err != nil {
		return fmt.Errorf("import %s: %w", args[0], err)
	}
	if err := a.service().Import(ctx, txs); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d transactions\n", len(txs))
	return nil
}

// importSheet replaces the ledger with the rows of the export sheet. An empty
// sheet is refused since importing it would wipe the ledger.
func (a *app) importSheet(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: import-sheet takes no arguments", errUsage)
	}
	sheet, err := cli.NewSheet(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	txs, err := sheet.ReadTransactions(ctx)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	if len(txs) == 0 {
		return errors.New("sheet has no transactions, ledger left unchanged")
	}
	if err := a.service().Import(ctx, txs); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d transactions from the sheet\n", len(txs))
	return nil
}

func (a *app) chart(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: chart <overview|monthly> <out.png>", errUsage)
	}
	txs := a.ledger.Store.Snapshot()
	renderer := chart.NewRenderer(a.formatter)

	var (
		png []byte
		err error
	)
	switch args[0] {
	case "overview":
		png, err = renderer.Overview(aggregate.TotalsByCategory(txs))
	case "monthly":
		png, err = renderer.Monthly(a.engine().RollingWindow(txs, a.now(), a.cfg.WindowWidth))
	default:
		return fmt.Errorf("%w: unknown chart %q", errUsage, args[0])
	}
	if err != nil {
		return fmt.Errorf("render %s chart: %w", args[0], err)
	}
	if err := os.WriteFile(args[1], png, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", args[1], err)
	}
	fmt.Fprintf(a.out, "Wrote %s (%d bytes)\n", args[1], len(png))
	return nil
}

func (a *app) seed(ctx context.Context, args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("%w: seed takes no arguments", errUsage)
	}
	n, err := a.service().SeedSampleData(ctx, a.now())
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(a.out, "Ledger already has data, nothing seeded.")
		return nil
	}
	fmt.Fprintf(a.out, "Seeded %d sample transactions\n", n)
	return nil
}
