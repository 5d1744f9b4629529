// Command cashbook-cli records and inspects ledger transactions from a terminal.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"cashbook/internal/cli"
	"cashbook/internal/config"
	"cashbook/internal/log"
)

const usage = `usage: cashbook-cli <command> [arguments]

commands:
  add <category> <amount> <description...>   record a transaction
  summary                                     totals per category and cash in hand
  months                                      monthly groups, most recent first
  window [-width N]                           rolling window ending this month
  import <file>                               replace the ledger with a JSON export
  import-sheet                                replace the ledger with the export sheet rows
  chart <overview|monthly> <out.png>          render a chart to a PNG file
  seed                                        add sample data to an empty ledger
`

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	// Logs go to stderr so command output stays pipeable.
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    os.Stderr,
	})
	log.SetDefault(logger)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errUsage
	}

	l, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer l.Close()

	app := &app{
		ledger:    l,
		cfg:       cfg,
		logger:    logger,
		formatter: cli.NewCurrencyFormatter(cfg),
		loc:       cfg.Location(),
		now:       time.Now,
		out:       out,
	}

	switch args[0] {
	case "add":
		return app.add(ctx, args[1:])
	case "summary":
		return app.summary(args[1:])
	case "months":
		return app.months(args[1:])
	case "window":
		return app.window(args[1:])
	case "import":
		return app.importFile(ctx, args[1:])
	case "import-sheet":
		return app.importSheet(ctx, args[1:])
	case "chart":
		return app.chart(args[1:])
	case "seed":
		return app.seed(ctx, args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}
