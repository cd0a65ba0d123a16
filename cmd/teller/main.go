// The teller binary runs the console against flat files: customers are
// loaded from a CSV on start and a report is exported on exit.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/elpasominers/bank/internal/cli"
	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/elpasominers/bank/internal/flatfile"
	"github.com/elpasominers/bank/internal/logger"
)

var build = "develop"

func main() {
	// The console owns stdout; structured logs go to stderr.
	log := logger.NewWithWriter(os.Stderr, "Teller")

	if err := run(log); err != nil {
		log.Error("startup", "ERROR", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := struct {
		conf.Version
		Customers      string `conf:"default:customers.csv"`
		Report         string `conf:"default:report.csv"`
		TransactionLog string `conf:"default:transactions.txt"`
		ErrorLog       string `conf:"default:errors.txt"`
	}{
		Version: conf.Version{
			Build: build,
		},
	}

	const prefix = "TELLER"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	txLog := flatfile.NewLog(cfg.TransactionLog)
	errLog := flatfile.NewLog(cfg.ErrorLog)

	reg := ledger.NewRegistry()
	added, err := flatfile.ImportCustomers(cfg.Customers, reg, ledger.DefaultScorer(), errLog)
	if err != nil {
		return fmt.Errorf("importing customers: %w", err)
	}
	log.Info("startup", "status", "customers loaded", "file", cfg.Customers, "count", added)

	ui := cli.NewUI(reg, bufio.NewReader(os.Stdin), os.Stdout, txLog, errLog)
	ui.Run()

	if err := flatfile.ExportReport(cfg.Report, reg); err != nil {
		return fmt.Errorf("exporting report: %w", err)
	}
	log.Info("shutdown", "status", "report exported", "file", cfg.Report)

	return nil
}
