// Package dbtest contains supporting code for running tests that hit the DB.
package dbtest

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"testing"
	"time"

	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/elpasominers/bank/internal/core/ledger/store/ledgerdb"
	"github.com/elpasominers/bank/internal/data/dbschema"
	db "github.com/elpasominers/bank/internal/data/dbsql/pgx"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres stdlib driver, used for migrations.
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type dbContainer struct {
	Container  *postgres.PostgresContainer
	ConnString string
}

func (c *dbContainer) DumpLogs() string {
	logs, err := c.Container.Logs(context.Background())
	if err != nil {
		return fmt.Sprintf("failed to dump container logs: %v", err)
	}
	b, err := io.ReadAll(logs)
	if err != nil {
		return fmt.Sprintf("failed to read container logs: %v", err)
	}
	return string(b)
}

func (c *dbContainer) shutdown() error {
	return c.Container.Terminate(context.Background())
}

func startDB() (*dbContainer, error) {
	ctx := context.Background()

	c, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(20*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("run container err: %w", err)
	}

	connStr, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("connString err: %w", err)
	}

	return &dbContainer{
		Container:  c,
		ConnString: connStr,
	}, nil
}

// NewUnit creates a test database inside a Docker container. It gives options
// to migrate and seed the database. It returns the database to use as well as
// a function to call at the end of the test.
func NewUnit(t *testing.T, options ...Option) (*slog.Logger, *pgxpool.Pool, func()) {
	t.Helper()

	c, err := startDB()
	if err != nil {
		t.Fatalf("starting DB container: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var buf bytes.Buffer
	logHandler := slog.NewTextHandler(&buf, nil)
	log := slog.New(logHandler)

	database, err := db.OpenConnString(ctx, c.ConnString)
	if err != nil {
		t.Fatalf("Opening database connection: %v", err)
	}

	for _, option := range options {
		if err := option(ctx, t, log, database, c); err != nil {
			t.Logf("Logs for %s\n%s:", c.Container.GetContainerID(), c.DumpLogs())
			t.Fatal(err)
		}
	}

	t.Log("Ready for testing...")

	// teardown is the function that should be invoked when the caller is done
	// with the database.
	teardown := func() {
		if r := recover(); r != nil {
			t.Log(r)
			t.Error(string(debug.Stack()))
		}

		t.Helper()
		database.Close()
		c.shutdown()

		fmt.Println("******************** LOGS ********************")
		fmt.Print(buf.String())
		fmt.Println("******************** LOGS ********************")
	}

	return log, database, teardown
}

type Option func(context.Context, *testing.T, *slog.Logger, *pgxpool.Pool, *dbContainer) error

// WithMigrations brings the test database to the latest schema version.
func WithMigrations() Option {
	return func(ctx context.Context, t *testing.T, _ *slog.Logger, _ *pgxpool.Pool, c *dbContainer) error {
		t.Log("Migrating database...")

		db, err := sql.Open("pgx", c.ConnString)
		if err != nil {
			return fmt.Errorf("failed to open DB for migration: %w", err)
		}
		defer db.Close()

		if err := dbschema.Migrate(db); err != nil {
			return fmt.Errorf("migrating error: %w", err)
		}

		return nil
	}
}

// WithSeed onboards two customers with the account fixtures the store and
// handler tests expect:
//
//	maria lopez (id 1, password "hunter2"): Checking 101 $500.00,
//	Savings 201 $250.00, Credit 301 limit 5000 debt 0.
//	juan reyes (id 2, password "changeme"): Checking 102 $100.00.
func WithSeed() Option {
	return func(ctx context.Context, t *testing.T, log *slog.Logger, pool *pgxpool.Pool, _ *dbContainer) error {
		t.Log("Seeding database...")

		store := ledgerdb.NewStore(log, pool)
		for _, c := range SeedCustomers(t) {
			if err := store.AddCustomer(ctx, c); err != nil {
				return fmt.Errorf("seeding customer %d: %w", c.ID(), err)
			}
		}
		return nil
	}
}

// SeedCustomers builds the fixture customers WithSeed persists.
func SeedCustomers(t *testing.T) []*ledger.Customer {
	t.Helper()

	scorer := ledger.DefaultScorer()

	maria, err := ledger.NewCustomer(ledger.Profile{
		ID:        1,
		FirstName: "maria",
		LastName:  "lopez",
		DOB:       "1-jan-1990",
		Address:   "123 Main St, El Paso, TX",
		Phone:     "9155550100",
		Password:  "hunter2",
	}, scorer)
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	juan, err := ledger.NewCustomer(ledger.Profile{
		ID:        2,
		FirstName: "juan",
		LastName:  "reyes",
		DOB:       "2-feb-1985",
		Address:   "456 Mesa St, El Paso, TX",
		Phone:     "9155550101",
		Password:  "changeme",
	}, scorer)
	if err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	mustAdd := func(c *ledger.Customer, a *ledger.Account, err error) {
		if err != nil {
			t.Fatalf("seed account: %v", err)
		}
		if err := c.AddAccount(a); err != nil {
			t.Fatalf("seed account: %v", err)
		}
	}

	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	a, err := ledger.NewChecking(101, d("500.00"))
	mustAdd(maria, a, err)
	a, err = ledger.NewSavings(201, d("250.00"))
	mustAdd(maria, a, err)
	a, err = ledger.NewCredit(301, d("0"), d("5000"))
	mustAdd(maria, a, err)

	a, err = ledger.NewChecking(102, d("100.00"))
	mustAdd(juan, a, err)

	return []*ledger.Customer{maria, juan}
}
