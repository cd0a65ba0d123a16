package ledgerdb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/elpasominers/bank/internal/core/ledger/store/ledgerdb"
	"github.com/elpasominers/bank/internal/data/dbtest"
	"github.com/shopspring/decimal"
)

func TestAddCustomerAndLoadRegistry(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := ledgerdb.NewStore(log, database)

	reg, err := store.LoadRegistry(ctx, ledger.DefaultScorer())
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}

	c, err := reg.FindCustomerByID(1)
	if err != nil {
		t.Fatalf("failed to find customer by id[%d]: %v", 1, err)
	}
	if got := len(c.Accounts()); got != 3 {
		t.Fatalf("got %d accounts, want %d", got, 3)
	}
	if !c.VerifyPassword("hunter2") {
		t.Error("restored password hash should verify")
	}

	a, err := reg.FindAccount(101)
	if err != nil {
		t.Fatalf("failed to find account %d: %v", 101, err)
	}
	if want := decimal.RequireFromString("500.00"); !a.Balance().Equal(want) {
		t.Errorf("wrong balance, got %s want %s", a.Balance(), want)
	}

	credit, err := reg.FindAccount(301)
	if err != nil {
		t.Fatalf("failed to find account %d: %v", 301, err)
	}
	if credit.Kind() != ledger.Credit {
		t.Errorf("wrong kind, got %s want %s", credit.Kind(), ledger.Credit)
	}
	if want := decimal.RequireFromString("5000"); !credit.Limit().Equal(want) {
		t.Errorf("wrong limit, got %s want %s", credit.Limit(), want)
	}
}

func TestAddCustomerDuplicate(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := ledgerdb.NewStore(log, database)

	// Same name as a seeded customer, different id.
	dup, err := ledger.NewCustomer(ledger.Profile{
		ID:        9,
		FirstName: "maria",
		LastName:  "lopez",
		DOB:       "1-jan-1990",
		Address:   "789 Yandell Dr, El Paso, TX",
		Phone:     "9155550199",
		Password:  "pw",
	}, ledger.DefaultScorer())
	if err != nil {
		t.Fatalf("failed to build customer: %v", err)
	}

	err = store.AddCustomer(ctx, dup)
	if !errors.Is(err, ledger.ErrDuplicateIdentity) {
		t.Fatalf("got error %v, want %v", err, ledger.ErrDuplicateIdentity)
	}

	// The failed insert must not leave partial rows behind.
	reg, err := store.LoadRegistry(ctx, ledger.DefaultScorer())
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}
	if _, err := reg.FindCustomerByID(9); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("duplicate customer should not be registered, got err %v", err)
	}
}

func TestSyncAccountAndQueryTransactions(t *testing.T) {
	ctx := context.Background()
	log, database, teardown := dbtest.NewUnit(t, dbtest.WithMigrations(), dbtest.WithSeed())
	t.Cleanup(teardown)

	store := ledgerdb.NewStore(log, database)

	reg, err := store.LoadRegistry(ctx, ledger.DefaultScorer())
	if err != nil {
		t.Fatalf("failed to load registry: %v", err)
	}
	c, err := reg.FindCustomerByID(2)
	if err != nil {
		t.Fatalf("failed to find customer: %v", err)
	}
	a, err := reg.FindAccount(102)
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}

	for range 3 {
		if err := c.Deposit(a, decimal.RequireFromString("25.00")); err != nil {
			t.Fatalf("failed to deposit: %v", err)
		}
	}
	if err := store.SyncAccount(ctx, a); err != nil {
		t.Fatalf("failed to sync account: %v", err)
	}
	// A second sync of the same history must be a no-op.
	if err := store.SyncAccount(ctx, a); err != nil {
		t.Fatalf("failed to re-sync account: %v", err)
	}

	ts, err := store.QueryTransactions(ctx, 102, 1, 10)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(ts) != 3 {
		t.Fatalf("got %d transactions, want %d", len(ts), 3)
	}
	if ts[0].Description != "Deposit of funds" {
		t.Errorf("wrong description got %q want %q", ts[0].Description, "Deposit of funds")
	}
	if want := decimal.RequireFromString("125.00"); !ts[0].Balance.Equal(want) {
		t.Errorf("wrong balance snapshot got %s want %s", ts[0].Balance, want)
	}

	// Pagination: second page of two rows holds the last entry.
	ts, err = store.QueryTransactions(ctx, 102, 2, 2)
	if err != nil {
		t.Fatalf("failed to query transactions: %v", err)
	}
	if len(ts) != 1 {
		t.Fatalf("got %d transactions, want %d", len(ts), 1)
	}
	if want := decimal.RequireFromString("175.00"); !ts[0].Balance.Equal(want) {
		t.Errorf("wrong balance snapshot got %s want %s", ts[0].Balance, want)
	}

	// Reload and check the persisted balance and hydrated history.
	reg, err = store.LoadRegistry(ctx, ledger.DefaultScorer())
	if err != nil {
		t.Fatalf("failed to reload registry: %v", err)
	}
	a, err = reg.FindAccount(102)
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}
	if want := decimal.RequireFromString("175.00"); !a.Balance().Equal(want) {
		t.Errorf("wrong balance got %s want %s", a.Balance(), want)
	}
	if got := len(a.Transactions()); got != 3 {
		t.Errorf("got %d history entries, want %d", got, 3)
	}
}
