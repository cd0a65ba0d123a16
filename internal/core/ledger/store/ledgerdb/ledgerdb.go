// Package ledgerdb persists the ledger to PostgreSQL: customer and account
// rows written at onboarding, balances and the transaction journal written
// after an operation commits, and registry hydration at startup. Durability
// is snapshot+journal; the in-memory ledger stays the system of record
// while the process runs.
package ledgerdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elpasominers/bank/internal/core/ledger"
	db "github.com/elpasominers/bank/internal/data/dbsql/pgx"
)

// Store gives access to the ledger's database state.
type Store struct {
	log *slog.Logger
	db  db.DB
}

// NewStore constructs a store over a pool or transaction.
func NewStore(log *slog.Logger, database db.DB) *Store {
	return &Store{
		log: log,
		db:  database,
	}
}

// ExecUnderTx executes the fn function under a transaction. If fn returns
// an error the transaction is rolled back and the error is returned.
func (s *Store) ExecUnderTx(ctx context.Context, fn func(tx *Store) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(NewStore(s.log, tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AddCustomer inserts a customer and its accounts in one transaction. A
// taken customer id, name key or account number fails the whole insert
// with ledger.ErrDuplicateIdentity and leaves the database untouched.
func (s *Store) AddCustomer(ctx context.Context, c *ledger.Customer) error {
	fn := func(tx *Store) error {
		const q = `
		INSERT INTO customers
			(id, first_name, last_name, dob, address, phone, password_hash, credit_score)
		VALUES
			(@id, @first_name, @last_name, @dob, @address, @phone, @password_hash, @credit_score)`

		if err := db.NamedExec(ctx, tx.log, tx.db, q, toDBCustomer(c)); err != nil {
			return fmt.Errorf("inserting customer: %w", err)
		}

		const qa = `
		INSERT INTO accounts
			(number, customer_id, kind, balance, credit_limit)
		VALUES
			(@number, @customer_id, @kind, @balance, @credit_limit)`

		for _, a := range c.Accounts() {
			if err := db.NamedExec(ctx, tx.log, tx.db, qa, toDBAccount(c.ID(), a)); err != nil {
				return fmt.Errorf("inserting account %d: %w", a.Number(), err)
			}
		}
		return nil
	}

	if err := s.ExecUnderTx(ctx, fn); err != nil {
		if errors.Is(err, db.ErrDBDuplicatedEntry) {
			return ledger.ErrDuplicateIdentity
		}
		return err
	}
	return nil
}

// SyncAccount writes an account's balance and any not-yet-persisted history
// entries. It is idempotent: journal rows are keyed by transaction id and
// re-inserts are ignored.
func (s *Store) SyncAccount(ctx context.Context, a *ledger.Account) error {
	fn := func(tx *Store) error {
		const q = `
		UPDATE accounts SET
			balance = @balance
		WHERE
			number = @number`

		if err := db.NamedExec(ctx, tx.log, tx.db, q, toDBAccount(0, a)); err != nil {
			return fmt.Errorf("updating balance of account %d: %w", a.Number(), err)
		}

		const qt = `
		INSERT INTO transactions
			(id, account_number, description, amount, balance, date_created)
		VALUES
			(@id, @account_number, @description, @amount, @balance, @date_created)
		ON CONFLICT (id) DO NOTHING`

		for _, t := range a.Transactions() {
			if err := db.NamedExec(ctx, tx.log, tx.db, qt, toDBTransaction(t)); err != nil {
				return fmt.Errorf("journaling transaction %s: %w", t.ID, err)
			}
		}
		return nil
	}

	return s.ExecUnderTx(ctx, fn)
}

// QueryTransactions returns an account's journal page ordered oldest
// first, matching the in-memory history order.
func (s *Store) QueryTransactions(ctx context.Context, number int, pageNumber int, rowsPerPage int) ([]ledger.Transaction, error) {
	data := struct {
		Number      int `db:"account_number"`
		Offset      int `db:"offset"`
		RowsPerPage int `db:"rows_per_page"`
	}{
		Number:      number,
		Offset:      (pageNumber - 1) * rowsPerPage,
		RowsPerPage: rowsPerPage,
	}

	const q = `
	SELECT
		id, account_number, description, amount, balance, date_created
	FROM
		transactions
	WHERE
		account_number = @account_number
	ORDER BY
		date_created
	OFFSET @offset ROWS FETCH NEXT @rows_per_page ROWS ONLY`

	ts, err := db.NamedQuerySlice[dbTransaction](ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, db.ErrDBNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return toTransactions(ts), nil
}

// LoadRegistry hydrates a registry from the database: every customer with
// its accounts and each account's journal as in-memory history.
func (s *Store) LoadRegistry(ctx context.Context, scorer ledger.Scorer) (*ledger.Registry, error) {
	const qc = `
	SELECT
		id, first_name, last_name, dob, address, phone, password_hash, credit_score
	FROM
		customers
	ORDER BY
		id`

	customers, err := db.NamedQuerySlice[dbCustomer](ctx, s.log, s.db, qc, struct{}{})
	if err != nil && !errors.Is(err, db.ErrDBNotFound) {
		return nil, fmt.Errorf("querying customers: %w", err)
	}

	reg := ledger.NewRegistry()
	for _, dbc := range customers {
		c := toCustomer(dbc, scorer)

		accounts, err := s.queryAccounts(ctx, dbc.ID)
		if err != nil {
			return nil, fmt.Errorf("querying accounts of customer %d: %w", dbc.ID, err)
		}
		if err := reg.Onboard(c, accounts...); err != nil {
			return nil, fmt.Errorf("registering customer %d: %w", dbc.ID, err)
		}
	}

	return reg, nil
}

func (s *Store) queryAccounts(ctx context.Context, customerID int) ([]*ledger.Account, error) {
	data := struct {
		CustomerID int `db:"customer_id"`
	}{
		CustomerID: customerID,
	}

	const q = `
	SELECT
		number, customer_id, kind, balance, credit_limit
	FROM
		accounts
	WHERE
		customer_id = @customer_id
	ORDER BY
		number`

	rows, err := db.NamedQuerySlice[dbAccount](ctx, s.log, s.db, q, data)
	if err != nil {
		if errors.Is(err, db.ErrDBNotFound) {
			return nil, nil
		}
		return nil, err
	}

	accounts := make([]*ledger.Account, 0, len(rows))
	for _, r := range rows {
		history, err := s.QueryTransactions(ctx, r.Number, 1, maxJournalRows)
		if err != nil {
			return nil, err
		}
		a, err := toAccount(r, history)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// maxJournalRows bounds how much history is rebuilt per account at
// startup.
const maxJournalRows = 10000
