package ledgerdb

import (
	"time"

	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type dbCustomer struct {
	ID           int    `db:"id"`
	FirstName    string `db:"first_name"`
	LastName     string `db:"last_name"`
	DOB          string `db:"dob"`
	Address      string `db:"address"`
	Phone        string `db:"phone"`
	PasswordHash []byte `db:"password_hash"`
	CreditScore  int    `db:"credit_score"`
}

func toDBCustomer(c *ledger.Customer) dbCustomer {
	p := c.Profile()
	return dbCustomer{
		ID:           p.ID,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		DOB:          p.DOB,
		Address:      p.Address,
		Phone:        p.Phone,
		PasswordHash: c.PasswordHash(),
		CreditScore:  c.CreditScore(),
	}
}

func toCustomer(c dbCustomer, scorer ledger.Scorer) *ledger.Customer {
	return ledger.RestoreCustomer(ledger.Profile{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		DOB:       c.DOB,
		Address:   c.Address,
		Phone:     c.Phone,
	}, c.PasswordHash, c.CreditScore, scorer)
}

type dbAccount struct {
	Number     int             `db:"number"`
	CustomerID int             `db:"customer_id"`
	Kind       string          `db:"kind"`
	Balance    decimal.Decimal `db:"balance"`
	Limit      decimal.Decimal `db:"credit_limit"`
}

func toDBAccount(customerID int, a *ledger.Account) dbAccount {
	return dbAccount{
		Number:     a.Number(),
		CustomerID: customerID,
		Kind:       a.Kind().String(),
		Balance:    a.Balance(),
		Limit:      a.Limit(),
	}
}

func toAccount(a dbAccount, history []ledger.Transaction) (*ledger.Account, error) {
	kind, err := ledger.ParseKind(a.Kind)
	if err != nil {
		return nil, err
	}
	return ledger.RestoreAccount(a.Number, kind, a.Balance, a.Limit, history)
}

type dbTransaction struct {
	ID          uuid.UUID       `db:"id"`
	Account     int             `db:"account_number"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	Balance     decimal.Decimal `db:"balance"`
	Date        time.Time       `db:"date_created"`
}

func toDBTransaction(t ledger.Transaction) dbTransaction {
	return dbTransaction(t)
}

func toTransactions(ts []dbTransaction) []ledger.Transaction {
	slice := make([]ledger.Transaction, len(ts))
	for i, t := range ts {
		slice[i] = ledger.Transaction(t)
	}
	return slice
}
