// Package ledger implements the account/transaction core of the bank:
// the three account kinds with their balance-mutation rules, the
// ownership-checked customer operations and the append-only transaction
// history every successful mutation produces.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a balance-or-debt-holding entity of kind Checking, Savings or
// Credit. For Checking and Savings the balance is a non-negative amount of
// money held; for Credit it is the outstanding debt, bounded by a limit
// fixed at creation.
//
// Each account carries its own lock. Operations that involve two accounts
// acquire both locks in ascending account-number order, see lockPair.
type Account struct {
	mu      sync.Mutex
	number  int
	kind    Kind
	balance decimal.Decimal
	limit   decimal.Decimal
	history []Transaction
}

// NewChecking constructs a checking account with a starting balance.
func NewChecking(number int, balance decimal.Decimal) (*Account, error) {
	return newAccount(number, Checking, balance, decimal.Zero)
}

// NewSavings constructs a savings account with a starting balance.
func NewSavings(number int, balance decimal.Decimal) (*Account, error) {
	return newAccount(number, Savings, balance, decimal.Zero)
}

// NewCredit constructs a credit account with a starting debt and a fixed
// credit limit.
func NewCredit(number int, debt, limit decimal.Decimal) (*Account, error) {
	if limit.Sign() <= 0 || debt.GreaterThan(limit) {
		return nil, ErrLimitExceeded
	}
	return newAccount(number, Credit, debt, limit)
}

// RestoreAccount rebuilds an account from persisted state, including its
// transaction history.
func RestoreAccount(number int, kind Kind, balance, limit decimal.Decimal, history []Transaction) (*Account, error) {
	var a *Account
	var err error
	if kind == Credit {
		a, err = NewCredit(number, balance, limit)
	} else {
		a, err = newAccount(number, kind, balance, decimal.Zero)
	}
	if err != nil {
		return nil, err
	}
	a.history = make([]Transaction, len(history))
	copy(a.history, history)
	return a, nil
}

func newAccount(number int, kind Kind, balance, limit decimal.Decimal) (*Account, error) {
	if number <= 0 || balance.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return &Account{
		number:  number,
		kind:    kind,
		balance: balance,
		limit:   limit,
	}, nil
}

// Number returns the account number.
func (a *Account) Number() int { return a.number }

// Kind returns the account variant tag.
func (a *Account) Kind() Kind { return a.kind }

// Balance returns the current balance. For credit accounts this is the
// outstanding debt, not the available credit.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Limit returns the credit limit. Zero for non-credit accounts.
func (a *Account) Limit() decimal.Decimal { return a.limit }

// Available returns how much can still be withdrawn: limit minus debt for
// credit accounts, the balance otherwise.
func (a *Account) Available() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.kind == Credit {
		return a.limit.Sub(a.balance)
	}
	return a.balance
}

// Deposit adds amount to the balance, or pays down debt for credit
// accounts. It reports whether the mutation was applied.
func (a *Account) Deposit(amount decimal.Decimal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deposit(amount) == nil
}

// Withdraw removes amount from the balance, or charges a credit account.
// It reports whether the mutation was applied; on failure the balance is
// unchanged.
func (a *Account) Withdraw(amount decimal.Decimal) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.withdraw(amount) == nil
}

// RecordTransaction appends a history entry with the given description and
// signed amount, snapshotting the balance after the mutation it describes.
func (a *Account) RecordTransaction(description string, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.record(description, amount)
}

// Transactions returns a copy of the account history in insertion order.
func (a *Account) Transactions() []Transaction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Transaction, len(a.history))
	copy(out, a.history)
	return out
}

// deposit applies the kind-specific deposit rule. Callers hold a.mu.
func (a *Account) deposit(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if a.kind == Credit {
		// A payment toward debt, floored at zero.
		a.balance = decimal.Max(decimal.Zero, a.balance.Sub(amount))
		return nil
	}
	a.balance = a.balance.Add(amount)
	return nil
}

// depositExact is the deposit rule used for the destination leg of a
// transfer or send. It differs from deposit in one case: a payment into a
// credit account larger than the outstanding debt is refused instead of
// floored, otherwise the overpayment would vanish and the two-leg
// conservation law would not hold. Callers hold a.mu.
func (a *Account) depositExact(amount decimal.Decimal) error {
	if a.kind == Credit && amount.GreaterThan(a.balance) {
		return fmt.Errorf("%w: payment exceeds outstanding debt", ErrInvalidAmount)
	}
	return a.deposit(amount)
}

// withdraw applies the kind-specific withdrawal rule. Callers hold a.mu.
func (a *Account) withdraw(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if a.kind == Credit {
		if a.balance.Add(amount).GreaterThan(a.limit) {
			return ErrLimitExceeded
		}
		a.balance = a.balance.Add(amount)
		return nil
	}
	if amount.GreaterThan(a.balance) {
		return ErrInsufficientFunds
	}
	a.balance = a.balance.Sub(amount)
	return nil
}

// record appends a history entry. Callers hold a.mu.
func (a *Account) record(description string, amount decimal.Decimal) {
	a.history = append(a.history, Transaction{
		ID:          uuid.New(),
		Account:     a.number,
		Description: description,
		Amount:      amount,
		Balance:     a.balance,
		Date:        time.Now().UTC().Round(time.Microsecond),
	})
}

// lockPair locks both accounts in ascending account-number order so two
// concurrent transfers referencing the same pair in opposite order cannot
// deadlock. The returned function releases both locks.
func lockPair(x, y *Account) func() {
	first, second := x, y
	if y.number < x.number {
		first, second = y, x
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
