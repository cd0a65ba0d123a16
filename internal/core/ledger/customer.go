package ledger

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Customer is the sole authorized actor for mutating operations on the
// accounts it owns. Every operation verifies ownership before delegating to
// the account, and appends a history entry on success.
type Customer struct {
	mu           sync.RWMutex
	id           int
	firstName    string
	lastName     string
	dob          string
	address      string
	phone        string
	passwordHash []byte
	creditScore  int
	scored       bool
	scorer       Scorer
	accounts     []*Account
}

// NewCustomer onboards a customer from a profile. The password is stored as
// a bcrypt hash. The scorer is consulted once, when the first credit account
// is attached.
func NewCustomer(p Profile, scorer Scorer) (*Customer, error) {
	if p.ID <= 0 {
		return nil, fmt.Errorf("customer id must be positive: %w", ErrInvalidAmount)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	return RestoreCustomer(p, hash, 0, scorer), nil
}

// RestoreCustomer rebuilds a customer from persisted state, keeping the
// stored password hash and credit score.
func RestoreCustomer(p Profile, passwordHash []byte, creditScore int, scorer Scorer) *Customer {
	return &Customer{
		id:           p.ID,
		firstName:    strings.ToLower(p.FirstName),
		lastName:     strings.ToLower(p.LastName),
		dob:          p.DOB,
		address:      p.Address,
		phone:        p.Phone,
		passwordHash: passwordHash,
		creditScore:  creditScore,
		scored:       creditScore != 0,
		scorer:       scorer,
	}
}

// ID returns the customer's unique id.
func (c *Customer) ID() int { return c.id }

// Key returns the customer's secondary lookup key.
func (c *Customer) Key() string { return c.firstName + c.lastName }

// FullName returns the customer's name with each part capitalized.
func (c *Customer) FullName() string {
	return titleCase(c.firstName) + " " + titleCase(c.lastName)
}

// Profile returns the customer's onboarding attributes without credentials.
func (c *Customer) Profile() Profile {
	return Profile{
		ID:        c.id,
		FirstName: c.firstName,
		LastName:  c.lastName,
		DOB:       c.dob,
		Address:   c.address,
		Phone:     c.phone,
	}
}

// PasswordHash returns the stored bcrypt hash for persistence.
func (c *Customer) PasswordHash() []byte { return c.passwordHash }

// CreditScore returns the derived credit score, 0 if no credit account has
// been attached.
func (c *Customer) CreditScore() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creditScore
}

// VerifyPassword reports whether the attempt matches the stored credential.
func (c *Customer) VerifyPassword(attempt string) bool {
	return bcrypt.CompareHashAndPassword(c.passwordHash, []byte(attempt)) == nil
}

// AddAccount attaches an account to the customer. The account number must
// not already be attached; global single ownership is the registry's
// responsibility. Attaching the first credit account derives the credit
// score, exactly once.
func (c *Customer) AddAccount(a *Account) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, own := range c.accounts {
		if own.number == a.number {
			return ErrDuplicateIdentity
		}
	}
	c.accounts = append(c.accounts, a)
	if a.kind == Credit && !c.scored && c.scorer != nil {
		c.creditScore = c.scorer(a.limit)
		c.scored = true
	}
	return nil
}

// Accounts returns the owned accounts in attachment order.
func (c *Customer) Accounts() []*Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Account, len(c.accounts))
	copy(out, c.accounts)
	return out
}

// Account returns the owned account with the given number.
func (c *Customer) Account(number int) (*Account, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.accounts {
		if a.number == number {
			return a, nil
		}
	}
	return nil, ErrNotOwned
}

// Owns reports whether the account is in the customer's collection.
func (c *Customer) Owns(a *Account) bool {
	if a == nil {
		return false
	}
	_, err := c.Account(a.number)
	return err == nil
}

// Deposit adds funds to an owned account and records the transaction.
func (c *Customer) Deposit(acc *Account, amount decimal.Decimal) error {
	if !c.Owns(acc) {
		return ErrNotOwned
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if err := acc.deposit(amount); err != nil {
		return err
	}
	acc.record("Deposit of funds", amount)
	return nil
}

// Withdraw removes funds from an owned account and records the transaction.
func (c *Customer) Withdraw(acc *Account, amount decimal.Decimal) error {
	if !c.Owns(acc) {
		return ErrNotOwned
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if err := acc.withdraw(amount); err != nil {
		return err
	}
	acc.record("Withdrawal of funds", amount.Neg())
	return nil
}

// Transfer moves funds between two accounts owned by this customer. Both
// legs complete or neither does.
func (c *Customer) Transfer(src, dst *Account, amount decimal.Decimal) error {
	if !c.Owns(src) || !c.Owns(dst) {
		return ErrNotOwned
	}
	if src.number == dst.number {
		return ErrSameAccount
	}
	srcDesc := fmt.Sprintf("Transfer of funds to %s [id=%d]", dst.kind, dst.number)
	dstDesc := fmt.Sprintf("Transfer of funds from %s [id=%d]", src.kind, src.number)
	return movePair(src, dst, amount, srcDesc, dstDesc)
}

// Send moves funds from an account owned by this customer to an account
// owned by a different customer. Same-owner pairs must use Transfer.
func (c *Customer) Send(src, dst *Account, amount decimal.Decimal, to *Customer) error {
	if to == nil || to.id == c.id || (c.Owns(src) && c.Owns(dst)) {
		return ErrSameOwner
	}
	if !c.Owns(src) || !to.Owns(dst) {
		return ErrNotOwned
	}
	srcDesc := "Sent funds to " + to.FullName()
	dstDesc := "Received funds from " + c.FullName()
	return movePair(src, dst, amount, srcDesc, dstDesc)
}

// movePair is the shared two-phase withdraw-then-deposit sequence behind
// Transfer and Send. Both account locks are held for the whole operation,
// so no other operation observes the pending state, and a failed deposit
// leg reverts the withdrawal before the locks release.
func movePair(src, dst *Account, amount decimal.Decimal, srcDesc, dstDesc string) error {
	unlock := lockPair(src, dst)
	defer unlock()

	if err := src.withdraw(amount); err != nil {
		return err
	}
	// Pending: the source leg has applied.
	if err := dst.depositExact(amount); err != nil {
		// Rolled back: re-crediting the source under the held lock
		// cannot fail, conservation holds.
		if rbErr := src.deposit(amount); rbErr != nil {
			return fmt.Errorf("rollback after %w: %w", err, rbErr)
		}
		return err
	}
	// Committed.
	src.record(srcDesc, amount.Neg())
	dst.record(dstDesc, amount)
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
