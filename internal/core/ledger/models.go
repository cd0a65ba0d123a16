package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind is the closed set of account variants.
type Kind int

const (
	Checking Kind = iota
	Savings
	Credit
)

func (k Kind) String() string {
	switch k {
	case Checking:
		return "Checking"
	case Savings:
		return "Savings"
	case Credit:
		return "Credit"
	}
	return "Unknown"
}

// ParseKind converts the textual form used by the API and the onboarding
// files back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "checking":
		return Checking, nil
	case "savings":
		return Savings, nil
	case "credit":
		return Credit, nil
	}
	return 0, fmt.Errorf("unknown account kind %q", s)
}

// Transaction is an immutable history entry recorded after a successful
// balance mutation. Amount is signed: credits positive, debits negative.
type Transaction struct {
	ID          uuid.UUID
	Account     int
	Description string
	Amount      decimal.Decimal
	Balance     decimal.Decimal
	Date        time.Time
}

// Profile carries the attributes a customer is onboarded with.
type Profile struct {
	ID        int
	FirstName string
	LastName  string
	DOB       string
	Address   string
	Phone     string
	Password  string
}

// Key is the secondary lookup key for a profile, the lower-cased
// concatenation of first and last name.
func (p Profile) Key() string {
	return strings.ToLower(p.FirstName) + strings.ToLower(p.LastName)
}
