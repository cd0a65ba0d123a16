// Package flatfile reads and writes the teller's files: header-mapped CSV
// onboarding records, the end-of-day customer report and the append-only
// transaction and error logs.
package flatfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/shopspring/decimal"
)

// reportHeaders is the column layout of both onboarding files and exported
// reports. Import maps columns by header name, so extra columns and
// reordering are tolerated.
var reportHeaders = []string{
	"Identification Number",
	"First Name",
	"Last Name",
	"Date of Birth",
	"Address",
	"Phone Number",
	"Checking Account Number",
	"Checking Starting Balance",
	"Savings Account Number",
	"Savings Starting Balance",
	"Credit Account Number",
	"Credit Max",
	"Credit Starting Balance",
}

// Log is an append-only line log.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog names a log file. The file is created on first append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Append writes one timestamped line.
func (l *Log) Append(msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log %s: %w", l.path, err)
	}
	defer f.Close()

	line := time.Now().UTC().Format(time.RFC3339) + " " + msg + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("appending to log %s: %w", l.path, err)
	}
	return nil
}

// ImportCustomers onboards every row of a CSV file into the registry. Rows
// that cannot be parsed or collide with registered identities are appended
// to errLog and skipped; the import continues. It returns how many
// customers were onboarded.
func ImportCustomers(path string, reg *ledger.Registry, scorer ledger.Scorer, errLog *Log) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("reading headers of %s: %w", path, err)
	}
	col := make(map[string]int, len(headers))
	for i, h := range headers {
		col[strings.TrimSpace(h)] = i
	}

	records, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("reading records of %s: %w", path, err)
	}

	added := 0
	for i, record := range records {
		field := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		if err := importRecord(field, reg, scorer); err != nil {
			logErr := errLog.Append(fmt.Sprintf("Failed to add customer from row %d of %s. Reason: %v.", i+2, path, err))
			if logErr != nil {
				return added, logErr
			}
			continue
		}
		added++
	}
	return added, nil
}

func importRecord(field func(string) string, reg *ledger.Registry, scorer ledger.Scorer) error {
	id, err := strconv.Atoi(field("Identification Number"))
	if err != nil {
		return fmt.Errorf("bad identification number %q", field("Identification Number"))
	}

	p := ledger.Profile{
		ID:        id,
		FirstName: field("First Name"),
		LastName:  field("Last Name"),
		DOB:       field("Date of Birth"),
		Address:   field("Address"),
		Phone:     field("Phone Number"),
		// Onboarding files carry no credential; the phone number is
		// the initial password.
		Password: field("Phone Number"),
	}
	c, err := ledger.NewCustomer(p, scorer)
	if err != nil {
		return err
	}

	var accounts []*ledger.Account
	if n := field("Checking Account Number"); n != "" {
		a, err := parseAccount(ledger.Checking, n, field("Checking Starting Balance"), "")
		if err != nil {
			return err
		}
		accounts = append(accounts, a)
	}
	if n := field("Savings Account Number"); n != "" {
		a, err := parseAccount(ledger.Savings, n, field("Savings Starting Balance"), "")
		if err != nil {
			return err
		}
		accounts = append(accounts, a)
	}
	if n := field("Credit Account Number"); n != "" {
		a, err := parseAccount(ledger.Credit, n, field("Credit Starting Balance"), field("Credit Max"))
		if err != nil {
			return err
		}
		accounts = append(accounts, a)
	}

	return reg.Onboard(c, accounts...)
}

func parseAccount(kind ledger.Kind, number, balance, limit string) (*ledger.Account, error) {
	n, err := strconv.Atoi(number)
	if err != nil {
		return nil, fmt.Errorf("bad %s account number %q", kind, number)
	}
	b, err := parseMoney(balance)
	if err != nil {
		return nil, fmt.Errorf("bad %s starting balance %q", kind, balance)
	}

	switch kind {
	case ledger.Checking:
		return ledger.NewChecking(n, b)
	case ledger.Savings:
		return ledger.NewSavings(n, b)
	default:
		creditMax, err := parseMoney(limit)
		if err != nil {
			return nil, fmt.Errorf("bad credit max %q", limit)
		}
		return ledger.NewCredit(n, b, creditMax)
	}
}

// parseMoney parses a non-negative file amount. Empty means zero; thousands
// separators are tolerated.
func parseMoney(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil || d.Sign() < 0 {
		return decimal.Decimal{}, ledger.ErrInvalidAmount
	}
	return d, nil
}

// ExportReport writes every registered customer as one CSV row, one column
// group per account kind. The file is replaced, not appended.
func ExportReport(path string, reg *ledger.Registry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(reportHeaders); err != nil {
		return err
	}

	for _, c := range reg.Customers() {
		p := c.Profile()
		record := make([]string, len(reportHeaders))
		record[0] = strconv.Itoa(p.ID)
		record[1] = titleWords(p.FirstName)
		record[2] = titleWords(p.LastName)
		record[3] = p.DOB
		record[4] = titleWords(p.Address)
		record[5] = p.Phone

		for _, a := range c.Accounts() {
			switch a.Kind() {
			case ledger.Checking:
				record[6] = strconv.Itoa(a.Number())
				record[7] = ledger.FormatAmount(a.Balance())
			case ledger.Savings:
				record[8] = strconv.Itoa(a.Number())
				record[9] = ledger.FormatAmount(a.Balance())
			case ledger.Credit:
				record[10] = strconv.Itoa(a.Number())
				record[11] = ledger.FormatAmount(a.Limit())
				record[12] = ledger.FormatAmount(a.Balance())
			}
		}

		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
