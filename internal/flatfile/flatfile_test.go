package flatfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

const sampleCSV = `Identification Number,First Name,Last Name,Date of Birth,Address,Phone Number,Checking Account Number,Checking Starting Balance,Savings Account Number,Savings Starting Balance,Credit Account Number,Credit Max,Credit Starting Balance
1,maria,lopez,1-jan-1990,"123 Main St, El Paso, TX",9155550100,101,500.00,201,250.00,301,5000,40.00
2,juan,reyes,2-feb-1985,"456 Mesa St, El Paso, TX",9155550101,102,100.00,,,,,
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestImportCustomers(t *testing.T) {
	path := writeFile(t, "customers.csv", sampleCSV)
	errLog := NewLog(filepath.Join(t.TempDir(), "errors.txt"))

	reg := ledger.NewRegistry()
	added, err := ImportCustomers(path, reg, ledger.DefaultScorer(), errLog)
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if added != 2 {
		t.Fatalf("got %d customers, want %d", added, 2)
	}

	c, err := reg.FindCustomer("marialopez")
	if err != nil {
		t.Fatalf("failed to find customer: %v", err)
	}
	var numbers []int
	for _, a := range c.Accounts() {
		numbers = append(numbers, a.Number())
	}
	if diff := cmp.Diff([]int{101, 201, 301}, numbers); diff != "" {
		t.Fatalf("wrong accounts (-want +got):\n%s", diff)
	}
	if !c.VerifyPassword("9155550100") {
		t.Error("initial password should be the phone number")
	}
	if c.CreditScore() < 670 || c.CreditScore() > 739 {
		t.Errorf("credit score %d outside the 5000-limit band", c.CreditScore())
	}

	credit, err := reg.FindAccount(301)
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}
	if want := decimal.RequireFromString("40.00"); !credit.Balance().Equal(want) {
		t.Errorf("wrong debt, got %s want %s", credit.Balance(), want)
	}

	// juan has only a checking account.
	juan, err := reg.FindCustomer("juanreyes")
	if err != nil {
		t.Fatalf("failed to find customer: %v", err)
	}
	if got := len(juan.Accounts()); got != 1 {
		t.Errorf("got %d accounts, want %d", got, 1)
	}
}

func TestImportSkipsBadRows(t *testing.T) {
	csv := sampleCSV +
		"1,maria,lopez,1-jan-1990,dup,9155550100,103,10.00,,,,,\n" +
		"not_a_number,ana,vega,3-mar-1992,somewhere,9155550102,104,10.00,,,,,\n"
	path := writeFile(t, "customers.csv", csv)
	errPath := filepath.Join(t.TempDir(), "errors.txt")
	errLog := NewLog(errPath)

	reg := ledger.NewRegistry()
	added, err := ImportCustomers(path, reg, ledger.DefaultScorer(), errLog)
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	if added != 2 {
		t.Fatalf("got %d customers, want %d", added, 2)
	}

	data, err := os.ReadFile(errPath)
	if err != nil {
		t.Fatalf("reading error log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d error lines, want %d:\n%s", len(lines), 2, data)
	}
	if !strings.Contains(lines[0], "row 4") {
		t.Errorf("first error should name row 4, got %q", lines[0])
	}
}

func TestExportReportRoundTrip(t *testing.T) {
	path := writeFile(t, "customers.csv", sampleCSV)
	errLog := NewLog(filepath.Join(t.TempDir(), "errors.txt"))

	reg := ledger.NewRegistry()
	if _, err := ImportCustomers(path, reg, ledger.DefaultScorer(), errLog); err != nil {
		t.Fatalf("failed to import: %v", err)
	}

	// Mutate a balance so the report reflects state, not the input file.
	c, err := reg.FindCustomer("marialopez")
	if err != nil {
		t.Fatalf("failed to find customer: %v", err)
	}
	acc, err := c.Account(101)
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}
	if err := c.Deposit(acc, decimal.RequireFromString("25.00")); err != nil {
		t.Fatalf("failed to deposit: %v", err)
	}

	out := filepath.Join(t.TempDir(), "report.csv")
	if err := ExportReport(out, reg); err != nil {
		t.Fatalf("failed to export: %v", err)
	}

	reg2 := ledger.NewRegistry()
	if _, err := ImportCustomers(out, reg2, ledger.DefaultScorer(), errLog); err != nil {
		t.Fatalf("failed to re-import: %v", err)
	}
	acc2, err := reg2.FindAccount(101)
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}
	if want := decimal.RequireFromString("525.00"); !acc2.Balance().Equal(want) {
		t.Errorf("wrong balance after round trip, got %s want %s", acc2.Balance(), want)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading report: %v", err)
	}
	if !strings.Contains(string(data), "Maria") {
		t.Error("report names should be capitalized")
	}
}

func TestLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.txt")
	log := NewLog(path)

	if err := log.Append("Maria Lopez deposited $25.00 into account 101"); err != nil {
		t.Fatalf("failed to append: %v", err)
	}
	if err := log.Append("Maria Lopez withdrew $5.00 from account 101"); err != nil {
		t.Fatalf("failed to append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want %d", len(lines), 2)
	}
	if !strings.HasSuffix(lines[0], "account 101") {
		t.Errorf("unexpected line %q", lines[0])
	}
}
