// Package cli is the teller console: a line-oriented menu over the registry
// with the three-attempt prompt loops tellers expect, writing every applied
// operation to the transaction log and every refusal to the error log.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/elpasominers/bank/internal/flatfile"
	"github.com/shopspring/decimal"
)

// maxAttempts bounds every prompt loop.
const maxAttempts = 3

type UI struct {
	reg    *ledger.Registry
	in     *bufio.Reader
	out    io.Writer
	txLog  *flatfile.Log
	errLog *flatfile.Log
}

func NewUI(reg *ledger.Registry, in *bufio.Reader, out io.Writer, txLog, errLog *flatfile.Log) *UI {
	return &UI{reg: reg, in: in, out: out, txLog: txLog, errLog: errLog}
}

// Run drives the top-level menu until the teller exits.
func (ui *UI) Run() {
	for {
		fmt.Fprintln(ui.out, "\n=== Teller ===")
		fmt.Fprintln(ui.out, "1) Identify customer")
		fmt.Fprintln(ui.out, "0) Exit")
		fmt.Fprint(ui.out, "> ")

		switch ui.readLine() {
		case "1":
			if c := ui.identify(); c != nil {
				ui.session(c)
			}
		default:
			return
		}
	}
}

// identify resolves a customer by name or id and verifies the password,
// each within three attempts.
func (ui *UI) identify() *ledger.Customer {
	var c *ledger.Customer
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(ui.out, "Customer name or id: ")
		entry := ui.readLine()

		var err error
		c, err = ui.findByIDOrName(entry)
		if err == nil {
			break
		}
		c = nil
		fmt.Fprintf(ui.out, "No customer matches %q.\n", entry)
	}
	if c == nil {
		ui.logErr("Failed to identify customer. Reason: no match within 3 attempts.")
		return nil
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(ui.out, "Password: ")
		if c.VerifyPassword(ui.readLine()) {
			fmt.Fprintf(ui.out, "Welcome, %s.\n", c.FullName())
			return c
		}
		fmt.Fprintln(ui.out, "Wrong password.")
	}
	ui.logErr(fmt.Sprintf("Failed to identify %s. Reason: wrong password 3 times.", c.FullName()))
	return nil
}

func (ui *UI) session(c *ledger.Customer) {
	for {
		fmt.Fprintf(ui.out, "\n=== %s ===\n", c.FullName())
		fmt.Fprintln(ui.out, "1) View accounts")
		fmt.Fprintln(ui.out, "2) Deposit")
		fmt.Fprintln(ui.out, "3) Withdraw")
		fmt.Fprintln(ui.out, "4) Transfer between own accounts")
		fmt.Fprintln(ui.out, "5) Send to another customer")
		fmt.Fprintln(ui.out, "6) Statement")
		fmt.Fprintln(ui.out, "0) Done")
		fmt.Fprint(ui.out, "> ")

		switch ui.readLine() {
		case "1":
			ui.viewAccounts(c)
		case "2":
			ui.deposit(c)
		case "3":
			ui.withdraw(c)
		case "4":
			ui.transfer(c)
		case "5":
			ui.send(c)
		case "6":
			ui.statement(c)
		default:
			return
		}
	}
}

func (ui *UI) viewAccounts(c *ledger.Customer) {
	for _, a := range c.Accounts() {
		ui.printAccount(a)
	}
}

func (ui *UI) printAccount(a *ledger.Account) {
	if a.Kind() == ledger.Credit {
		fmt.Fprintf(ui.out, "%s %d: debt $%s of $%s limit ($%s available)\n",
			a.Kind(), a.Number(),
			ledger.FormatAmount(a.Balance()), ledger.FormatAmount(a.Limit()),
			ledger.FormatAmount(a.Available()))
		return
	}
	fmt.Fprintf(ui.out, "%s %d: $%s\n", a.Kind(), a.Number(), ledger.FormatAmount(a.Balance()))
}

func (ui *UI) deposit(c *ledger.Customer) {
	acc := ui.promptAccountOf(c, "Deposit into account: ")
	if acc == nil {
		return
	}
	amount, ok := ui.promptAmount()
	if !ok {
		return
	}

	if err := c.Deposit(acc, amount); err != nil {
		ui.refuse(fmt.Sprintf("%s failed to deposit $%s into account %d", c.FullName(), ledger.FormatAmount(amount), acc.Number()), err)
		return
	}
	ui.applied(fmt.Sprintf("%s deposited $%s into account %d", c.FullName(), ledger.FormatAmount(amount), acc.Number()))
	ui.printAccount(acc)
}

func (ui *UI) withdraw(c *ledger.Customer) {
	acc := ui.promptAccountOf(c, "Withdraw from account: ")
	if acc == nil {
		return
	}
	amount, ok := ui.promptAmount()
	if !ok {
		return
	}

	if err := c.Withdraw(acc, amount); err != nil {
		ui.refuse(fmt.Sprintf("%s failed to withdraw $%s from account %d", c.FullName(), ledger.FormatAmount(amount), acc.Number()), err)
		return
	}
	ui.applied(fmt.Sprintf("%s withdrew $%s from account %d", c.FullName(), ledger.FormatAmount(amount), acc.Number()))
	ui.printAccount(acc)
}

func (ui *UI) transfer(c *ledger.Customer) {
	src := ui.promptAccountOf(c, "From account: ")
	if src == nil {
		return
	}
	dst := ui.promptAccountOf(c, "To account: ")
	if dst == nil {
		return
	}
	amount, ok := ui.promptAmount()
	if !ok {
		return
	}

	if err := c.Transfer(src, dst, amount); err != nil {
		ui.refuse(fmt.Sprintf("%s failed to transfer $%s from account %d to account %d", c.FullName(), ledger.FormatAmount(amount), src.Number(), dst.Number()), err)
		return
	}
	ui.applied(fmt.Sprintf("%s transferred $%s from account %d to account %d", c.FullName(), ledger.FormatAmount(amount), src.Number(), dst.Number()))
	ui.printAccount(src)
	ui.printAccount(dst)
}

func (ui *UI) send(c *ledger.Customer) {
	src := ui.promptAccountOf(c, "From account: ")
	if src == nil {
		return
	}

	var to *ledger.Customer
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(ui.out, "Recipient name or id: ")
		entry := ui.readLine()
		var err error
		to, err = ui.findByIDOrName(entry)
		if err == nil {
			break
		}
		to = nil
		fmt.Fprintf(ui.out, "No customer matches %q.\n", entry)
	}
	if to == nil {
		return
	}

	dst := ui.promptAccountOf(to, "Recipient account: ")
	if dst == nil {
		return
	}
	amount, ok := ui.promptAmount()
	if !ok {
		return
	}

	if err := c.Send(src, dst, amount, to); err != nil {
		ui.refuse(fmt.Sprintf("%s failed to send $%s to %s", c.FullName(), ledger.FormatAmount(amount), to.FullName()), err)
		return
	}
	ui.applied(fmt.Sprintf("%s sent $%s from account %d to %s's account %d", c.FullName(), ledger.FormatAmount(amount), src.Number(), to.FullName(), dst.Number()))
	ui.printAccount(src)
}

func (ui *UI) statement(c *ledger.Customer) {
	acc := ui.promptAccountOf(c, "Statement for account: ")
	if acc == nil {
		return
	}
	ui.printAccount(acc)
	for _, t := range acc.Transactions() {
		fmt.Fprintf(ui.out, "%s  %-40s %10s  balance %s\n",
			t.Date.Format("2006-01-02 15:04:05"), t.Description,
			t.Amount.StringFixed(2), ledger.FormatAmount(t.Balance))
	}
}

// promptAccountOf asks for an account number owned by c, three attempts.
func (ui *UI) promptAccountOf(c *ledger.Customer, prompt string) *ledger.Account {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(ui.out, prompt)
		entry := ui.readLine()
		number, err := strconv.Atoi(entry)
		if err == nil {
			if a, err := c.Account(number); err == nil {
				return a
			}
		}
		fmt.Fprintf(ui.out, "%s has no account %q.\n", c.FullName(), entry)
	}
	return nil
}

// promptAmount asks for a positive dollar amount, three attempts.
func (ui *UI) promptAmount() (decimal.Decimal, bool) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		fmt.Fprint(ui.out, "Amount: $")
		entry := ui.readLine()
		amount, err := ledger.ParseAmount(entry)
		if err == nil {
			return amount, true
		}
		fmt.Fprintf(ui.out, "%q is not a valid amount.\n", entry)
	}
	return decimal.Decimal{}, false
}

func (ui *UI) findByIDOrName(entry string) (*ledger.Customer, error) {
	if id, err := strconv.Atoi(entry); err == nil {
		return ui.reg.FindCustomerByID(id)
	}
	key := strings.ToLower(strings.ReplaceAll(entry, " ", ""))
	return ui.reg.FindCustomer(key)
}

func (ui *UI) applied(msg string) {
	fmt.Fprintln(ui.out, msg+".")
	if err := ui.txLog.Append(msg); err != nil {
		fmt.Fprintf(ui.out, "warning: transaction log: %v\n", err)
	}
}

func (ui *UI) refuse(msg string, err error) {
	fmt.Fprintf(ui.out, "%s. Reason: %v.\n", msg, err)
	ui.logErr(fmt.Sprintf("%s. Reason: %v.", msg, err))
}

func (ui *UI) logErr(msg string) {
	if err := ui.errLog.Append(msg); err != nil {
		fmt.Fprintf(ui.out, "warning: error log: %v\n", err)
	}
}

func (ui *UI) readLine() string {
	line, err := ui.in.ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	return strings.TrimSpace(line)
}
