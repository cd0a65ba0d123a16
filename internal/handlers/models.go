package handlers

import (
	"time"

	"github.com/elpasominers/bank/internal/core/ledger"
)

type LoginReq struct {
	// Customer is the numeric customer id or the customer's name
	// (case-insensitive, spaces ignored).
	Customer string `json:"customer"`
	Password string `json:"password"`
}

type LoginResp struct {
	Token string `json:"token"`
}

type OnboardAccountReq struct {
	Number  int    `json:"number"`
	Kind    string `json:"kind"`
	Balance string `json:"balance"`
	Limit   string `json:"credit_limit,omitempty"`
}

type OnboardReq struct {
	ID        int                 `json:"id"`
	FirstName string              `json:"first_name"`
	LastName  string              `json:"last_name"`
	DOB       string              `json:"dob"`
	Address   string              `json:"address"`
	Phone     string              `json:"phone"`
	Password  string              `json:"password"`
	Accounts  []OnboardAccountReq `json:"accounts"`
}

type CustomerResp struct {
	ID          int           `json:"id"`
	Name        string        `json:"name"`
	CreditScore int           `json:"credit_score,omitempty"`
	Accounts    []AccountResp `json:"accounts"`
}

type AccountResp struct {
	Number    int    `json:"number"`
	Kind      string `json:"kind"`
	Balance   string `json:"balance"`
	Available string `json:"available"`
	Limit     string `json:"credit_limit,omitempty"`
}

type AmountReq struct {
	Amount string `json:"amount"`
}

type TransferReq struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Amount string `json:"amount"`
}

type SendReq struct {
	From       int    `json:"from"`
	To         int    `json:"to"`
	ToCustomer int    `json:"to_customer"`
	Amount     string `json:"amount"`
}

type MoveResp struct {
	From AccountResp `json:"from"`
	To   AccountResp `json:"to"`
}

type StatementResp struct {
	Account      AccountResp       `json:"account"`
	Transactions []TransactionResp `json:"transactions"`
}

type TransactionResp struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      string    `json:"amount"`
	Balance     string    `json:"balance"`
	Date        time.Time `json:"date"`
}

func toAccountResp(a *ledger.Account) AccountResp {
	resp := AccountResp{
		Number:    a.Number(),
		Kind:      a.Kind().String(),
		Balance:   ledger.FormatAmount(a.Balance()),
		Available: ledger.FormatAmount(a.Available()),
	}
	if a.Kind() == ledger.Credit {
		resp.Limit = ledger.FormatAmount(a.Limit())
	}
	return resp
}

func toAccountResps(accounts []*ledger.Account) []AccountResp {
	slice := make([]AccountResp, len(accounts))
	for i, a := range accounts {
		slice[i] = toAccountResp(a)
	}
	return slice
}

func toCustomerResp(c *ledger.Customer) CustomerResp {
	return CustomerResp{
		ID:          c.ID(),
		Name:        c.FullName(),
		CreditScore: c.CreditScore(),
		Accounts:    toAccountResps(c.Accounts()),
	}
}

func toStatementResp(a *ledger.Account) StatementResp {
	ts := a.Transactions()
	slice := make([]TransactionResp, len(ts))
	for i, t := range ts {
		slice[i] = TransactionResp{
			ID:          t.ID.String(),
			Description: t.Description,
			Amount:      ledger.FormatAmount(t.Amount),
			Balance:     ledger.FormatAmount(t.Balance),
			Date:        t.Date,
		}
	}
	return StatementResp{
		Account:      toAccountResp(a),
		Transactions: slice,
	}
}
