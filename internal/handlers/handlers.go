// Package handlers exposes the ledger over HTTP. Mutations run against the
// in-memory registry and are synced to the store after they commit;
// statements are served through the cache when one is wired.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elpasominers/bank/internal/auth"
	"github.com/elpasominers/bank/internal/cache"
	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
)

func APIMux(s *Server, tracer trace.Tracer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /login", middlewareWeb(tracer, s.Login))
	mux.Handle("POST /customers", middlewareWeb(tracer, s.Onboard))
	mux.Handle("GET /accounts", middlewareWeb(tracer, s.middlewareAuth(s.Accounts)))
	mux.Handle("POST /accounts/{number}/deposits", middlewareWeb(tracer, s.middlewareAuth(s.Deposit)))
	mux.Handle("POST /accounts/{number}/withdrawals", middlewareWeb(tracer, s.middlewareAuth(s.Withdraw)))
	mux.Handle("POST /transfers", middlewareWeb(tracer, s.middlewareAuth(s.Transfer)))
	mux.Handle("POST /sends", middlewareWeb(tracer, s.middlewareAuth(s.Send)))
	mux.Handle("GET /accounts/{number}/statement", middlewareWeb(tracer, s.middlewareAuth(s.Statement)))

	return mux
}

// Storer persists registry changes. A nil Storer disables persistence.
type Storer interface {
	AddCustomer(ctx context.Context, c *ledger.Customer) error
	SyncAccount(ctx context.Context, a *ledger.Account) error
}

// Cacher serves and invalidates cached statements. A nil Cacher disables
// caching.
type Cacher interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// errBadCredentials keeps unknown-customer and wrong-password login
// failures indistinguishable.
var errBadCredentials = errors.New("bad credentials")

type Server struct {
	log   *slog.Logger
	reg   *ledger.Registry
	auth  *auth.Auth
	store Storer
	cache Cacher
}

func NewServer(log *slog.Logger, reg *ledger.Registry, a *auth.Auth, store Storer, cache Cacher) *Server {
	return &Server{log: log, reg: reg, auth: a, store: store, cache: cache}
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, req LoginReq) (LoginResp, error) {
			c, err := s.findByIDOrName(req.Customer)
			if err != nil {
				return LoginResp{}, errBadCredentials
			}
			if !c.VerifyPassword(req.Password) {
				return LoginResp{}, errBadCredentials
			}

			token, err := s.auth.GenerateToken(c.ID())
			if err != nil {
				return LoginResp{}, err
			}
			return LoginResp{Token: token}, nil
		},
	)
}

func (s *Server) Onboard(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, req OnboardReq) (CustomerResp, error) {
			c, err := ledger.NewCustomer(ledger.Profile{
				ID:        req.ID,
				FirstName: req.FirstName,
				LastName:  req.LastName,
				DOB:       req.DOB,
				Address:   req.Address,
				Phone:     req.Phone,
				Password:  req.Password,
			}, ledger.DefaultScorer())
			if err != nil {
				return CustomerResp{}, err
			}

			accounts := make([]*ledger.Account, 0, len(req.Accounts))
			for _, ar := range req.Accounts {
				a, err := toAccount(ar)
				if err != nil {
					return CustomerResp{}, err
				}
				accounts = append(accounts, a)
			}

			if err := s.reg.Onboard(c, accounts...); err != nil {
				return CustomerResp{}, err
			}
			if s.store != nil {
				if err := s.store.AddCustomer(ctx, c); err != nil {
					// The registry entry stays; hydration from the
					// database reconciles on the next start.
					s.log.Error("persisting onboarded customer", "customer_id", c.ID(), "ERROR", err)
					return CustomerResp{}, err
				}
			}

			return toCustomerResp(c), nil
		},
	)
}

func (s *Server) Accounts(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, _ struct{}) ([]AccountResp, error) {
			c, err := getCustomer(ctx)
			if err != nil {
				return nil, err
			}
			return toAccountResps(c.Accounts()), nil
		},
	)
}

func (s *Server) Deposit(w http.ResponseWriter, r *http.Request) {
	s.serveMutation(w, r, func(c *ledger.Customer, acc *ledger.Account, amount decimal.Decimal) error {
		return c.Deposit(acc, amount)
	})
}

func (s *Server) Withdraw(w http.ResponseWriter, r *http.Request) {
	s.serveMutation(w, r, func(c *ledger.Customer, acc *ledger.Account, amount decimal.Decimal) error {
		return c.Withdraw(acc, amount)
	})
}

// serveMutation is the shared deposit/withdrawal flow: resolve the account
// from the path, apply the operation and sync the result.
func (s *Server) serveMutation(w http.ResponseWriter, r *http.Request, op func(*ledger.Customer, *ledger.Account, decimal.Decimal) error) {
	serveJSON(w, r, s,
		func(ctx context.Context, req AmountReq) (AccountResp, error) {
			c, err := getCustomer(ctx)
			if err != nil {
				return AccountResp{}, err
			}
			acc, err := s.pathAccount(r)
			if err != nil {
				return AccountResp{}, err
			}
			amount, err := ledger.ParseAmount(req.Amount)
			if err != nil {
				return AccountResp{}, err
			}

			if err := op(c, acc, amount); err != nil {
				return AccountResp{}, err
			}
			s.syncAccounts(ctx, acc)

			return toAccountResp(acc), nil
		},
	)
}

func (s *Server) Transfer(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, req TransferReq) (MoveResp, error) {
			c, err := getCustomer(ctx)
			if err != nil {
				return MoveResp{}, err
			}
			src, err := s.reg.FindAccount(req.From)
			if err != nil {
				return MoveResp{}, err
			}
			dst, err := s.reg.FindAccount(req.To)
			if err != nil {
				return MoveResp{}, err
			}
			amount, err := ledger.ParseAmount(req.Amount)
			if err != nil {
				return MoveResp{}, err
			}

			if err := c.Transfer(src, dst, amount); err != nil {
				return MoveResp{}, err
			}
			s.syncAccounts(ctx, src, dst)

			return MoveResp{From: toAccountResp(src), To: toAccountResp(dst)}, nil
		},
	)
}

func (s *Server) Send(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, req SendReq) (MoveResp, error) {
			c, err := getCustomer(ctx)
			if err != nil {
				return MoveResp{}, err
			}
			src, err := s.reg.FindAccount(req.From)
			if err != nil {
				return MoveResp{}, err
			}
			dst, err := s.reg.FindAccount(req.To)
			if err != nil {
				return MoveResp{}, err
			}
			to, err := s.reg.FindCustomerByID(req.ToCustomer)
			if err != nil {
				return MoveResp{}, err
			}
			amount, err := ledger.ParseAmount(req.Amount)
			if err != nil {
				return MoveResp{}, err
			}

			if err := c.Send(src, dst, amount, to); err != nil {
				return MoveResp{}, err
			}
			s.syncAccounts(ctx, src, dst)

			return MoveResp{From: toAccountResp(src), To: toAccountResp(dst)}, nil
		},
	)
}

func (s *Server) Statement(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, r, s,
		func(ctx context.Context, _ struct{}) (StatementResp, error) {
			c, err := getCustomer(ctx)
			if err != nil {
				return StatementResp{}, err
			}
			acc, err := s.pathAccount(r)
			if err != nil {
				return StatementResp{}, err
			}
			if !c.Owns(acc) {
				return StatementResp{}, ledger.ErrNotOwned
			}

			key := cache.StatementKey(acc.Number())
			if s.cache != nil {
				var resp StatementResp
				hit, err := s.cache.GetJSON(ctx, key, &resp)
				if err != nil {
					s.log.Error("statement cache get", "key", key, "ERROR", err)
				}
				if hit {
					return resp, nil
				}
			}

			resp := toStatementResp(acc)
			if s.cache != nil {
				if err := s.cache.SetJSON(ctx, key, resp, cache.StatementTTL); err != nil {
					s.log.Error("statement cache set", "key", key, "ERROR", err)
				}
			}
			return resp, nil
		},
	)
}

// pathAccount resolves the {number} path value against the registry. A
// registered account owned by someone else surfaces later as ErrNotOwned.
func (s *Server) pathAccount(r *http.Request) (*ledger.Account, error) {
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil {
		return nil, ledger.ErrNotFound
	}
	return s.reg.FindAccount(number)
}

func (s *Server) findByIDOrName(customer string) (*ledger.Customer, error) {
	if id, err := strconv.Atoi(customer); err == nil {
		return s.reg.FindCustomerByID(id)
	}
	key := strings.ToLower(strings.ReplaceAll(customer, " ", ""))
	return s.reg.FindCustomer(key)
}

// syncAccounts persists mutated accounts and drops their cached statements.
// Both are best effort; the in-memory ledger already committed.
func (s *Server) syncAccounts(ctx context.Context, accounts ...*ledger.Account) {
	for _, a := range accounts {
		if s.store != nil {
			if err := s.store.SyncAccount(ctx, a); err != nil {
				s.log.Error("syncing account", "number", a.Number(), "ERROR", err)
			}
		}
		if s.cache != nil {
			if err := s.cache.Delete(ctx, cache.StatementKey(a.Number())); err != nil {
				s.log.Error("invalidating statement cache", "number", a.Number(), "ERROR", err)
			}
		}
	}
}

func toAccount(ar OnboardAccountReq) (*ledger.Account, error) {
	kind, err := ledger.ParseKind(ar.Kind)
	if err != nil {
		return nil, err
	}
	balance, err := startingBalance(ar.Balance)
	if err != nil {
		return nil, err
	}

	switch kind {
	case ledger.Checking:
		return ledger.NewChecking(ar.Number, balance)
	case ledger.Savings:
		return ledger.NewSavings(ar.Number, balance)
	default:
		limit, err := startingBalance(ar.Limit)
		if err != nil {
			return nil, err
		}
		return ledger.NewCredit(ar.Number, balance, limit)
	}
}

// startingBalance parses an onboarding balance. Unlike operation amounts,
// zero is allowed.
func startingBalance(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil || d.Sign() < 0 {
		return decimal.Decimal{}, ledger.ErrInvalidAmount
	}
	return d, nil
}

func serveJSON[Req any, Resp any](
	w http.ResponseWriter,
	r *http.Request,
	s *Server,
	fn func(ctx context.Context, req Req) (Resp, error),
) {
	var req Req
	if r.Method != http.MethodGet {
		if r.Header.Get("Content-Type") != "application/json" {
			s.log.Error("request must be a json")
			http.Error(w, "request must be a json", http.StatusBadRequest)
			return
		}
		err := json.NewDecoder(r.Body).Decode(&req)
		r.Body.Close()
		if err != nil {
			s.log.Error("decoding json", "ERROR", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
	}

	resp, err := fn(r.Context(), req)
	if err != nil {
		s.log.Error("fn", "ERROR", err)
		switch {
		case errors.Is(err, errBadCredentials):
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return

		case errors.Is(err, ledger.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
			return

		case errors.Is(err, ledger.ErrInvalidAmount):
			http.Error(w, err.Error(), http.StatusBadRequest)
			return

		case errors.Is(err, ledger.ErrNotOwned):
			http.Error(w, err.Error(), http.StatusForbidden)
			return

		case errors.Is(err, ledger.ErrDuplicateIdentity):
			http.Error(w, err.Error(), http.StatusConflict)
			return

		case errors.Is(err, ledger.ErrInsufficientFunds),
			errors.Is(err, ledger.ErrLimitExceeded),
			errors.Is(err, ledger.ErrSameAccount),
			errors.Is(err, ledger.ErrSameOwner):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return

		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	bs, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to encode response", "ERROR", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(bs)
}
