package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/elpasominers/bank/internal/web"
	"go.opentelemetry.io/otel/trace"
)

func middlewareWeb(tracer trace.Tracer, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "web")
		defer span.End()

		v := web.Values{
			TraceID: span.SpanContext().TraceID().String(),
			Tracer:  tracer,
			Now:     time.Now().UTC(),
		}
		ctx = web.SetValues(ctx, &v)
		r = r.WithContext(ctx)

		h(w, r)
	})
}

// middlewareAuth validates the Bearer token and resolves the authenticated
// customer into the request context.
func (s *Server) middlewareAuth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}

		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			s.log.Error("validating token", "ERROR", err)
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		c, err := s.reg.FindCustomerByID(claims.CustomerID)
		if err != nil {
			s.log.Error("token customer not registered", "customer_id", claims.CustomerID)
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		h(w, r.WithContext(setCustomer(r.Context(), c)))
	}
}

type ctxKey int

const customerKey ctxKey = 1

func setCustomer(ctx context.Context, c *ledger.Customer) context.Context {
	return context.WithValue(ctx, customerKey, c)
}

func getCustomer(ctx context.Context) (*ledger.Customer, error) {
	c, ok := ctx.Value(customerKey).(*ledger.Customer)
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return c, nil
}
