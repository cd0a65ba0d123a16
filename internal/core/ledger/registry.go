package ledger

import (
	"sort"
	"sync"
)

// Registry indexes customers and accounts by their identifiers. It is an
// explicit value constructed once at startup and handed to whatever needs
// lookups; there is no process-wide instance.
type Registry struct {
	mu             sync.RWMutex
	accounts       map[int]*Account
	customersByID  map[int]*Customer
	customersByKey map[string]*Customer
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts:       make(map[int]*Account),
		customersByID:  make(map[int]*Customer),
		customersByKey: make(map[string]*Customer),
	}
}

// InsertAccount adds the account if its number is absent. It reports false,
// leaving the registry untouched, when the number is already registered.
// Account numbers are globally unique across all kinds.
func (r *Registry) InsertAccount(a *Account) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.number]; ok {
		return false
	}
	r.accounts[a.number] = a
	return true
}

// InsertCustomer adds the customer if both its id and its name key are
// absent. It reports false, leaving the registry untouched, otherwise.
func (r *Registry) InsertCustomer(c *Customer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.customersByID[c.id]; ok {
		return false
	}
	if _, ok := r.customersByKey[c.Key()]; ok {
		return false
	}
	r.customersByID[c.id] = c
	r.customersByKey[c.Key()] = c
	return true
}

// FindAccount looks an account up by number.
func (r *Registry) FindAccount(number int) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[number]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

// FindCustomer looks a customer up by name key.
func (r *Registry) FindCustomer(key string) (*Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customersByKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// FindCustomerByID looks a customer up by id.
func (r *Registry) FindCustomerByID(id int) (*Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.customersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Customers returns all registered customers ordered by id, for report
// export and registry hydration round trips.
func (r *Registry) Customers() []*Customer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Customer, 0, len(r.customersByID))
	for _, c := range r.customersByID {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Onboard registers a customer and attaches the accounts to both the
// customer and the registry in one step. It fails with ErrDuplicateIdentity
// before any account is attached when the customer id or name key is taken;
// an account whose number is already registered is skipped the same way the
// onboarding files skip duplicate rows.
func (r *Registry) Onboard(c *Customer, accounts ...*Account) error {
	if !r.InsertCustomer(c) {
		return ErrDuplicateIdentity
	}
	for _, a := range accounts {
		if !r.InsertAccount(a) {
			continue
		}
		if err := c.AddAccount(a); err != nil {
			return err
		}
	}
	return nil
}
