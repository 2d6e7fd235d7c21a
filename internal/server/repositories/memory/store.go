// Package memory is an in-process RepositoryManager. A single mutex stands in
// for the database: it is held for the whole of WithTx, so transactions are
// serializable, and a failed transaction restores the pre-transaction state.
// Used by tests and by the server when started with the "memory" DSN.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/entitlements"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/leads"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/users"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type entitlementKey struct {
	userID, leadID, fieldGroup string
}

type state struct {
	users        map[string]models.User
	leads        map[string]models.Lead
	transactions []models.Transaction
	entitlements map[entitlementKey]models.Entitlement
}

func (s *state) clone() *state {
	c := &state{
		users:        make(map[string]models.User, len(s.users)),
		leads:        make(map[string]models.Lead, len(s.leads)),
		transactions: append([]models.Transaction(nil), s.transactions...),
		entitlements: make(map[entitlementKey]models.Entitlement, len(s.entitlements)),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.leads {
		c.leads[k] = v
	}
	for k, v := range s.entitlements {
		c.entitlements[k] = v
	}
	return c
}

// Store implements repomanager.RepositoryManager in memory.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ repomanager.RepositoryManager = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		st: &state{
			users:        map[string]models.User{},
			leads:        map[string]models.Lead{},
			entitlements: map[entitlementKey]models.Entitlement{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) RunMigrations(context.Context) error { return nil }

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Users() users.Repository               { return userRepo{&view{s: s}} }
func (s *Store) Ledger() ledger.Repository             { return ledgerRepo{&view{s: s}} }
func (s *Store) Entitlements() entitlements.Repository { return entitlementRepo{&view{s: s}} }
func (s *Store) Leads() leads.Repository               { return leadRepo{&view{s: s}} }

// WithTx holds the store lock while fn runs. If fn fails or panics the
// state is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			s.st = snapshot
		}
	}()

	return fn(ctx, txRepositories{v: &view{s: s, inTx: true}})
}

type txRepositories struct {
	v *view
}

func (r txRepositories) Users() users.Repository               { return userRepo{r.v} }
func (r txRepositories) Ledger() ledger.Repository             { return ledgerRepo{r.v} }
func (r txRepositories) Entitlements() entitlements.Repository { return entitlementRepo{r.v} }
func (r txRepositories) Leads() leads.Repository               { return leadRepo{r.v} }

// view is a handle on the store. Outside a transaction each repository call
// takes the store lock itself.
type view struct {
	s    *Store
	inTx bool
}

func (v *view) lock() func() {
	if v.inTx {
		return func() {}
	}
	v.s.mu.Lock()
	return v.s.mu.Unlock
}

type (
	userRepo        struct{ *view }
	ledgerRepo      struct{ *view }
	entitlementRepo struct{ *view }
	leadRepo        struct{ *view }
)

func (v userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	defer v.lock()()
	for _, u := range v.s.st.users {
		if u.UserName == user.UserName {
			return nil, fmt.Errorf("db error: username %q already exists", user.UserName)
		}
	}
	user.ID = uuid.NewString()
	user.TokenBalance = decimal.Zero
	user.CreatedAt = v.s.now()
	v.s.st.users[user.ID] = *user
	return user, nil
}

func (v userRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	defer v.lock()()
	for _, u := range v.s.st.users {
		if u.UserName == login {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (v userRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	defer v.lock()()
	u, ok := v.s.st.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (v ledgerRepo) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	defer v.lock()()
	u, ok := v.s.st.users[userID]
	if !ok {
		return decimal.Zero, common.ErrorNotFound
	}
	return u.TokenBalance, nil
}

// LockBalance is GetBalance: inside WithTx the whole store is locked already.
func (v ledgerRepo) LockBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	return v.GetBalance(ctx, userID)
}

func (v ledgerRepo) DebitAndRecord(ctx context.Context, userID string, amount decimal.Decimal, leadID, fieldGroup string) (*models.Transaction, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}
	defer v.lock()()

	u, ok := v.s.st.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if u.TokenBalance.LessThan(amount) {
		return nil, common.ErrInsufficientBalance
	}
	return v.apply(u, models.Transaction{
		UserID:     userID,
		LeadID:     leadID,
		FieldGroup: fieldGroup,
		Kind:       common.TransactionKindDebit,
		Amount:     amount.Neg(),
	}), nil
}

func (v ledgerRepo) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*models.Transaction, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}
	defer v.lock()()

	u, ok := v.s.st.users[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return v.apply(u, models.Transaction{
		UserID: userID,
		Kind:   common.TransactionKindCredit,
		Reason: reason,
		Amount: amount,
	}), nil
}

func (v ledgerRepo) apply(u models.User, t models.Transaction) *models.Transaction {
	u.TokenBalance = u.TokenBalance.Add(t.Amount)
	v.s.st.users[u.ID] = u

	t.ID = uuid.NewString()
	t.BalanceAfter = u.TokenBalance
	t.CreatedAt = v.s.now()
	v.s.st.transactions = append(v.s.st.transactions, t)
	return &t
}

func (v ledgerRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	defer v.lock()()
	var result []*models.Transaction
	for i := len(v.s.st.transactions) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		if t := v.s.st.transactions[i]; t.UserID == userID {
			result = append(result, &t)
		}
	}
	return result, nil
}

func (v ledgerRepo) SumAmounts(ctx context.Context, userID string) (decimal.Decimal, error) {
	defer v.lock()()
	sum := decimal.Zero
	for _, t := range v.s.st.transactions {
		if t.UserID == userID {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (v ledgerRepo) DebitsWithoutGrant(ctx context.Context, userID string) ([]*models.Transaction, error) {
	defer v.lock()()
	var result []*models.Transaction
	for _, t := range v.s.st.transactions {
		if t.UserID != userID || t.Kind != common.TransactionKindDebit {
			continue
		}
		if _, ok := v.s.st.entitlements[entitlementKey{t.UserID, t.LeadID, t.FieldGroup}]; !ok {
			result = append(result, &t)
		}
	}
	return result, nil
}

func (v entitlementRepo) Has(ctx context.Context, userID, leadID, fieldGroup string) (bool, error) {
	defer v.lock()()
	_, ok := v.s.st.entitlements[entitlementKey{userID, leadID, fieldGroup}]
	return ok, nil
}

func (v entitlementRepo) Grant(ctx context.Context, userID, leadID, fieldGroup string) (*models.Entitlement, bool, error) {
	defer v.lock()()
	key := entitlementKey{userID, leadID, fieldGroup}
	if e, ok := v.s.st.entitlements[key]; ok {
		return &e, false, nil
	}
	e := models.Entitlement{UserID: userID, LeadID: leadID, FieldGroup: fieldGroup, GrantedAt: v.s.now()}
	v.s.st.entitlements[key] = e
	return &e, true, nil
}

func (v entitlementRepo) ListGroups(ctx context.Context, userID, leadID string) ([]string, error) {
	defer v.lock()()
	groups := []string{}
	for k := range v.s.st.entitlements {
		if k.userID == userID && k.leadID == leadID {
			groups = append(groups, k.fieldGroup)
		}
	}
	sort.Strings(groups)
	return groups, nil
}

func (v entitlementRepo) GrantsWithoutDebit(ctx context.Context, userID string) ([]*models.Entitlement, error) {
	defer v.lock()()
	debited := map[entitlementKey]bool{}
	for _, t := range v.s.st.transactions {
		if t.UserID == userID && t.Kind == common.TransactionKindDebit {
			debited[entitlementKey{t.UserID, t.LeadID, t.FieldGroup}] = true
		}
	}
	var result []*models.Entitlement
	for k, e := range v.s.st.entitlements {
		if k.userID == userID && !debited[k] {
			result = append(result, &e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GrantedAt.Before(result[j].GrantedAt) })
	return result, nil
}

func (v leadRepo) Get(ctx context.Context, id string) (*models.Lead, error) {
	defer v.lock()()
	l, ok := v.s.st.leads[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &l, nil
}

func (v leadRepo) Create(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	defer v.lock()()
	lead.ID = uuid.NewString()
	lead.CreatedAt = v.s.now()
	if lead.Status == "" {
		lead.Status = "new"
	}
	v.s.st.leads[lead.ID] = *lead
	return lead, nil
}
