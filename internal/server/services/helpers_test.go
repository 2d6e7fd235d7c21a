package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/pricing"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/entitlements"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/repomanager"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *memory.Store
	user  *models.User
	lead  *models.Lead
}

func newFixture(t *testing.T, balance string) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	u, err := store.Users().Create(ctx, &models.User{UserName: "alice"})
	require.NoError(t, err)
	if b := decimal.RequireFromString(balance); b.IsPositive() {
		_, err = store.Ledger().Credit(ctx, u.ID, b, "opening balance")
		require.NoError(t, err)
	}

	return &fixture{store: store, user: u, lead: addLead(t, store)}
}

func addLead(t *testing.T, store *memory.Store) *models.Lead {
	t.Helper()
	l, err := store.Leads().Create(context.Background(), &models.Lead{
		FirstName:           "Ada",
		LastName:            "Lovelace",
		Title:               "CTO",
		Company:             "Analytical Engines",
		Email:               "ada@engines.example",
		PersonalEmail:       "ada@home.example",
		MobilePhone:         "+44 7700 900000",
		LinkedInURL:         "https://linkedin.example/ada",
		PsychometricProfile: json.RawMessage(`{"openness":0.9}`),
	})
	require.NoError(t, err)
	return l
}

func (f *fixture) balance(t *testing.T) string {
	t.Helper()
	b, err := f.store.Ledger().GetBalance(context.Background(), f.user.ID)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func newPurchaseService(t *testing.T, m repomanager.RepositoryManager, cache EntitlementCache) *PurchaseService {
	t.Helper()
	prices, err := pricing.New(pricing.DefaultPrices())
	require.NoError(t, err)
	return NewPurchaseService(m, prices, cache, logging.Nop{})
}

// faultyManager wraps the memory store: the first failTx calls to WithTx
// fail with a concurrency conflict, and wrap can swap repositories inside
// the transaction.
type faultyManager struct {
	*memory.Store
	failTx  int32
	txCalls atomic.Int32
	wrap    func(repomanager.Repositories) repomanager.Repositories
}

func (m *faultyManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos repomanager.Repositories) error) error {
	if n := m.txCalls.Add(1); n <= m.failTx {
		return fmt.Errorf("%w: canceling statement due to lock timeout", common.ErrConcurrencyConflict)
	}
	return m.Store.WithTx(ctx, func(ctx context.Context, repos repomanager.Repositories) error {
		if m.wrap != nil {
			repos = m.wrap(repos)
		}
		return fn(ctx, repos)
	})
}

type entitlementsOverride struct {
	repomanager.Repositories
	ent entitlements.Repository
}

func (o entitlementsOverride) Entitlements() entitlements.Repository { return o.ent }

// grantStub replaces Grant; everything else hits the real repository.
type grantStub struct {
	entitlements.Repository
	err     error
	created bool
}

func (g grantStub) Grant(ctx context.Context, userID, leadID, fieldGroup string) (*models.Entitlement, bool, error) {
	if g.err != nil {
		return nil, false, g.err
	}
	if !g.created {
		return &models.Entitlement{UserID: userID, LeadID: leadID, FieldGroup: fieldGroup}, false, nil
	}
	return g.Repository.Grant(ctx, userID, leadID, fieldGroup)
}

// fakeCache follows the EntitlementCache contract: Fill and Grant add
// groups, and only a filled entry is served.
type fakeCache struct {
	mu       sync.Mutex
	groups   map[string]map[string]struct{}
	complete map[string]bool
	gets     int
	grants   []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{groups: map[string]map[string]struct{}{}, complete: map[string]bool{}}
}

func (c *fakeCache) Get(_ context.Context, userID, leadID string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	key := userID + "/" + leadID
	if !c.complete[key] {
		return nil, false
	}
	out := []string{}
	for g := range c.groups[key] {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, true
}

func (c *fakeCache) add(key string, groups ...string) {
	set, ok := c.groups[key]
	if !ok {
		set = map[string]struct{}{}
		c.groups[key] = set
	}
	for _, g := range groups {
		set[g] = struct{}{}
	}
}

func (c *fakeCache) Fill(_ context.Context, userID, leadID string, groups []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := userID + "/" + leadID
	c.add(key, groups...)
	c.complete[key] = true
}

func (c *fakeCache) Grant(_ context.Context, userID, leadID, fieldGroup string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := userID + "/" + leadID
	c.add(key, fieldGroup)
	c.grants = append(c.grants, key+"/"+fieldGroup)
}

// pausingEntitlements blocks ListGroups after the read until resume is
// closed, reporting the read on read.
type pausingEntitlements struct {
	entitlements.Repository
	read   chan<- struct{}
	resume <-chan struct{}
}

func (p pausingEntitlements) ListGroups(ctx context.Context, userID, leadID string) ([]string, error) {
	groups, err := p.Repository.ListGroups(ctx, userID, leadID)
	p.read <- struct{}{}
	<-p.resume
	return groups, err
}

type pausingManager struct {
	*memory.Store
	ent pausingEntitlements
}

func (m pausingManager) Entitlements() entitlements.Repository { return m.ent }
