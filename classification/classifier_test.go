package classification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-fbm/customers/domain"
)

type fakeProvider struct {
	tier  string
	err   error
	calls int
}

func (f *fakeProvider) ClassifyTier(ctx context.Context, description string, tiers []string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.tier, nil
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers []domain.Customer
	tiers     map[string]domain.Tier
	updateErr error
}

func newFakeCustomerRepo(customers ...domain.Customer) *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: customers, tiers: make(map[string]domain.Tier)}
}

func (f *fakeCustomerRepo) Upsert(ctx context.Context, customer *domain.Customer) error {
	return nil
}

func (f *fakeCustomerRepo) GetByPSID(ctx context.Context, pageID, psid string) (*domain.Customer, error) {
	for i := range f.customers {
		if f.customers[i].PageID == pageID && f.customers[i].PSID == psid {
			c := f.customers[i]
			return &c, nil
		}
	}
	return nil, domain.ErrCustomerNotFound
}

func (f *fakeCustomerRepo) ListByPage(ctx context.Context, pageID string) ([]domain.Customer, error) {
	out := make([]domain.Customer, 0, len(f.customers))
	for _, c := range f.customers {
		if c.PageID == pageID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCustomerRepo) UpdateTier(ctx context.Context, pageID, psid string, tier domain.Tier) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tiers[psid] = tier
	return nil
}

func frozenClock() func() time.Time {
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func ago(d time.Duration) *time.Time {
	t := frozenClock()().Add(-d)
	return &t
}

func TestKeywordRulesWinBeforeProvider(t *testing.T) {
	provider := &fakeProvider{tier: "dormant"}
	engine := NewEngine(newFakeCustomerRepo(), provider, nil)
	engine.SetNowFunc(frozenClock())

	customer := &domain.Customer{PageID: "p1", PSID: "u1"}

	tier, err := engine.Classify(context.Background(), customer, "I want a refund right now")
	require.NoError(t, err)
	assert.Equal(t, domain.TierAtRisk, tier)
	assert.Zero(t, provider.calls, "keyword match should not reach the provider")

	tier, err = engine.Classify(context.Background(), customer, "what is the price of the blue one?")
	require.NoError(t, err)
	assert.Equal(t, domain.TierEngaged, tier)
	assert.Zero(t, provider.calls)
}

func TestProviderClassifiesWhenNoKeywordMatches(t *testing.T) {
	provider := &fakeProvider{tier: "at_risk"}
	engine := NewEngine(newFakeCustomerRepo(), provider, nil)
	engine.SetNowFunc(frozenClock())

	customer := &domain.Customer{PageID: "p1", PSID: "u1", LastContactAt: ago(2 * 24 * time.Hour)}

	tier, err := engine.Classify(context.Background(), customer, "hmm not sure about this anymore")
	require.NoError(t, err)
	assert.Equal(t, domain.TierAtRisk, tier)
	assert.Equal(t, 1, provider.calls)
}

func TestProviderUnknownTierFallsBackToRecency(t *testing.T) {
	provider := &fakeProvider{tier: "platinum"}
	engine := NewEngine(newFakeCustomerRepo(), provider, nil)
	engine.SetNowFunc(frozenClock())

	customer := &domain.Customer{PageID: "p1", PSID: "u1", LastContactAt: ago(3 * 24 * time.Hour)}

	tier, err := engine.Classify(context.Background(), customer, "just checking in")
	require.NoError(t, err)
	assert.Equal(t, domain.TierEngaged, tier)
}

func TestProviderErrorFallsBackToRecency(t *testing.T) {
	provider := &fakeProvider{err: errors.New("rate limited")}
	engine := NewEngine(newFakeCustomerRepo(), provider, nil)
	engine.SetNowFunc(frozenClock())

	customer := &domain.Customer{PageID: "p1", PSID: "u1", LastContactAt: ago(40 * 24 * time.Hour)}

	tier, err := engine.Classify(context.Background(), customer, "just checking in")
	require.NoError(t, err)
	assert.Equal(t, domain.TierDormant, tier)
}

func TestRecencyTierBoundaries(t *testing.T) {
	engine := NewEngine(newFakeCustomerRepo(), nil, nil)
	engine.SetNowFunc(frozenClock())

	cases := []struct {
		name    string
		contact *time.Time
		want    domain.Tier
	}{
		{"never contacted", nil, domain.TierNew},
		{"yesterday", ago(24 * time.Hour), domain.TierEngaged},
		{"exactly seven days", ago(7 * 24 * time.Hour), domain.TierEngaged},
		{"eight days", ago(8 * 24 * time.Hour), domain.TierAtRisk},
		{"exactly thirty days", ago(30 * 24 * time.Hour), domain.TierAtRisk},
		{"sixty days", ago(60 * 24 * time.Hour), domain.TierDormant},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			customer := &domain.Customer{PageID: "p1", PSID: "u1", LastContactAt: tc.contact}
			tier, err := engine.Classify(context.Background(), customer, "")
			require.NoError(t, err)
			assert.Equal(t, tc.want, tier)
		})
	}
}

func TestEmptyTextSkipsProvider(t *testing.T) {
	provider := &fakeProvider{tier: "engaged"}
	engine := NewEngine(newFakeCustomerRepo(), provider, nil)
	engine.SetNowFunc(frozenClock())

	customer := &domain.Customer{PageID: "p1", PSID: "u1"}
	tier, err := engine.Classify(context.Background(), customer, "   ")
	require.NoError(t, err)
	assert.Equal(t, domain.TierNew, tier)
	assert.Zero(t, provider.calls)
}

func TestClassifyPagePersistsOnlyChangedTiers(t *testing.T) {
	repo := newFakeCustomerRepo(
		domain.Customer{PageID: "p1", PSID: "u-keep", CurrentTier: domain.TierEngaged, LastContactAt: ago(24 * time.Hour)},
		domain.Customer{PageID: "p1", PSID: "u-drift", CurrentTier: domain.TierEngaged, LastContactAt: ago(45 * 24 * time.Hour)},
		domain.Customer{PageID: "p2", PSID: "u-other-page", CurrentTier: domain.TierNew},
	)
	engine := NewEngine(repo, nil, nil)
	engine.SetNowFunc(frozenClock())

	updated, err := engine.ClassifyPage(context.Background(), "p1", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, updated)
	assert.Equal(t, domain.TierDormant, repo.tiers["u-drift"])
	_, touched := repo.tiers["u-keep"]
	assert.False(t, touched, "unchanged tier should not be rewritten")
	_, touched = repo.tiers["u-other-page"]
	assert.False(t, touched, "other pages are out of scope")
}

func TestClassifyPageUsesRecentTexts(t *testing.T) {
	repo := newFakeCustomerRepo(
		domain.Customer{PageID: "p1", PSID: "u1", CurrentTier: domain.TierNew, LastContactAt: ago(24 * time.Hour)},
	)
	engine := NewEngine(repo, nil, nil)
	engine.SetNowFunc(frozenClock())

	updated, err := engine.ClassifyPage(context.Background(), "p1", map[string]string{
		"u1": "quiero cancelar mi pedido",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, updated)
	assert.Equal(t, domain.TierAtRisk, repo.tiers["u1"])
}
