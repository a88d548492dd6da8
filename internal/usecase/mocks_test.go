package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/basketwatch/backend/internal/domain"
)

// fakeCatalog is a domain.CatalogClient double. Searches are answered from
// byTerm when set, otherwise from the scripted responses/errs sequence.
type fakeCatalog struct {
	token       *domain.AccessToken
	tokenErr    error
	tokenCalls  int
	location    *domain.Location
	locationErr error

	locationCalls int
	lastLat       float64
	lastLon       float64

	byTerm    map[string][]domain.CandidateProduct
	termErrs  map[string]error
	panicTerm string

	// afterSearch runs once a search has been answered
	afterSearch func(term string)

	responses [][]domain.CandidateProduct
	errs      []error
	calls     int
	limits    []int
	terms     []string
}

func (c *fakeCatalog) GetToken(ctx context.Context) (*domain.AccessToken, error) {
	c.tokenCalls++
	if c.tokenErr != nil {
		return nil, c.tokenErr
	}
	if c.token != nil {
		return c.token, nil
	}
	return &domain.AccessToken{AccessToken: "token", TokenType: "bearer", ExpiresIn: 1800}, nil
}

func (c *fakeCatalog) FindNearestLocation(ctx context.Context, token string, lat, lon float64) (*domain.Location, error) {
	c.locationCalls++
	c.lastLat, c.lastLon = lat, lon
	if c.locationErr != nil {
		return nil, c.locationErr
	}
	if c.location != nil {
		return c.location, nil
	}
	return &domain.Location{LocationID: "01400943", Name: "Kroger Midtown", Address: "725 Ponce De Leon Ave NE, Atlanta, GA, 30306"}, nil
}

func (c *fakeCatalog) SearchProducts(ctx context.Context, token, locationID, term string, limit int) ([]domain.CandidateProduct, error) {
	i := c.calls
	c.calls++
	c.limits = append(c.limits, limit)
	c.terms = append(c.terms, term)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.afterSearch != nil {
		defer c.afterSearch(term)
	}

	if c.panicTerm != "" && term == c.panicTerm {
		panic("malformed catalog payload")
	}

	if c.byTerm != nil || c.termErrs != nil {
		if err := c.termErrs[term]; err != nil {
			return nil, err
		}
		return c.byTerm[term], nil
	}

	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return nil, nil
}

// mockCache is a map-backed domain.CacheRepository that records TTLs
type mockCache struct {
	mu   sync.Mutex
	data map[string]any
	ttls map[string]time.Duration
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string]any{}, ttls: map[string]time.Duration{}}
}

func (m *mockCache) Get(ctx context.Context, key string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *mockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

// memoryStore is an in-memory domain.IngestStore with first-observation-wins
// preference fields. Like a database driver it rejects cancelled contexts.
type memoryStore struct {
	mu        sync.Mutex
	items     map[string]*domain.TrackedItem
	snapshots []*domain.PriceSnapshot
	baskets   []*domain.BasketSnapshot
	logs      []*domain.IngestLogEntry

	findErr     error
	upsertErr   map[string]error
	snapshotErr error
	logErr      error
	nextID      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{items: map[string]*domain.TrackedItem{}}
}

func itemKey(name, unit string) string { return name + "|" + unit }

func (m *memoryStore) FindItem(ctx context.Context, name, unit string) (*domain.TrackedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.findErr != nil {
		return nil, m.findErr
	}
	item, ok := m.items[itemKey(name, unit)]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	copied := *item
	return &copied, nil
}

func (m *memoryStore) UpsertItem(ctx context.Context, staple domain.StapleDefinition, observed domain.Preference) (*domain.TrackedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.upsertErr[staple.Label]; err != nil {
		return nil, err
	}

	key := itemKey(staple.Label, staple.Unit)
	item, ok := m.items[key]
	if !ok {
		m.nextID++
		item = &domain.TrackedItem{ID: fmt.Sprintf("item-%d", m.nextID), Name: staple.Label, Unit: staple.Unit}
		m.items[key] = item
	}
	item.Category = staple.Category
	item.SearchTerm = staple.SearchTerm
	item.IsTracked = true
	if item.PreferredProductID == "" {
		item.PreferredProductID = observed.ProductID
	}
	if item.PreferredBrand == "" {
		item.PreferredBrand = observed.Brand
	}
	if item.PreferredSizeLabel == "" {
		item.PreferredSizeLabel = observed.SizeLabel
	}
	copied := *item
	return &copied, nil
}

func (m *memoryStore) InsertPriceSnapshot(ctx context.Context, snapshot *domain.PriceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.snapshotErr != nil {
		return m.snapshotErr
	}
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *memoryStore) InsertBasketSnapshot(ctx context.Context, snapshot *domain.BasketSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	m.baskets = append(m.baskets, snapshot)
	return nil
}

func (m *memoryStore) InsertIngestLog(ctx context.Context, entry *domain.IngestLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.logErr != nil {
		return m.logErr
	}
	m.logs = append(m.logs, entry)
	return nil
}

type publishedEvent struct {
	subject string
	payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, subject string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{subject: subject, payload: v})
	return nil
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}
