package monitor_test

import (
	"context"
	"sync"
	"time"

	"monitor-shopify/internal/database"
	"monitor-shopify/internal/models"
	"monitor-shopify/internal/monitor"
	"monitor-shopify/internal/scraper"

	"github.com/shopspring/decimal"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type variantKey struct{ monitor, product, variant int64 }

// memStore é um VariantStore em memória que conta as escritas
type memStore struct {
	records map[variantKey]models.VariantRecord
	inserts int
	updates int
	failOn  int64 // variante que provoca erro de escrita
}

func newMemStore() *memStore {
	return &memStore{records: map[variantKey]models.VariantRecord{}}
}

func (s *memStore) FindVariant(_ context.Context, monitorID, productID, variantID int64) (*models.VariantRecord, error) {
	r, ok := s.records[variantKey{monitorID, productID, variantID}]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (s *memStore) InsertVariant(_ context.Context, r models.VariantRecord) error {
	if s.failOn != 0 && r.VariantID == s.failOn {
		return &database.StoreError{Op: "insert variant", Err: context.DeadlineExceeded}
	}
	s.inserts++
	s.records[variantKey{r.MonitorID, r.ProductID, r.VariantID}] = r
	return nil
}

func (s *memStore) UpdateVariant(_ context.Context, r models.VariantRecord) error {
	if s.failOn != 0 && r.VariantID == s.failOn {
		return &database.StoreError{Op: "update variant", Err: context.DeadlineExceeded}
	}
	s.updates++
	s.records[variantKey{r.MonitorID, r.ProductID, r.VariantID}] = r
	return nil
}

func (s *memStore) writes() int { return s.inserts + s.updates }

// fakeCatalog responde a partir de mapas indexados pela URL
type fakeCatalog struct {
	mu          sync.Mutex
	products    map[string]models.Product
	collections map[string][]models.Product
	searches    map[string][]scraper.SearchHit
	errs        map[string]error
	calls       []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products:    map[string]models.Product{},
		collections: map[string][]models.Product{},
		searches:    map[string][]scraper.SearchHit{},
		errs:        map[string]error{},
	}
}

func (c *fakeCatalog) record(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, url)
	return c.errs[url]
}

func (c *fakeCatalog) FetchProduct(_ context.Context, url string) (*models.Product, error) {
	if err := c.record(url); err != nil {
		return nil, err
	}
	p, ok := c.products[url]
	if !ok {
		return nil, &scraper.FetchError{URL: url, Err: scraper.ErrStatusNotOK}
	}
	return &p, nil
}

func (c *fakeCatalog) FetchCollection(_ context.Context, url string) ([]models.Product, error) {
	if err := c.record(url); err != nil {
		return nil, err
	}
	return c.collections[url], nil
}

func (c *fakeCatalog) FetchSearchResults(_ context.Context, url, query string) ([]scraper.SearchHit, error) {
	if err := c.record(url + "?q=" + query); err != nil {
		return nil, err
	}
	return c.searches[url+"?q="+query], nil
}

type notification struct {
	monitorID      int64
	productID      int64
	classification models.Classification
}

// fakeNotifier guarda as notificações recebidas
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, m models.Monitor, p models.Product, c models.Classification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification{monitorID: m.ID, productID: p.ID, classification: c})
	return nil
}

// staticMonitors é um MonitorSource fixo
type staticMonitors []models.Monitor

func (s staticMonitors) ListMonitors(context.Context) ([]models.Monitor, error) {
	return s, nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func variant(id int64, p string, a models.Availability) models.Variant {
	return models.Variant{ID: id, Title: "Tamanho", Price: price(p), Available: a}
}

// slowStore segura cada leitura para que verificações concorrentes se sobreponham
type slowStore struct {
	monitor.VariantStore
	hold time.Duration
}

func (s *slowStore) FindVariant(ctx context.Context, monitorID, productID, variantID int64) (*models.VariantRecord, error) {
	r, err := s.VariantStore.FindVariant(ctx, monitorID, productID, variantID)
	time.Sleep(s.hold)
	return r, err
}
