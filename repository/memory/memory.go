// Package memory is an in-process implementation of the repository ports. It
// mirrors the constraints of the Postgres schema (unique codes and order ids,
// foreign keys, transactional rollback) and backs the use-case tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fastygo/storefront/domain"
	"github.com/fastygo/storefront/repository"
)

type state struct {
	affiliates map[string]domain.Affiliate
	clicks     map[string]domain.AffiliateClick
	sales      map[string]domain.AffiliateSale
	orders     map[string]domain.Order
	products   map[string]domain.Product
}

func newState() *state {
	return &state{
		affiliates: make(map[string]domain.Affiliate),
		clicks:     make(map[string]domain.AffiliateClick),
		sales:      make(map[string]domain.AffiliateSale),
		orders:     make(map[string]domain.Order),
		products:   make(map[string]domain.Product),
	}
}

func (s *state) clone() *state {
	out := newState()
	for k, v := range s.affiliates {
		out.affiliates[k] = v
	}
	for k, v := range s.clicks {
		out.clicks[k] = v
	}
	for k, v := range s.sales {
		out.sales[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]domain.OrderItem(nil), v.Items...)
		out.orders[k] = v
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	return out
}

// DB is a mutex-guarded store. Transactions hold the lock for their whole
// duration and work on a copy that replaces the live state on commit.
type DB struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
	now    func() time.Time
}

func New() *DB {
	return &DB{
		st:     newState(),
		faults: make(map[string]error),
		now:    time.Now,
	}
}

// FailNext makes the next call of op return err. Ops are named
// "<repository>.<method>", e.g. "stats.RecordSale".
func (db *DB) FailNext(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.faults[op] = err
}

// Store returns repositories that lock per call.
func (db *DB) Store() repository.Store {
	return &view{db: db, autoLock: true}
}

func (db *DB) Products() repository.ProductRepository {
	return &productRepo{v: &view{db: db, autoLock: true}}
}

// SeedProduct inserts a catalog entry.
func (db *DB) SeedProduct(p domain.Product) domain.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = db.now()
	p.UpdatedAt = p.CreatedAt
	db.st.products[p.ID] = p
	return p
}

// WithinTx runs fn against a copy of the state under the store-wide lock and
// swaps the copy in on success. Transactions never interleave here, so tests
// built on it cannot observe lost updates.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, store repository.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &view{db: db, st: db.st.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	db.st = tx.st
	return nil
}

// Clicks returns a snapshot of the click log.
func (db *DB) Clicks() []domain.AffiliateClick {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.AffiliateClick, 0, len(db.st.clicks))
	for _, c := range db.st.clicks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Sales returns a snapshot of the ledger.
func (db *DB) Sales() []domain.AffiliateSale {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.AffiliateSale, 0, len(db.st.sales))
	for _, s := range db.st.sales {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Orders returns a snapshot of all orders.
func (db *DB) Orders() []domain.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]domain.Order, 0, len(db.st.orders))
	for _, o := range db.st.orders {
		out = append(out, o)
	}
	return out
}

// Tamper overwrites an affiliate's counters without touching the ledger.
func (db *DB) Tamper(affiliateID string, counters domain.AffiliateCounters) {
	db.mu.Lock()
	defer db.mu.Unlock()
	a := db.st.affiliates[affiliateID]
	a.TotalClicks, a.TotalSales, a.TotalCommission = counters.Clicks, counters.Sales, counters.Commission
	db.st.affiliates[affiliateID] = a
}

var _ repository.Transactor = (*DB)(nil)

type view struct {
	db       *DB
	st       *state
	autoLock bool
}

// enter acquires the db lock for auto-locking views and returns the state to use.
func (v *view) enter() (*state, func()) {
	if v.autoLock {
		v.db.mu.Lock()
		return v.db.st, v.db.mu.Unlock
	}
	return v.st, func() {}
}

// fault is called with the db lock held.
func (v *view) fault(op string) error {
	if err, ok := v.db.faults[op]; ok {
		delete(v.db.faults, op)
		return err
	}
	return nil
}

func (v *view) Affiliates() repository.AffiliateRepository { return &affiliateRepo{v: v} }
func (v *view) Stats() repository.AffiliateStatsRepository { return &statsRepo{v: v} }
func (v *view) Clicks() repository.ClickRepository         { return &clickRepo{v: v} }
func (v *view) Sales() repository.SaleRepository           { return &saleRepo{v: v} }
func (v *view) Orders() repository.OrderRepository         { return &orderRepo{v: v} }

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type affiliateRepo struct{ v *view }

func (r *affiliateRepo) GetByID(_ context.Context, id string) (*domain.Affiliate, error) {
	st, done := r.v.enter()
	defer done()
	a, ok := st.affiliates[id]
	if !ok {
		return nil, domain.ErrAffiliateNotFound
	}
	return &a, nil
}

func (r *affiliateRepo) GetByCode(_ context.Context, code string) (*domain.Affiliate, error) {
	st, done := r.v.enter()
	defer done()
	for _, a := range st.affiliates {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, domain.ErrAffiliateNotFound
}

func (r *affiliateRepo) GetByUserID(_ context.Context, userID string) (*domain.Affiliate, error) {
	st, done := r.v.enter()
	defer done()
	for _, a := range st.affiliates {
		if a.UserID == userID {
			return &a, nil
		}
	}
	return nil, domain.ErrAffiliateNotFound
}

func (r *affiliateRepo) List(_ context.Context, filter repository.AffiliateFilter) ([]domain.Affiliate, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.Affiliate
	for _, a := range st.affiliates {
		if filter.Status == "" || a.Status == filter.Status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *affiliateRepo) ListIDs(_ context.Context) ([]string, error) {
	st, done := r.v.enter()
	defer done()
	ids := make([]string, 0, len(st.affiliates))
	for id := range st.affiliates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *affiliateRepo) Create(_ context.Context, affiliate *domain.Affiliate) error {
	if affiliate == nil {
		return domain.ErrInvalidPayload
	}
	st, done := r.v.enter()
	defer done()
	if err := r.v.fault("affiliates.Create"); err != nil {
		return err
	}
	for _, a := range st.affiliates {
		if a.Code == affiliate.Code {
			return domain.ErrCodeTaken
		}
		if a.UserID == affiliate.UserID {
			return domain.ErrAffiliateExists
		}
	}
	if affiliate.ID == "" {
		affiliate.ID = uuid.NewString()
	}
	if affiliate.Status == "" {
		affiliate.Status = domain.AffiliateStatusActive
	}
	if affiliate.CommissionRate.IsZero() {
		affiliate.CommissionRate = domain.DefaultCommissionRate
	}
	affiliate.TotalClicks, affiliate.TotalSales, affiliate.TotalCommission = 0, 0, decimal.Zero
	affiliate.CreatedAt = r.v.db.now()
	affiliate.UpdatedAt = affiliate.CreatedAt
	st.affiliates[affiliate.ID] = *affiliate
	return nil
}

type statsRepo struct{ v *view }

func (r *statsRepo) apply(op, id string, fn func(a *domain.Affiliate)) error {
	st, done := r.v.enter()
	defer done()
	if err := r.v.fault("stats." + op); err != nil {
		return err
	}
	a, ok := st.affiliates[id]
	if !ok {
		return domain.ErrAffiliateNotFound
	}
	fn(&a)
	a.UpdatedAt = r.v.db.now()
	st.affiliates[id] = a
	return nil
}

func (r *statsRepo) RecordClick(_ context.Context, affiliateID string) error {
	return r.apply("RecordClick", affiliateID, func(a *domain.Affiliate) { a.TotalClicks++ })
}

func (r *statsRepo) RecordSale(_ context.Context, affiliateID string, commission decimal.Decimal) error {
	return r.apply("RecordSale", affiliateID, func(a *domain.Affiliate) {
		a.TotalSales++
		a.TotalCommission = a.TotalCommission.Add(commission)
	})
}

func (r *statsRepo) ReverseSale(_ context.Context, affiliateID string, commission decimal.Decimal) error {
	return r.apply("ReverseSale", affiliateID, func(a *domain.Affiliate) {
		a.TotalSales--
		a.TotalCommission = a.TotalCommission.Sub(commission)
	})
}

func (r *statsRepo) LockCounters(_ context.Context, affiliateID string) (domain.AffiliateCounters, error) {
	st, done := r.v.enter()
	defer done()
	a, ok := st.affiliates[affiliateID]
	if !ok {
		return domain.AffiliateCounters{}, domain.ErrAffiliateNotFound
	}
	return a.Counters(), nil
}

func (r *statsRepo) LedgerCounters(_ context.Context, affiliateID string) (domain.AffiliateCounters, error) {
	st, done := r.v.enter()
	defer done()
	counters := domain.AffiliateCounters{Commission: decimal.Zero}
	for _, c := range st.clicks {
		if c.AffiliateID == affiliateID {
			counters.Clicks++
		}
	}
	for _, s := range st.sales {
		if s.AffiliateID == affiliateID && s.Status.Counts() {
			counters.Sales++
			counters.Commission = counters.Commission.Add(s.Commission)
		}
	}
	return counters, nil
}

func (r *statsRepo) SetCounters(_ context.Context, affiliateID string, counters domain.AffiliateCounters) error {
	return r.apply("SetCounters", affiliateID, func(a *domain.Affiliate) {
		a.TotalClicks, a.TotalSales, a.TotalCommission = counters.Clicks, counters.Sales, counters.Commission
	})
}

type clickRepo struct{ v *view }

func (r *clickRepo) Create(_ context.Context, click *domain.AffiliateClick) error {
	if click == nil || click.AffiliateID == "" {
		return domain.ErrInvalidPayload
	}
	st, done := r.v.enter()
	defer done()
	if err := r.v.fault("clicks.Create"); err != nil {
		return err
	}
	if _, ok := st.affiliates[click.AffiliateID]; !ok {
		return domain.ErrAffiliateNotFound
	}
	if click.ID == "" {
		click.ID = uuid.NewString()
	}
	if _, ok := st.clicks[click.ID]; ok {
		return domain.ErrDuplicateClick
	}
	if click.CreatedAt.IsZero() {
		click.CreatedAt = r.v.db.now()
	}
	st.clicks[click.ID] = *click
	return nil
}

type saleRepo struct{ v *view }

func (r *saleRepo) Create(_ context.Context, sale *domain.AffiliateSale) error {
	if sale == nil || sale.AffiliateID == "" || sale.OrderID == "" {
		return domain.ErrInvalidPayload
	}
	st, done := r.v.enter()
	defer done()
	if err := r.v.fault("sales.Create"); err != nil {
		return err
	}
	if _, ok := st.affiliates[sale.AffiliateID]; !ok {
		return domain.ErrAffiliateNotFound
	}
	if _, ok := st.orders[sale.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	for _, s := range st.sales {
		if s.OrderID == sale.OrderID {
			return domain.ErrDuplicateSale
		}
	}
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusPending
	}
	sale.CreatedAt = r.v.db.now()
	sale.UpdatedAt = sale.CreatedAt
	st.sales[sale.ID] = *sale
	return nil
}

func (r *saleRepo) GetByID(_ context.Context, id string) (*domain.AffiliateSale, error) {
	st, done := r.v.enter()
	defer done()
	s, ok := st.sales[id]
	if !ok {
		return nil, domain.ErrSaleNotFound
	}
	return &s, nil
}

func (r *saleRepo) GetByOrderID(_ context.Context, orderID string) (*domain.AffiliateSale, error) {
	st, done := r.v.enter()
	defer done()
	for _, s := range st.sales {
		if s.OrderID == orderID {
			return &s, nil
		}
	}
	return nil, domain.ErrSaleNotFound
}

func (r *saleRepo) List(_ context.Context, filter repository.SaleFilter) ([]domain.AffiliateSale, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.AffiliateSale
	for _, s := range st.sales {
		if filter.AffiliateID != "" && s.AffiliateID != filter.AffiliateID {
			continue
		}
		if filter.Status != "" && string(s.Status) != filter.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

func (r *saleRepo) UpdateStatus(_ context.Context, id string, from, to domain.SaleStatus) (*domain.AffiliateSale, error) {
	if !from.CanTransition(to) {
		return nil, domain.ErrInvalidTransition
	}
	st, done := r.v.enter()
	defer done()
	s, ok := st.sales[id]
	if !ok {
		return nil, domain.ErrSaleNotFound
	}
	if s.Status != from {
		return nil, domain.ErrInvalidTransition
	}
	s.Status = to
	s.UpdatedAt = r.v.db.now()
	st.sales[id] = s
	return &s, nil
}

type orderRepo struct{ v *view }

func (r *orderRepo) Create(_ context.Context, order *domain.Order) error {
	if order == nil {
		return domain.ErrInvalidPayload
	}
	st, done := r.v.enter()
	defer done()
	if err := r.v.fault("orders.Create"); err != nil {
		return err
	}
	if order.AffiliateID != nil {
		if _, ok := st.affiliates[*order.AffiliateID]; !ok {
			return domain.ErrAffiliateNotFound
		}
	}
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}
	order.CreatedAt = r.v.db.now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		if order.Items[i].ID == "" {
			order.Items[i].ID = uuid.NewString()
		}
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = order.CreatedAt
	}
	stored := *order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	st.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	st, done := r.v.enter()
	defer done()
	o, ok := st.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return &o, nil
}

func (r *orderRepo) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	st, done := r.v.enter()
	defer done()
	var out []domain.Order
	for _, o := range st.orders {
		if filter.AffiliateID != "" && (o.AffiliateID == nil || *o.AffiliateID != filter.AffiliateID) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		o.Items = nil
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, filter.Limit, filter.Offset), nil
}

type productRepo struct{ v *view }

func (r *productRepo) Create(_ context.Context, product *domain.Product) error {
	if product == nil {
		return domain.ErrInvalidPayload
	}
	st, done := r.v.enter()
	defer done()
	if err := r.v.fault("products.Create"); err != nil {
		return err
	}
	for _, p := range st.products {
		if p.Slug == product.Slug {
			return domain.ErrProductSlugTaken
		}
	}
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	product.CreatedAt = r.v.db.now()
	product.UpdatedAt = product.CreatedAt
	st.products[product.ID] = *product
	return nil
}

func (r *productRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	st, done := r.v.enter()
	defer done()
	p, ok := st.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (r *productRepo) GetBySlug(_ context.Context, slug string) (*domain.Product, error) {
	st, done := r.v.enter()
	defer done()
	for _, p := range st.products {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (r *productRepo) List(_ context.Context, limit, offset int) ([]domain.Product, error) {
	st, done := r.v.enter()
	defer done()
	out := make([]domain.Product, 0, len(st.products))
	for _, p := range st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return page(out, limit, offset), nil
}
