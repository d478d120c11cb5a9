// Package memory is an in-process storage driver. Stock writes are buffered
// per transaction and applied on commit; per-product semaphores provide the
// isolation a row lock gives in Postgres.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	catalogdomain "github.com/dmehra2102/inventory-hub/internal/catalog/domain"
	inventoryapp "github.com/dmehra2102/inventory-hub/internal/inventory/application"
	inventorydomain "github.com/dmehra2102/inventory-hub/internal/inventory/domain"
	orderapp "github.com/dmehra2102/inventory-hub/internal/order/application"
	orderdomain "github.com/dmehra2102/inventory-hub/internal/order/domain"
	"github.com/dmehra2102/inventory-hub/pkg/outbox"
)

type Store struct {
	mu       sync.RWMutex
	stock    map[string]inventorydomain.StockRecord
	products map[string]catalogdomain.Product
	orders   map[string]orderdomain.Order
	order    []string

	lockMu sync.Mutex
	locks  map[string]*semaphore.Weighted

	outbox *outbox.MemoryStore
	now    func() time.Time

	// beforeCommit lets tests inject a commit failure.
	beforeCommit func() error
}

func New() *Store {
	return &Store{
		stock:    map[string]inventorydomain.StockRecord{},
		products: map[string]catalogdomain.Product{},
		orders:   map[string]orderdomain.Order{},
		locks:    map[string]*semaphore.Weighted{},
		outbox:   outbox.NewMemoryStore(),
		now:      time.Now,
	}
}

// Outbox exposes the committed events for a relay.
func (s *Store) Outbox() *outbox.MemoryStore { return s.outbox }

func (s *Store) productLock(id string) *semaphore.Weighted {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = semaphore.NewWeighted(1)
		s.locks[id] = m
	}
	return m
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx orderapp.Tx) error) error {
	t := s.begin()
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	return t.commit()
}

func (s *Store) WithinStockTx(ctx context.Context, fn func(ctx context.Context, tx inventoryapp.Tx) error) error {
	return s.WithinTx(ctx, func(ctx context.Context, tx orderapp.Tx) error {
		return fn(ctx, tx)
	})
}

type tx struct {
	s      *Store
	held   map[string]*semaphore.Weighted
	stock  map[string]inventorydomain.StockRecord
	orders map[string]orderdomain.Order
	added  []string
	events []outbox.Event
}

func (s *Store) begin() *tx {
	return &tx{
		s:      s,
		held:   map[string]*semaphore.Weighted{},
		stock:  map[string]inventorydomain.StockRecord{},
		orders: map[string]orderdomain.Order{},
	}
}

func (t *tx) Stock() inventoryapp.StockStore { return (*txStock)(t) }
func (t *tx) Orders() orderapp.OrderStore    { return (*txOrders)(t) }
func (t *tx) Outbox() outbox.Writer          { return (*txOutbox)(t) }

func (t *tx) release() {
	for id, m := range t.held {
		m.Release(1)
		delete(t.held, id)
	}
}

// commit validates the write-set, then applies it in one step.
func (t *tx) commit() error {
	for id, r := range t.stock {
		if r.Quantity < 0 {
			return fmt.Errorf("commit: negative quantity for %s", id)
		}
	}
	if t.s.beforeCommit != nil {
		if err := t.s.beforeCommit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	t.s.mu.Lock()
	for id, r := range t.stock {
		t.s.stock[id] = r
	}
	for _, id := range t.added {
		t.s.order = append(t.s.order, id)
	}
	for id, o := range t.orders {
		t.s.orders[id] = o
	}
	t.s.mu.Unlock()

	for _, e := range t.events {
		if err := t.s.outbox.Append(context.Background(), e); err != nil {
			return err
		}
	}
	return nil
}

type txStock tx

func (t *txStock) current(id string) inventorydomain.StockRecord {
	if r, ok := t.stock[id]; ok {
		return r
	}
	t.s.mu.RLock()
	r, ok := t.s.stock[id]
	t.s.mu.RUnlock()
	if !ok {
		r = inventorydomain.NewStockRecord(id, t.s.now().UTC())
		t.stock[id] = r
	}
	return r
}

// Lock waits for every product in sorted order. Locks taken before ctx ends
// stay held until the transaction finishes.
func (t *txStock) Lock(ctx context.Context, productIDs []string) (map[string]inventorydomain.StockRecord, error) {
	ids := slices.Clone(productIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	out := make(map[string]inventorydomain.StockRecord, len(ids))
	for _, id := range ids {
		if _, ok := t.held[id]; !ok {
			m := t.s.productLock(id)
			if err := m.Acquire(ctx, 1); err != nil {
				return nil, fmt.Errorf("lock stock %s: %w", id, err)
			}
			t.held[id] = m
		}
		out[id] = t.current(id)
	}
	return out, nil
}

func (t *txStock) locked(ctx context.Context, id string) (inventorydomain.StockRecord, error) {
	if _, ok := t.held[id]; !ok {
		if _, err := t.Lock(ctx, []string{id}); err != nil {
			return inventorydomain.StockRecord{}, err
		}
	}
	return t.current(id), nil
}

func (t *txStock) Decrement(ctx context.Context, productID string, qty int, by string) (inventorydomain.StockRecord, error) {
	r, err := t.locked(ctx, productID)
	if err != nil {
		return inventorydomain.StockRecord{}, err
	}
	if r.Quantity < qty {
		return inventorydomain.StockRecord{}, &inventorydomain.InsufficientStockError{
			ProductID: productID,
			Available: r.Quantity,
			Required:  qty,
		}
	}
	r.Quantity -= qty
	r.LastModifiedBy = by
	r.UpdatedAt = t.s.now().UTC()
	t.stock[productID] = r
	return r, nil
}

func (t *txStock) Increment(ctx context.Context, productID string, qty int, by string) (inventorydomain.StockRecord, error) {
	r, err := t.locked(ctx, productID)
	if err != nil {
		return inventorydomain.StockRecord{}, err
	}
	if qty > inventorydomain.MaxQuantity-r.Quantity {
		return inventorydomain.StockRecord{}, fmt.Errorf("%w: quantity would exceed %d", inventorydomain.ErrInvalidAdjustment, inventorydomain.MaxQuantity)
	}
	r.Quantity += qty
	r.LastModifiedBy = by
	r.UpdatedAt = t.s.now().UTC()
	t.stock[productID] = r
	return r, nil
}

func (t *txStock) UpdateSettings(ctx context.Context, productID string, set inventorydomain.Settings, by string) (inventorydomain.StockRecord, error) {
	r, err := t.locked(ctx, productID)
	if err != nil {
		return inventorydomain.StockRecord{}, err
	}
	r = set.Apply(r)
	r.LastModifiedBy = by
	r.UpdatedAt = t.s.now().UTC()
	t.stock[productID] = r
	return r, nil
}

type txOrders tx

func (t *txOrders) Insert(_ context.Context, o orderdomain.Order) error {
	o.Items = slices.Clone(o.Items)
	t.orders[o.ID] = o
	t.added = append(t.added, o.ID)
	return nil
}

func (t *txOrders) GetForUpdate(_ context.Context, id string) (orderdomain.Order, error) {
	if o, ok := t.orders[id]; ok {
		return o, nil
	}
	t.s.mu.RLock()
	o, ok := t.s.orders[id]
	t.s.mu.RUnlock()
	if !ok {
		return orderdomain.Order{}, fmt.Errorf("%w: %s", orderdomain.ErrOrderNotFound, id)
	}
	return o, nil
}

func (t *txOrders) UpdateStatus(ctx context.Context, id string, status orderdomain.Status, at time.Time) error {
	o, err := t.GetForUpdate(ctx, id)
	if err != nil {
		return err
	}
	o.Status = status
	o.UpdatedAt = at
	t.orders[id] = o
	return nil
}

type txOutbox tx

func (t *txOutbox) Append(_ context.Context, e outbox.Event) error {
	t.events = append(t.events, e)
	return nil
}

// Stock reads

func (s *Store) GetStock(_ context.Context, productID string) (inventorydomain.StockRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.stock[productID]
	return r, ok, nil
}

func (s *Store) ListStock(_ context.Context, f inventoryapp.StockFilter) ([]inventorydomain.StockRecord, error) {
	s.mu.RLock()
	out := make([]inventorydomain.StockRecord, 0, len(s.stock))
	for _, r := range s.stock {
		if f.LowStockOnly && !r.LowStock() {
			continue
		}
		out = append(out, r)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ProductID < out[j].ProductID
	})
	return out, nil
}

func (s *Store) CountLowStock(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.stock {
		if r.LowStock() {
			n++
		}
	}
	return n, nil
}

// Order reads

func (s *Store) GetOrder(_ context.Context, id string) (orderdomain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orderdomain.Order{}, fmt.Errorf("%w: %s", orderdomain.ErrOrderNotFound, id)
	}
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, f orderdomain.ListFilter) ([]orderdomain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []orderdomain.Order{}
	for i := len(s.order) - 1; i >= 0; i-- {
		o := s.orders[s.order[i]]
		if f.CreatedBy != "" && o.CreatedBy != f.CreatedBy {
			continue
		}
		out = append(out, o)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) OrderStats(_ context.Context) (orderdomain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := orderdomain.Stats{Count: len(s.orders), Revenue: decimal.Zero}
	for _, o := range s.orders {
		st.Revenue = st.Revenue.Add(o.Total)
	}
	return st, nil
}

// Catalog

func (s *Store) Create(_ context.Context, p catalogdomain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.products {
		if existing.SKU == p.SKU {
			return catalogdomain.ErrDuplicateSKU
		}
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) Update(_ context.Context, p catalogdomain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok || cur.Deleted {
		return fmt.Errorf("%w: %s", catalogdomain.ErrProductNotFound, p.ID)
	}
	for id, existing := range s.products {
		if id != p.ID && existing.SKU == p.SKU {
			return catalogdomain.ErrDuplicateSKU
		}
	}
	s.products[p.ID] = p
	return nil
}

func (s *Store) Get(_ context.Context, id string) (catalogdomain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok || p.Deleted {
		return catalogdomain.Product{}, fmt.Errorf("%w: %s", catalogdomain.ErrProductNotFound, id)
	}
	return p, nil
}

func (s *Store) List(_ context.Context, f catalogdomain.ListFilter) ([]catalogdomain.Product, int, error) {
	s.mu.RLock()
	var all []catalogdomain.Product
	for _, p := range s.products {
		if p.Deleted || !p.Matches(f.Query) {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		all = append(all, p)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	start := min(f.Offset(), total)
	end := min(start+f.Limit, total)
	return all[start:end], total, nil
}

func (s *Store) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Deleted {
		return fmt.Errorf("%w: %s", catalogdomain.ErrProductNotFound, id)
	}
	p.Deleted = true
	p.UpdatedAt = s.now().UTC()
	s.products[id] = p
	return nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, p := range s.products {
		if !p.Deleted {
			n++
		}
	}
	return n, nil
}
