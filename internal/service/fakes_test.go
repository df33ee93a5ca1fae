package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sales-service/internal/models"
	"sales-service/internal/store"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type outboxRow struct {
	EventID string
	Topic   string
	Key     string
	Payload []byte
}

type fakeState struct {
	customers map[int64]models.DiscountFlags
	sellers   map[int64]bool
	stock     map[int64]models.StockLevel
	sales     []models.Sale
	items     []models.SaleLineItem
	movements []models.StockMovement
	outbox    []outboxRow
	nextID    int64
}

func (st fakeState) clone() fakeState {
	out := fakeState{
		customers: make(map[int64]models.DiscountFlags, len(st.customers)),
		sellers:   make(map[int64]bool, len(st.sellers)),
		stock:     make(map[int64]models.StockLevel, len(st.stock)),
		sales:     append([]models.Sale(nil), st.sales...),
		items:     append([]models.SaleLineItem(nil), st.items...),
		movements: append([]models.StockMovement(nil), st.movements...),
		outbox:    append([]outboxRow(nil), st.outbox...),
		nextID:    st.nextID,
	}
	for k, v := range st.customers {
		out.customers[k] = v
	}
	for k, v := range st.sellers {
		out.sellers[k] = v
	}
	for k, v := range st.stock {
		out.stock[k] = v
	}
	return out
}

// fakeStore keeps everything in memory. InTx runs transactions one at a time
// on a copy of the state and publishes the copy only when fn succeeds.
type fakeStore struct {
	mu        sync.Mutex
	state     fakeState
	failOnce  map[string]error
	lockOrder [][]int64
	txCount   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: fakeState{
			customers: map[int64]models.DiscountFlags{},
			sellers:   map[int64]bool{},
			stock:     map[int64]models.StockLevel{},
			nextID:    1,
		},
		failOnce: map[string]error{},
	}
}

func (f *fakeStore) addCustomer(id int64, flags models.DiscountFlags) {
	f.state.customers[id] = flags
}

func (f *fakeStore) addSeller(id int64) {
	f.state.sellers[id] = true
}

func (f *fakeStore) addProduct(id int64, name string, qty int, active bool) {
	f.state.stock[id] = models.StockLevel{ProductID: id, ProductName: name, Active: active, Quantity: qty}
}

// failNext makes the next call of op inside a transaction return err
func (f *fakeStore) failNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOnce[op] = err
}

func (f *fakeStore) quantity(productID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.stock[productID].Quantity
}

func (f *fakeStore) snapshot() fakeState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.clone()
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx store.SalesTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	f.txCount++
	staged := f.state.clone()
	tx := &fakeTx{store: f, st: &staged}
	err := fn(tx)
	f.lockOrder = append(f.lockOrder, tx.locked)
	if err != nil {
		return err
	}
	f.state = staged
	return nil
}

func (f *fakeStore) GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, sale := range f.state.sales {
		if sale.IdempotencyKey != nil && *sale.IdempotencyKey == key {
			s := sale
			return &s, nil
		}
	}
	return nil, nil
}

type fakeTx struct {
	store  *fakeStore
	st     *fakeState
	locked []int64
}

func (t *fakeTx) fail(op string) error {
	if err, ok := t.store.failOnce[op]; ok {
		delete(t.store.failOnce, op)
		return err
	}
	return nil
}

func (t *fakeTx) GetDiscountFlags(ctx context.Context, customerID int64) (models.DiscountFlags, error) {
	if err := t.fail("GetDiscountFlags"); err != nil {
		return models.DiscountFlags{}, err
	}
	flags, ok := t.st.customers[customerID]
	if !ok {
		return flags, fmt.Errorf("customer %d: %w", customerID, store.ErrNotFound)
	}
	return flags, nil
}

func (t *fakeTx) SellerExists(ctx context.Context, sellerID int64) (bool, error) {
	if err := t.fail("SellerExists"); err != nil {
		return false, err
	}
	return t.st.sellers[sellerID], nil
}

func (t *fakeTx) LockStock(ctx context.Context, productID int64) (*models.StockLevel, error) {
	if err := t.fail("LockStock"); err != nil {
		return nil, err
	}
	t.locked = append(t.locked, productID)
	level, ok := t.st.stock[productID]
	if !ok {
		return nil, fmt.Errorf("stock for product %d: %w", productID, store.ErrNotFound)
	}
	return &level, nil
}

func (t *fakeTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	if err := t.fail("DecrementStock"); err != nil {
		return err
	}
	level := t.st.stock[productID]
	if level.Quantity < quantity {
		return &pq.Error{Code: "23514", Message: "stock_quantity_check"}
	}
	level.Quantity -= quantity
	t.st.stock[productID] = level
	return nil
}

func (t *fakeTx) InsertSale(ctx context.Context, sale *models.Sale) error {
	if err := t.fail("InsertSale"); err != nil {
		return err
	}
	if sale.IdempotencyKey != nil {
		for _, existing := range t.st.sales {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *sale.IdempotencyKey {
				return &pq.Error{Code: "23505", Message: "sales_idempotency_key_key"}
			}
		}
	}
	if !sale.NetTotal.Equal(sale.GrossTotal.Sub(sale.Discount)) {
		return &pq.Error{Code: "23514", Message: "sales_net_total_check"}
	}
	sale.ID = t.st.nextID
	sale.CreatedAt = time.Now()
	t.st.nextID++
	t.st.sales = append(t.st.sales, *sale)
	return nil
}

func (t *fakeTx) InsertSaleLineItem(ctx context.Context, item *models.SaleLineItem) error {
	if err := t.fail("InsertSaleLineItem"); err != nil {
		return err
	}
	item.ID = int64(len(t.st.items) + 1)
	t.st.items = append(t.st.items, *item)
	return nil
}

func (t *fakeTx) InsertStockMovement(ctx context.Context, m *models.StockMovement) error {
	if err := t.fail("InsertStockMovement"); err != nil {
		return err
	}
	m.ID = int64(len(t.st.movements) + 1)
	t.st.movements = append(t.st.movements, *m)
	return nil
}

func (t *fakeTx) LockSale(ctx context.Context, saleID int64) (*models.Sale, error) {
	if err := t.fail("LockSale"); err != nil {
		return nil, err
	}
	for _, sale := range t.st.sales {
		if sale.ID == saleID {
			s := sale
			return &s, nil
		}
	}
	return nil, fmt.Errorf("sale %d: %w", saleID, store.ErrNotFound)
}

func (t *fakeTx) SetPaymentStatus(ctx context.Context, saleID int64, status models.PaymentStatus) error {
	if err := t.fail("SetPaymentStatus"); err != nil {
		return err
	}
	for i := range t.st.sales {
		if t.st.sales[i].ID == saleID {
			t.st.sales[i].PaymentStatus = status
			return nil
		}
	}
	return fmt.Errorf("sale %d: %w", saleID, store.ErrNotFound)
}

func (t *fakeTx) InsertOutbox(ctx context.Context, eventID, topic, key string, payload interface{}) error {
	if err := t.fail("InsertOutbox"); err != nil {
		return err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	t.st.outbox = append(t.st.outbox, outboxRow{EventID: eventID, Topic: topic, Key: key, Payload: data})
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func priceInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
