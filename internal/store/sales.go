package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"sales-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// SalesTx is the set of writes allowed inside one checkout or payment transaction.
// Every method runs on the same database transaction.
type SalesTx interface {
	GetDiscountFlags(ctx context.Context, customerID int64) (models.DiscountFlags, error)
	SellerExists(ctx context.Context, sellerID int64) (bool, error)
	LockStock(ctx context.Context, productID int64) (*models.StockLevel, error)
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	InsertSale(ctx context.Context, sale *models.Sale) error
	InsertSaleLineItem(ctx context.Context, item *models.SaleLineItem) error
	InsertStockMovement(ctx context.Context, movement *models.StockMovement) error
	LockSale(ctx context.Context, saleID int64) (*models.Sale, error)
	SetPaymentStatus(ctx context.Context, saleID int64, status models.PaymentStatus) error
	InsertOutbox(ctx context.Context, eventID, topic, key string, payload interface{}) error
}

type sqlTx struct {
	tx *sqlx.Tx
}

// InTx runs fn inside one database transaction. The transaction commits only
// when fn returns nil; any error rolls back every write made through tx.
func (s *Store) InTx(ctx context.Context, fn func(tx SalesTx) error) error {
	return s.inTx(ctx, func(tx *sqlTx) error { return fn(tx) })
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlTx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if s.lockTimeout > 0 {
		if _, err := tx.ExecContext(ctx, "SELECT set_config('lock_timeout', $1, true)",
			fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDiscountFlags reads the customer's loyalty flags
func (t *sqlTx) GetDiscountFlags(ctx context.Context, customerID int64) (models.DiscountFlags, error) {
	var flags models.DiscountFlags
	err := t.tx.GetContext(ctx, &flags,
		"SELECT flag_sports_club, flag_anime, flag_local_born FROM customers WHERE id = $1", customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return flags, fmt.Errorf("customer %d: %w", customerID, ErrNotFound)
	}
	return flags, err
}

// SellerExists checks that the seller is an active staff member
func (t *sqlTx) SellerExists(ctx context.Context, sellerID int64) (bool, error) {
	var exists bool
	err := t.tx.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM staff WHERE id = $1 AND active = TRUE)", sellerID)
	return exists, err
}

// LockStock reads a product's stock row under FOR UPDATE
func (t *sqlTx) LockStock(ctx context.Context, productID int64) (*models.StockLevel, error) {
	var level models.StockLevel
	err := t.tx.GetContext(ctx, &level, `
		SELECT e.product_id, p.name AS product_name, p.active, e.quantity, e.updated_at
		FROM stock e JOIN products p ON p.id = e.product_id
		WHERE e.product_id = $1
		FOR UPDATE OF e`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock for product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock stock: %w", err)
	}
	return &level, nil
}

// DecrementStock subtracts quantity from a locked stock row
func (t *sqlTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE stock SET quantity = quantity - $1, updated_at = NOW() WHERE product_id = $2 AND quantity >= $1",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fmt.Errorf("stock for product %d changed under lock", productID)
	}
	return nil
}

func (t *sqlTx) incrementStock(ctx context.Context, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE stock SET quantity = quantity + $1, updated_at = NOW() WHERE product_id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return nil
}

// InsertSale creates the sale row and fills its ID and timestamp
func (t *sqlTx) InsertSale(ctx context.Context, sale *models.Sale) error {
	query := `
		INSERT INTO sales (customer_id, seller_id, payment_method, payment_status,
			gross_total, discount, net_total, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		sale.CustomerID, sale.SellerID, sale.PaymentMethod, sale.PaymentStatus,
		sale.GrossTotal, sale.Discount, sale.NetTotal, sale.IdempotencyKey,
	).Scan(&sale.ID, &sale.CreatedAt)
}

// InsertSaleLineItem creates a sale line item
func (t *sqlTx) InsertSaleLineItem(ctx context.Context, item *models.SaleLineItem) error {
	query := `
		INSERT INTO sale_line_items (sale_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return t.tx.GetContext(ctx, &item.ID, query,
		item.SaleID, item.ProductID, item.Quantity, item.UnitPrice)
}

// InsertStockMovement records a stock change
func (t *sqlTx) InsertStockMovement(ctx context.Context, m *models.StockMovement) error {
	query := `
		INSERT INTO stock_movements (product_id, kind, delta, previous_qty, new_qty, sale_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return t.tx.QueryRowxContext(ctx, query,
		m.ProductID, m.Kind, m.Delta, m.PreviousQty, m.NewQty, m.SaleID,
	).Scan(&m.ID, &m.CreatedAt)
}

// LockSale reads a sale under FOR UPDATE
func (t *sqlTx) LockSale(ctx context.Context, saleID int64) (*models.Sale, error) {
	var sale models.Sale
	err := t.tx.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1 FOR UPDATE", saleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %d: %w", saleID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// SetPaymentStatus updates the payment status of a sale
func (t *sqlTx) SetPaymentStatus(ctx context.Context, saleID int64, status models.PaymentStatus) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE sales SET payment_status = $1 WHERE id = $2", status, saleID)
	return err
}

// InsertOutbox stores an event to be relayed once the transaction commits
func (t *sqlTx) InsertOutbox(ctx context.Context, eventID, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal outbox payload: %w", err)
	}
	_, err = t.tx.ExecContext(ctx,
		"INSERT INTO outbox (event_id, topic, key, payload) VALUES ($1, $2, $3, $4)",
		eventID, topic, key, data)
	return err
}

// GetSaleByID retrieves a sale by ID
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sale %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleByIdempotencyKey retrieves a sale by idempotency key
func (s *Store) GetSaleByIdempotencyKey(ctx context.Context, key string) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleItemsBySaleID retrieves all line items of a sale
func (s *Store) GetSaleItemsBySaleID(ctx context.Context, saleID int64) ([]models.SaleLineItem, error) {
	items := []models.SaleLineItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM sale_line_items WHERE sale_id = $1 ORDER BY id", saleID)
	return items, err
}

// SalesBySellerMonth reads the monthly per-seller sales projection
func (s *Store) SalesBySellerMonth(ctx context.Context) ([]models.SellerMonthReport, error) {
	rows := []models.SellerMonthReport{}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM sales_by_seller_month ORDER BY month DESC, seller_name")
	return rows, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
