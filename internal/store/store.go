package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sales-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	db          *sqlx.DB
	lockTimeout time.Duration
}

// NewStore creates a new database store
func NewStore(databaseURL string, maxOpenConns int) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// SetLockTimeout bounds how long a transaction waits for a row lock.
// Zero leaves the server default.
func (s *Store) SetLockTimeout(d time.Duration) {
	s.lockTimeout = d
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const productColumns = `
	p.id, p.name, COALESCE(p.description, '') AS description, p.price, p.category_id,
	c.name AS category, p.locally_made, p.active, e.quantity, p.created_at`

const productFrom = `
	FROM products p
	LEFT JOIN categories c ON p.category_id = c.id
	LEFT JOIN stock e ON p.id = e.product_id`

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT"+productColumns+productFrom+" WHERE p.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetPrice returns the current catalog price of a product
func (s *Store) GetPrice(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := s.db.GetContext(ctx, &price, "SELECT price FROM products WHERE id = $1", productID)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return price, err
}

// ListActiveProducts retrieves all products that can still be sold
func (s *Store) ListActiveProducts(ctx context.Context) ([]models.Product, error) {
	return s.SearchProducts(ctx, ProductFilter{})
}

// ProductFilter narrows a product search. Zero values are ignored.
type ProductFilter struct {
	Name        string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Category    string
	LocallyMade bool
}

// SearchProducts retrieves active products matching every set filter field
func (s *Store) SearchProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	conds := []string{"p.active = TRUE"}
	args := []interface{}{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Name != "" {
		add("lower(p.name) LIKE lower($%d)", "%"+f.Name+"%")
	}
	if f.MinPrice != nil {
		add("p.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("p.price <= $%d", *f.MaxPrice)
	}
	if f.Category != "" {
		add("c.name = $%d", f.Category)
	}
	if f.LocallyMade {
		conds = append(conds, "p.locally_made = TRUE")
	}

	query := "SELECT" + productColumns + productFrom +
		" WHERE " + strings.Join(conds, " AND ") + " ORDER BY p.name"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// ListLowStock retrieves active products whose stock is under threshold
func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]models.StockLevel, error) {
	levels := []models.StockLevel{}
	err := s.db.SelectContext(ctx, &levels, `
		SELECT e.product_id, p.name AS product_name, p.active, e.quantity, e.updated_at
		FROM stock e JOIN products p ON p.id = e.product_id
		WHERE e.quantity < $1 AND p.active = TRUE
		ORDER BY e.quantity, p.name`, threshold)
	return levels, err
}

// ListCategories retrieves all categories
func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := []models.Category{}
	err := s.db.SelectContext(ctx, &categories, "SELECT id, name FROM categories ORDER BY name")
	return categories, err
}

// DeactivateProduct soft-deletes a product so past sales keep their references
func (s *Store) DeactivateProduct(ctx context.Context, productID int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE products SET active = FALSE WHERE id = $1", productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// GetStock retrieves the stock level of a product
func (s *Store) GetStock(ctx context.Context, productID int64) (*models.StockLevel, error) {
	var level models.StockLevel
	err := s.db.GetContext(ctx, &level, `
		SELECT e.product_id, p.name AS product_name, p.active, e.quantity, e.updated_at
		FROM stock e JOIN products p ON p.id = e.product_id
		WHERE e.product_id = $1`, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stock for product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &level, nil
}

// ListStock retrieves stock levels of all active products
func (s *Store) ListStock(ctx context.Context) ([]models.StockLevel, error) {
	levels := []models.StockLevel{}
	err := s.db.SelectContext(ctx, &levels, `
		SELECT e.product_id, p.name AS product_name, p.active, e.quantity, e.updated_at
		FROM stock e JOIN products p ON p.id = e.product_id
		WHERE p.active = TRUE
		ORDER BY e.product_id`)
	return levels, err
}

// GetStockLevels retrieves stock levels for the given products
func (s *Store) GetStockLevels(ctx context.Context, productIDs []int64) ([]models.StockLevel, error) {
	if len(productIDs) == 0 {
		return []models.StockLevel{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT e.product_id, p.name AS product_name, p.active, e.quantity, e.updated_at
		FROM stock e JOIN products p ON p.id = e.product_id
		WHERE e.product_id IN (?)`, productIDs)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var levels []models.StockLevel
	err = s.db.SelectContext(ctx, &levels, query, args...)
	return levels, err
}

// Restock adds quantity to a product's stock under a row lock and records the movement
func (s *Store) Restock(ctx context.Context, productID int64, quantity int) (*models.StockMovement, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("restock quantity must be positive, got %d", quantity)
	}

	var movement *models.StockMovement
	err := s.inTx(ctx, func(tx *sqlTx) error {
		level, err := tx.LockStock(ctx, productID)
		if err != nil {
			return err
		}

		if err := tx.incrementStock(ctx, productID, quantity); err != nil {
			return err
		}

		movement = &models.StockMovement{
			ProductID:   productID,
			Kind:        models.MovementRestock,
			Delta:       quantity,
			PreviousQty: level.Quantity,
			NewQty:      level.Quantity + quantity,
		}
		return tx.InsertStockMovement(ctx, movement)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}
