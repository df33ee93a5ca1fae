package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category groups catalog products
type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	CategoryID  *int64          `db:"category_id" json:"category_id,omitempty"`
	Category    *string         `db:"category" json:"category,omitempty"`
	LocallyMade bool            `db:"locally_made" json:"locally_made"`
	Active      bool            `db:"active" json:"active"`
	Quantity    *int            `db:"quantity" json:"quantity,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// StockLevel represents the on-hand quantity of a product.
// Quantity never goes negative.
type StockLevel struct {
	ProductID   int64     `db:"product_id" json:"product_id"`
	ProductName string    `db:"product_name" json:"product_name"`
	Active      bool      `db:"active" json:"active"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DiscountFlags are the three independent loyalty traits of a customer
type DiscountFlags struct {
	SportsClubFan bool `db:"flag_sports_club" json:"sports_club_fan"`
	AnimeFan      bool `db:"flag_anime" json:"anime_fan"`
	LocalBorn     bool `db:"flag_local_born" json:"local_born"`
}

// Eligible reports whether any flag is set. Holding more than one flag
// does not increase the discount.
func (f DiscountFlags) Eligible() bool {
	return f.SportsClubFan || f.AnimeFan || f.LocalBorn
}

// Customer represents a registered client of the store
type Customer struct {
	ID      int64  `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Email   string `db:"email" json:"email,omitempty"`
	Phone   string `db:"phone" json:"phone,omitempty"`
	Address string `db:"address" json:"address,omitempty"`
	DiscountFlags
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Sale is the persisted result of a checkout
type Sale struct {
	ID             int64           `db:"id" json:"id"`
	CustomerID     int64           `db:"customer_id" json:"customer_id"`
	SellerID       int64           `db:"seller_id" json:"seller_id"`
	PaymentMethod  PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentStatus  PaymentStatus   `db:"payment_status" json:"payment_status"`
	GrossTotal     decimal.Decimal `db:"gross_total" json:"gross_total"`
	Discount       decimal.Decimal `db:"discount" json:"discount"`
	NetTotal       decimal.Decimal `db:"net_total" json:"net_total"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// SaleLineItem is one product line of a sale with its frozen unit price
type SaleLineItem struct {
	ID        int64           `db:"id" json:"id"`
	SaleID    int64           `db:"sale_id" json:"sale_id"`
	ProductID int64           `db:"product_id" json:"product_id"`
	Quantity  int             `db:"quantity" json:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
}

// StockMovement records every stock change
type StockMovement struct {
	ID          int64     `db:"id" json:"id"`
	ProductID   int64     `db:"product_id" json:"product_id"`
	Kind        string    `db:"kind" json:"kind"`
	Delta       int       `db:"delta" json:"delta"`
	PreviousQty int       `db:"previous_qty" json:"previous_qty"`
	NewQty      int       `db:"new_qty" json:"new_qty"`
	SaleID      *int64    `db:"sale_id" json:"sale_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Stock movement kinds
const (
	MovementSale    = "sale"
	MovementRestock = "restock"
)

// SellerMonthReport is one row of the sales-by-seller-per-month projection
type SellerMonthReport struct {
	SellerID   int64           `db:"seller_id" json:"seller_id"`
	SellerName string          `db:"seller_name" json:"seller_name"`
	Month      time.Time       `db:"month" json:"month"`
	SaleCount  int             `db:"sale_count" json:"sale_count"`
	GrossTotal decimal.Decimal `db:"gross_total" json:"gross_total"`
	Discount   decimal.Decimal `db:"discount" json:"discount"`
	NetTotal   decimal.Decimal `db:"net_total" json:"net_total"`
}

// OutboxRecord is an event waiting to be relayed to the broker
type OutboxRecord struct {
	ID        int64      `db:"id"`
	EventID   string     `db:"event_id"`
	Topic     string     `db:"topic"`
	Key       string     `db:"key"`
	Payload   []byte     `db:"payload"`
	CreatedAt time.Time  `db:"created_at"`
	SentAt    *time.Time `db:"sent_at"`
}
