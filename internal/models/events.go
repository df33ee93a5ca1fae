package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeSaleCompleted        = "SALE_COMPLETED"
	EventTypeSalePaymentConfirmed = "SALE_PAYMENT_CONFIRMED"
	EventTypeStockLow             = "STOCK_LOW"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCompletedEvent published when a checkout commits
type SaleCompletedEvent struct {
	BaseEvent
	SaleID        int64           `json:"sale_id"`
	CustomerID    int64           `json:"customer_id"`
	SellerID      int64           `json:"seller_id"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	GrossTotal    decimal.Decimal `json:"gross_total"`
	Discount      decimal.Decimal `json:"discount"`
	NetTotal      decimal.Decimal `json:"net_total"`
	Items         []SaleItemData  `json:"items"`
}

// SalePaymentConfirmedEvent published when a pending sale is settled
type SalePaymentConfirmedEvent struct {
	BaseEvent
	SaleID   int64           `json:"sale_id"`
	NetTotal decimal.Decimal `json:"net_total"`
}

// StockLowEvent published when a product drops under the low-stock threshold
type StockLowEvent struct {
	BaseEvent
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Threshold   int    `json:"threshold"`
}

// SaleItemData represents item data in events
type SaleItemData struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}
