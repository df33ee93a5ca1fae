package models

// PaymentMethod is how a sale is paid
type PaymentMethod string

// Payment methods
const (
	PaymentCash            PaymentMethod = "cash"
	PaymentCard            PaymentMethod = "card"
	PaymentBankTransfer    PaymentMethod = "bank_transfer"
	PaymentInstantTransfer PaymentMethod = "instant_transfer"
	PaymentStoreCurrency   PaymentMethod = "store_alt_currency"
)

// PaymentStatus is the settlement state of a sale
type PaymentStatus string

// Payment statuses
const (
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusPending   PaymentStatus = "pending"
)

// Valid reports whether m is one of the accepted payment methods
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentInstantTransfer, PaymentStoreCurrency:
		return true
	}
	return false
}

// DefaultStatus returns the status a sale starts with when paid by m.
// Cash, card and instant transfers settle on the spot.
func (m PaymentMethod) DefaultStatus() PaymentStatus {
	switch m {
	case PaymentCash, PaymentCard, PaymentInstantTransfer:
		return PaymentStatusConfirmed
	default:
		return PaymentStatusPending
	}
}

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusPending
}
