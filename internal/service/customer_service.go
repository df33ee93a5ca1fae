package service

import (
	"context"

	"sales-service/internal/models"
)

// CustomerStore reads and updates customer loyalty data
type CustomerStore interface {
	GetCustomer(ctx context.Context, id int64) (*models.Customer, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	GetDiscountFlags(ctx context.Context, id int64) (models.DiscountFlags, error)
	UpdateDiscountFlags(ctx context.Context, id int64, flags models.DiscountFlags) error
}

// CustomerService answers loyalty questions about customers
type CustomerService struct {
	store CustomerStore
}

// NewCustomerService creates a new customer service
func NewCustomerService(store CustomerStore) *CustomerService {
	return &CustomerService{store: store}
}

// Exists reports whether the customer is registered
func (cs *CustomerService) Exists(ctx context.Context, customerID int64) (bool, error) {
	return cs.store.CustomerExists(ctx, customerID)
}

// GetCustomer retrieves a customer record
func (cs *CustomerService) GetCustomer(ctx context.Context, customerID int64) (*models.Customer, error) {
	return cs.store.GetCustomer(ctx, customerID)
}

// GetDiscountEligibility reports whether the customer gets the loyalty discount
func (cs *CustomerService) GetDiscountEligibility(ctx context.Context, customerID int64) (bool, error) {
	flags, err := cs.store.GetDiscountFlags(ctx, customerID)
	if err != nil {
		return false, err
	}
	return flags.Eligible(), nil
}

// UpdateDiscountFlags replaces the customer's flags. Existing sales keep their discount.
func (cs *CustomerService) UpdateDiscountFlags(ctx context.Context, customerID int64, flags models.DiscountFlags) error {
	return cs.store.UpdateDiscountFlags(ctx, customerID, flags)
}
