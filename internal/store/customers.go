package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sales-service/internal/models"
)

// GetCustomer retrieves a customer by ID
func (s *Store) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	var customer models.Customer
	err := s.db.GetContext(ctx, &customer, `
		SELECT id, name, COALESCE(email, '') AS email, COALESCE(phone, '') AS phone,
			COALESCE(address, '') AS address, flag_sports_club, flag_anime, flag_local_born, created_at
		FROM customers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// CustomerExists checks if a customer exists
func (s *Store) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)", id)
	return exists, err
}

// GetDiscountFlags reads the customer's loyalty flags outside a checkout
func (s *Store) GetDiscountFlags(ctx context.Context, id int64) (models.DiscountFlags, error) {
	var flags models.DiscountFlags
	err := s.db.GetContext(ctx, &flags,
		"SELECT flag_sports_club, flag_anime, flag_local_born FROM customers WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return flags, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return flags, err
}

// UpdateDiscountFlags replaces the customer's loyalty flags
func (s *Store) UpdateDiscountFlags(ctx context.Context, id int64, flags models.DiscountFlags) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE customers SET flag_sports_club = $1, flag_anime = $2, flag_local_born = $3 WHERE id = $4",
		flags.SportsClubFan, flags.AnimeFan, flags.LocalBorn, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return nil
}
