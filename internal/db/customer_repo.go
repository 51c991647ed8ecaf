package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"ordercast/internal/types"
)

// CustomerRepository is the engine's read-only view of the customer store.
// The customer data itself is owned by the back-office CRUD layer; the
// engine only resolves recipients and template variables from it.
type CustomerRepository struct {
	db DBTX
}

// NewCustomerRepository creates a new CustomerRepository backed by the
// given database connection (pool or transaction).
func NewCustomerRepository(db DBTX) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetByID fetches a customer scoped to the tenant. Returns (nil, nil) when
// the customer does not exist; backfill treats that as a skip, not an
// error.
func (r *CustomerRepository) GetByID(ctx context.Context, tenantID, customerID string) (*types.Customer, error) {
	var (
		c     types.Customer
		email *string
		phone *string
	)
	err := r.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, email, phone
		 FROM customers
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID,
		customerID,
	).Scan(&c.ID, &c.TenantID, &c.Name, &email, &phone)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get customer", err)
	}
	if email != nil {
		c.Email = *email
	}
	if phone != nil {
		c.Phone = *phone
	}
	return &c, nil
}

// isNoRows reports whether err is pgx's no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
