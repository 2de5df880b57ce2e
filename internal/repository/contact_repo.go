package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach/internal/model"
)

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

// FindByID returns a contact by id, or nil.
func (r *ContactRepository) FindByID(ctx context.Context, tenantID, id int64) (*model.Contact, error) {
	query := `
        SELECT id, tenant_id, email, COALESCE(phone, ''), first_name, last_name
        FROM contacts
        WHERE tenant_id = $1 AND id = $2
    `
	var c model.Contact
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(
		&c.ID,
		&c.TenantID,
		&c.Email,
		&c.Phone,
		&c.FirstName,
		&c.LastName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	return &c, nil
}
