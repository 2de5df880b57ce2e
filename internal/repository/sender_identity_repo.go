package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach/internal/model"
)

type SenderIdentityRepository struct {
	db *pgxpool.Pool
}

func NewSenderIdentityRepository(db *pgxpool.Pool) *SenderIdentityRepository {
	return &SenderIdentityRepository{db: db}
}

// FindVerified returns the tenant's verified sending identity, or nil when
// none has been verified yet.
func (r *SenderIdentityRepository) FindVerified(ctx context.Context, tenantID int64) (*model.SenderIdentity, error) {
	query := `
        SELECT id, tenant_id, email, name, status
        FROM sender_identities
        WHERE tenant_id = $1 AND status = 'verified'
        ORDER BY id ASC
        LIMIT 1
    `
	var ident model.SenderIdentity
	err := r.db.QueryRow(ctx, query, tenantID).Scan(
		&ident.ID,
		&ident.TenantID,
		&ident.Email,
		&ident.Name,
		&ident.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sender identity: %w", err)
	}
	return &ident, nil
}
