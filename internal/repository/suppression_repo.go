package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SuppressionRepository struct {
	db *pgxpool.Pool
}

func NewSuppressionRepository(db *pgxpool.Pool) *SuppressionRepository {
	return &SuppressionRepository{db: db}
}

// IsUnsubscribed reports whether the address is suppressed for the tenant and
// channel. A hit short-circuits dispatch before the transport is touched.
func (r *SuppressionRepository) IsUnsubscribed(ctx context.Context, tenantID int64, channel, address string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM suppressions
            WHERE tenant_id = $1 AND channel = $2 AND address = $3
        )
    `
	var suppressed bool
	err := r.db.QueryRow(ctx, query, tenantID, channel, address).Scan(&suppressed)
	if err != nil {
		return false, fmt.Errorf("failed to check suppression: %w", err)
	}
	return suppressed, nil
}

// Add records an unsubscribe. Idempotent.
func (r *SuppressionRepository) Add(ctx context.Context, tenantID int64, channel, address string) error {
	query := `
        INSERT INTO suppressions (tenant_id, channel, address, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (tenant_id, channel, address) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, tenantID, channel, address)
	if err != nil {
		return fmt.Errorf("failed to add suppression: %w", err)
	}
	return nil
}
