package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach/internal/model"
)

type ContactCampaignRepository struct {
	db *pgxpool.Pool
}

func NewContactCampaignRepository(db *pgxpool.Pool) *ContactCampaignRepository {
	return &ContactCampaignRepository{db: db}
}

// Create stores a freshly generated campaign positioned at its start node.
func (r *ContactCampaignRepository) Create(ctx context.Context, c *model.ContactCampaign) error {
	query := `
        INSERT INTO contact_campaigns (tenant_id, contact_id, plan_json, current_node_id, status, created_at)
        VALUES ($1, $2, $3, $4, 'active', NOW())
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query, c.TenantID, c.ContactID, c.PlanJSON, c.CurrentNodeID).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contact campaign: %w", err)
	}
	c.Status = "active"
	return nil
}

// FindByID returns a campaign by id, or nil.
func (r *ContactCampaignRepository) FindByID(ctx context.Context, tenantID, id int64) (*model.ContactCampaign, error) {
	query := `
        SELECT id, tenant_id, contact_id, plan_json, current_node_id, status, created_at, updated_at
        FROM contact_campaigns
        WHERE tenant_id = $1 AND id = $2
    `
	var c model.ContactCampaign
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(
		&c.ID,
		&c.TenantID,
		&c.ContactID,
		&c.PlanJSON,
		&c.CurrentNodeID,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact campaign: %w", err)
	}
	return &c, nil
}

// UpdateCurrentNode moves the campaign to a new node.
func (r *ContactCampaignRepository) UpdateCurrentNode(ctx context.Context, tenantID, id int64, nodeID string) error {
	query := `
        UPDATE contact_campaigns
        SET current_node_id = $1, updated_at = NOW()
        WHERE tenant_id = $2 AND id = $3
    `
	_, err := r.db.Exec(ctx, query, nodeID, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to update current node: %w", err)
	}
	return nil
}

// MarkCompleted flips the campaign to its terminal status.
func (r *ContactCampaignRepository) MarkCompleted(ctx context.Context, tenantID, id int64) error {
	query := `
        UPDATE contact_campaigns
        SET status = 'completed', updated_at = NOW()
        WHERE tenant_id = $1 AND id = $2
    `
	_, err := r.db.Exec(ctx, query, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to mark campaign completed: %w", err)
	}
	return nil
}
