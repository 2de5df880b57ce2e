package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach/internal/model"
)

type OutboundMessageRepository struct {
	db *pgxpool.Pool
}

func NewOutboundMessageRepository(db *pgxpool.Pool) *OutboundMessageRepository {
	return &OutboundMessageRepository{db: db}
}

// Claim inserts a queued message row for the dedupe key, claiming the send.
// Returns (message, true) when this caller won the claim, or the pre-existing
// row and false when another dispatch already holds the key. The unique index
// on (tenant_id, dedupe_key) closes the check-then-insert race.
func (r *OutboundMessageRepository) Claim(ctx context.Context, m *model.OutboundMessage) (*model.OutboundMessage, bool, error) {
	query := `
        INSERT INTO outbound_messages
            (tenant_id, campaign_id, contact_id, node_id, channel, dedupe_key, state, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, 'queued', NOW())
        ON CONFLICT (tenant_id, dedupe_key) DO NOTHING
        RETURNING id, created_at
    `
	err := r.db.QueryRow(ctx, query,
		m.TenantID, m.CampaignID, m.ContactID, m.NodeID, m.Channel, m.DedupeKey,
	).Scan(&m.ID, &m.CreatedAt)

	if err == nil {
		m.State = model.MessageQueued
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to claim outbound message: %w", err)
	}

	existing, err := r.FindByDedupeKey(ctx, m.TenantID, m.DedupeKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindByDedupeKey returns the message for a dedupe key, or nil.
func (r *OutboundMessageRepository) FindByDedupeKey(ctx context.Context, tenantID int64, dedupeKey string) (*model.OutboundMessage, error) {
	query := `
        SELECT id, tenant_id, campaign_id, contact_id, node_id, channel, dedupe_key,
               state, provider_message_id, last_error, created_at, updated_at
        FROM outbound_messages
        WHERE tenant_id = $1 AND dedupe_key = $2
    `
	m, err := r.scanOne(r.db.QueryRow(ctx, query, tenantID, dedupeKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find outbound message: %w", err)
	}
	return m, nil
}

// FindByID returns the message by id, or nil.
func (r *OutboundMessageRepository) FindByID(ctx context.Context, tenantID, id int64) (*model.OutboundMessage, error) {
	query := `
        SELECT id, tenant_id, campaign_id, contact_id, node_id, channel, dedupe_key,
               state, provider_message_id, last_error, created_at, updated_at
        FROM outbound_messages
        WHERE tenant_id = $1 AND id = $2
    `
	m, err := r.scanOne(r.db.QueryRow(ctx, query, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find outbound message: %w", err)
	}
	return m, nil
}

// MarkSent flips the message to sent and stores the provider id.
func (r *OutboundMessageRepository) MarkSent(ctx context.Context, id int64, providerMessageID string) error {
	query := `
        UPDATE outbound_messages
        SET state = 'sent', provider_message_id = $1, last_error = '', updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, providerMessageID, id)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}
	return nil
}

// MarkFailed flips the message to failed and records the error.
func (r *OutboundMessageRepository) MarkFailed(ctx context.Context, id int64, sendErr string) error {
	query := `
        UPDATE outbound_messages
        SET state = 'failed', last_error = $1, updated_at = NOW()
        WHERE id = $2
    `
	_, err := r.db.Exec(ctx, query, sendErr, id)
	if err != nil {
		return fmt.Errorf("failed to mark message failed: %w", err)
	}
	return nil
}

// DeleteQueued removes a claim that never produced a transport attempt. The
// state guard makes it a no-op once an outcome has been recorded.
func (r *OutboundMessageRepository) DeleteQueued(ctx context.Context, id int64) error {
	query := `
        DELETE FROM outbound_messages
        WHERE id = $1 AND state = 'queued'
    `
	_, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete queued message: %w", err)
	}
	return nil
}

func (r *OutboundMessageRepository) scanOne(row pgx.Row) (*model.OutboundMessage, error) {
	var m model.OutboundMessage
	var providerID, lastError *string
	err := row.Scan(
		&m.ID,
		&m.TenantID,
		&m.CampaignID,
		&m.ContactID,
		&m.NodeID,
		&m.Channel,
		&m.DedupeKey,
		&m.State,
		&providerID,
		&lastError,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if providerID != nil {
		m.ProviderMessageID = *providerID
	}
	if lastError != nil {
		m.LastError = *lastError
	}
	return &m, nil
}
