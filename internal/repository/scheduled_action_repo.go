package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"outreach/internal/model"
)

type ScheduledActionRepository struct {
	db *pgxpool.Pool
}

func NewScheduledActionRepository(db *pgxpool.Pool) *ScheduledActionRepository {
	return &ScheduledActionRepository{db: db}
}

// ActionWriter inserts scheduled action rows inside a transaction.
type ActionWriter interface {
	Insert(ctx context.Context, a *model.ScheduledAction) error
}

type scheduledActionWriter struct {
	tx pgx.Tx
}

// Insert writes a pending scheduled action within the transaction.
func (w *scheduledActionWriter) Insert(ctx context.Context, a *model.ScheduledAction) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal action payload: %w", err)
	}

	// ON CONFLICT keeps a re-run of the same scheduling step benign: the
	// original row stays, and the queue-side job guard reports the
	// duplicate separately.
	query := `
        INSERT INTO scheduled_actions
            (tenant_id, campaign_id, action_type, scheduled_at, payload, job_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, 'pending', NOW())
        ON CONFLICT (job_id) DO NOTHING
        RETURNING id, created_at
    `
	err = w.tx.QueryRow(ctx, query,
		a.TenantID, a.CampaignID, a.ActionType, a.ScheduledAt, payload, a.JobID,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		a.Status = model.ActionPending
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to insert scheduled action: %w", err)
	}
	a.Status = model.ActionPending
	return nil
}

// InTx runs fn inside a transaction. The scheduler uses this to pair the
// scheduled_actions insert with the queue enqueue: an error from fn rolls the
// insert back so no orphan record survives an enqueue failure.
func (r *ScheduledActionRepository) InTx(ctx context.Context, fn func(w ActionWriter) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&scheduledActionWriter{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// MarkStatus records the outcome of a fired (or superseded) action.
func (r *ScheduledActionRepository) MarkStatus(ctx context.Context, jobID, status string) error {
	query := `
        UPDATE scheduled_actions
        SET status = $1
        WHERE job_id = $2
    `
	_, err := r.db.Exec(ctx, query, status, jobID)
	if err != nil {
		return fmt.Errorf("failed to update scheduled action status: %w", err)
	}
	return nil
}

// ListPendingForCampaign returns pending actions for auditing.
func (r *ScheduledActionRepository) ListPendingForCampaign(ctx context.Context, tenantID, campaignID int64) ([]model.ScheduledAction, error) {
	query := `
        SELECT id, tenant_id, campaign_id, action_type, scheduled_at, payload, job_id, status, created_at
        FROM scheduled_actions
        WHERE tenant_id = $1 AND campaign_id = $2 AND status = 'pending'
        ORDER BY scheduled_at ASC
    `
	rows, err := r.db.Query(ctx, query, tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled actions: %w", err)
	}
	defer rows.Close()

	actions := []model.ScheduledAction{}
	for rows.Next() {
		var a model.ScheduledAction
		var payload []byte
		err := rows.Scan(
			&a.ID, &a.TenantID, &a.CampaignID, &a.ActionType,
			&a.ScheduledAt, &payload, &a.JobID, &a.Status, &a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scheduled action: %w", err)
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &a.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal action payload: %w", err)
			}
		}
		actions = append(actions, a)
	}

	return actions, rows.Err()
}
