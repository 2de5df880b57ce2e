package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"outreach/internal/model"
)

type MessageEventRepository struct {
	db *pgxpool.Pool
}

func NewMessageEventRepository(db *pgxpool.Pool) *MessageEventRepository {
	return &MessageEventRepository{db: db}
}

// Insert appends a message event and fills in its id.
func (r *MessageEventRepository) Insert(ctx context.Context, e *model.MessageEvent) error {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	query := `
        INSERT INTO message_events (tenant_id, message_id, type, event_at, data)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `
	err = r.db.QueryRow(ctx, query, e.TenantID, e.MessageID, e.Type, e.EventAt, data).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("failed to insert message event: %w", err)
	}
	return nil
}

// Exists reports whether an event of the given type has been recorded for the
// message. This is the supersession lookup.
func (r *MessageEventRepository) Exists(ctx context.Context, tenantID, messageID int64, eventType string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM message_events
            WHERE tenant_id = $1 AND message_id = $2 AND type = $3
        )
    `
	var exists bool
	err := r.db.QueryRow(ctx, query, tenantID, messageID, eventType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check message event: %w", err)
	}
	return exists, nil
}

// ListForMessage returns all events for a message, oldest first.
func (r *MessageEventRepository) ListForMessage(ctx context.Context, tenantID, messageID int64) ([]model.MessageEvent, error) {
	query := `
        SELECT id, tenant_id, message_id, type, event_at, data
        FROM message_events
        WHERE tenant_id = $1 AND message_id = $2
        ORDER BY event_at ASC
    `
	rows, err := r.db.Query(ctx, query, tenantID, messageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query message events: %w", err)
	}
	defer rows.Close()

	events := []model.MessageEvent{}
	for rows.Next() {
		var e model.MessageEvent
		var data []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.MessageID, &e.Type, &e.EventAt, &data); err != nil {
			return nil, fmt.Errorf("failed to scan message event: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}
		events = append(events, e)
	}

	return events, rows.Err()
}
