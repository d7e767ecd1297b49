package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"auction-core/internal/domain"
)

// MySQLEventLogRepository keeps the full event payload as JSON next to the
// columns reports filter on.
type MySQLEventLogRepository struct {
	db *sql.DB
}

func NewMySQLEventLogRepository(db *sql.DB) *MySQLEventLogRepository {
	return &MySQLEventLogRepository{db: db}
}

func (r *MySQLEventLogRepository) SaveEvent(ctx context.Context, event *domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Redelivered events keep their first row.
	query := `
        INSERT IGNORE INTO auction_events (id, auction_id, event_type, payload, occurred_at, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.AuctionID, string(event.Type), payload,
		event.Timestamp, time.Now().UTC())
	return err
}

func (r *MySQLEventLogRepository) GetEvents(ctx context.Context, auctionID string) ([]*domain.AuctionEvent, error) {
	query := `
        SELECT payload
        FROM auction_events
        WHERE auction_id = ?
        ORDER BY occurred_at ASC, created_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.AuctionEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}

		var event domain.AuctionEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}
