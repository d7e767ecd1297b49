package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auction-core/internal/domain"

	"github.com/uptrace/bun"
)

type EventLogRepository struct {
	db *bun.DB
}

func NewEventLogRepository(db *bun.DB) *EventLogRepository {
	return &EventLogRepository{db: db}
}

func (r *EventLogRepository) SaveEvent(ctx context.Context, event *domain.AuctionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = r.db.NewInsert().
		Model(&eventModel{
			ID:         event.ID,
			AuctionID:  event.AuctionID,
			EventType:  string(event.Type),
			Payload:    payload,
			OccurredAt: event.Timestamp,
			CreatedAt:  time.Now().UTC(),
		}).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

func (r *EventLogRepository) GetEvents(ctx context.Context, auctionID string) ([]*domain.AuctionEvent, error) {
	var models []*eventModel
	err := r.db.NewSelect().
		Model(&models).
		Where("auction_id = ?", auctionID).
		Order("occurred_at ASC", "created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	events := make([]*domain.AuctionEvent, 0, len(models))
	for _, m := range models {
		var event domain.AuctionEvent
		if err := json.Unmarshal(m.Payload, &event); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, nil
}
