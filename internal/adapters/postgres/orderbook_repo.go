package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
)

// OrderBookRepository implements the ports.OrderBookRepository interface.
// Depth tiers are stored as JSONB; only the latest sample per item is
// kept, each upsert replaces the previous one.
type OrderBookRepository struct {
	db *DB
}

// NewOrderBookRepository creates a new PostgreSQL order book repository
func NewOrderBookRepository(db *DB) ports.OrderBookRepository {
	return &OrderBookRepository{db: db}
}

// Upsert replaces the stored depth sample for the item
func (r *OrderBookRepository) Upsert(ctx context.Context, sample *domain.OrderBookSample) error {
	bids, err := json.Marshal(sample.Bids)
	if err != nil {
		return fmt.Errorf("failed to marshal bids: %w", err)
	}
	asks, err := json.Marshal(sample.Asks)
	if err != nil {
		return fmt.Errorf("failed to marshal asks: %w", err)
	}

	query := `
		INSERT INTO order_books (item_id, bids, asks, captured_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (item_id) DO UPDATE SET
			bids = EXCLUDED.bids,
			asks = EXCLUDED.asks,
			captured_at = EXCLUDED.captured_at
	`

	if _, err := r.db.Pool.Exec(ctx, query, sample.ItemID, bids, asks, sample.CapturedAt); err != nil {
		return fmt.Errorf("failed to upsert order book: %w", err)
	}
	return nil
}

// Get returns the latest depth sample for the item
func (r *OrderBookRepository) Get(ctx context.Context, itemID int) (*domain.OrderBookSample, error) {
	query := `SELECT item_id, bids, asks, captured_at FROM order_books WHERE item_id = $1`

	var sample domain.OrderBookSample
	var bids, asks []byte

	err := r.db.Pool.QueryRow(ctx, query, itemID).Scan(
		&sample.ItemID, &bids, &asks, &sample.CapturedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoOrderBook
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order book: %w", err)
	}

	if err := json.Unmarshal(bids, &sample.Bids); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bids: %w", err)
	}
	if err := json.Unmarshal(asks, &sample.Asks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal asks: %w", err)
	}

	return &sample, nil
}

// Ensure OrderBookRepository implements ports.OrderBookRepository
var _ ports.OrderBookRepository = (*OrderBookRepository)(nil)
