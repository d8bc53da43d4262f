package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
)

// SnapshotRepository implements the ports.SnapshotRepository interface
type SnapshotRepository struct {
	db *DB
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository
func NewSnapshotRepository(db *DB) ports.SnapshotRepository {
	return &SnapshotRepository{db: db}
}

const snapshotUpsert = `
	INSERT INTO snapshots (
		item_id, date,
		buy_price, sell_price, buy_quantity, sell_quantity,
		buy_sold, sell_sold,
		buy_listed, sell_listed, buy_delisted, sell_delisted,
		buy_price_avg, sell_price_avg, buy_price_min, sell_price_max
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (item_id, date) DO UPDATE SET
		buy_price = EXCLUDED.buy_price,
		sell_price = EXCLUDED.sell_price,
		buy_quantity = EXCLUDED.buy_quantity,
		sell_quantity = EXCLUDED.sell_quantity,
		buy_sold = EXCLUDED.buy_sold,
		sell_sold = EXCLUDED.sell_sold,
		buy_listed = EXCLUDED.buy_listed,
		sell_listed = EXCLUDED.sell_listed,
		buy_delisted = EXCLUDED.buy_delisted,
		sell_delisted = EXCLUDED.sell_delisted,
		buy_price_avg = EXCLUDED.buy_price_avg,
		sell_price_avg = EXCLUDED.sell_price_avg,
		buy_price_min = EXCLUDED.buy_price_min,
		sell_price_max = EXCLUDED.sell_price_max
`

func snapshotArgs(s *domain.Snapshot) []any {
	return []any{
		s.ItemID, s.Date,
		s.BuyPrice, s.SellPrice, s.BuyQuantity, s.SellQuantity,
		s.BuySold, s.SellSold,
		s.BuyListed, s.SellListed, s.BuyDelisted, s.SellDelisted,
		s.BuyPriceAvg, s.SellPriceAvg, s.BuyPriceMin, s.SellPriceMax,
	}
}

const snapshotColumns = `
	item_id, date,
	buy_price, sell_price, buy_quantity, sell_quantity,
	buy_sold, sell_sold,
	buy_listed, sell_listed, buy_delisted, sell_delisted,
	buy_price_avg, sell_price_avg, buy_price_min, sell_price_max`

func scanSnapshot(row pgx.Row) (*domain.Snapshot, error) {
	var s domain.Snapshot
	err := row.Scan(
		&s.ItemID, &s.Date,
		&s.BuyPrice, &s.SellPrice, &s.BuyQuantity, &s.SellQuantity,
		&s.BuySold, &s.SellSold,
		&s.BuyListed, &s.SellListed, &s.BuyDelisted, &s.SellDelisted,
		&s.BuyPriceAvg, &s.SellPriceAvg, &s.BuyPriceMin, &s.SellPriceMax,
	)
	if err != nil {
		return nil, err
	}
	s.Date = s.Date.UTC()
	return &s, nil
}

// Upsert writes one daily snapshot; a rewrite of the same (item, date)
// key replaces the values in place.
func (r *SnapshotRepository) Upsert(ctx context.Context, snapshot *domain.Snapshot) error {
	if _, err := r.db.Pool.Exec(ctx, snapshotUpsert, snapshotArgs(snapshot)...); err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// UpsertBatch writes many snapshots in one transaction
func (r *SnapshotRepository) UpsertBatch(ctx context.Context, snapshots []domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := range snapshots {
		batch.Queue(snapshotUpsert, snapshotArgs(&snapshots[i])...)
	}

	results := tx.SendBatch(ctx, batch)
	for range snapshots {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert snapshot batch: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Get returns the snapshot for one item and metric day
func (r *SnapshotRepository) Get(ctx context.Context, itemID int, date time.Time) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots WHERE item_id = $1 AND date = $2`

	s, err := scanSnapshot(r.db.Pool.QueryRow(ctx, query, itemID, domain.MetricDate(date)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return s, nil
}

// Recent returns up to n snapshots for the item, most recent day first.
func (r *SnapshotRepository) Recent(ctx context.Context, itemID, n int) ([]domain.Snapshot, error) {
	if n <= 0 {
		n = 30
	}

	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE item_id = $1
		ORDER BY date DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, itemID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Count returns total number of snapshots
func (r *SnapshotRepository) Count(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM snapshots`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

// Prune removes snapshots older than the given time
func (r *SnapshotRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `DELETE FROM snapshots WHERE date < $1`

	result, err := r.db.Pool.Exec(ctx, query, domain.MetricDate(olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}

// Ensure SnapshotRepository implements ports.SnapshotRepository
var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)
