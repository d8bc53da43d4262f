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

// ItemRepository implements the ports.ItemRepository interface
type ItemRepository struct {
	db *DB
}

// NewItemRepository creates a new PostgreSQL item repository
func NewItemRepository(db *DB) ports.ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `
	id, name, tradable, vendor_value,
	buy_price, sell_price, buy_quantity, sell_quantity,
	buy_sold_1d, sell_sold_1d, buy_sold_7d, sell_sold_7d,
	buy_sold_30d, sell_sold_30d,
	buy_floor_yesterday, sell_ceiling_yesterday,
	flip_score, last_refreshed, updated_at`

func scanItem(row pgx.Row) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(
		&item.ID, &item.Name, &item.Tradable, &item.VendorValue,
		&item.BuyPrice, &item.SellPrice, &item.BuyQuantity, &item.SellQuantity,
		&item.BuySold1d, &item.SellSold1d, &item.BuySold7d, &item.SellSold7d,
		&item.BuySold30d, &item.SellSold30d,
		&item.BuyFloorYesterday, &item.SellCeilingYesterday,
		&item.FlipScore, &item.LastRefreshed, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func collectItems(rows pgx.Rows) ([]domain.Item, error) {
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}
	return items, nil
}

// UpsertCatalog merges catalog entries in one transaction. Vendor values
// and history aggregates already stored survive the merge; only the live
// market fields and the name are replaced.
func (r *ItemRepository) UpsertCatalog(ctx context.Context, entries []domain.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO items (id, name, tradable, buy_price, sell_price, buy_quantity, sell_quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tradable = EXCLUDED.tradable,
			buy_price = EXCLUDED.buy_price,
			sell_price = EXCLUDED.sell_price,
			buy_quantity = EXCLUDED.buy_quantity,
			sell_quantity = EXCLUDED.sell_quantity,
			updated_at = NOW()
	`

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(query,
			e.Item.ID,
			e.Item.Name,
			e.Item.Tradable,
			e.Item.BuyPrice,
			e.Item.SellPrice,
			e.Item.BuyQuantity,
			e.Item.SellQuantity,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to upsert item: %w", err)
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

// Get retrieves an item by id
func (r *ItemRepository) Get(ctx context.Context, id int) (*domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1`

	item, err := scanItem(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// Search finds items whose name contains the query, case-insensitively.
func (r *ItemRepository) Search(ctx context.Context, name string, limit int) ([]domain.Item, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE name ILIKE '%' || $1 || '%'
		ORDER BY name, id
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	return collectItems(rows)
}

// List returns items matching the filter
func (r *ItemRepository) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if filter.TradableOnly {
		query += ` WHERE tradable = TRUE`
	}
	query += ` ORDER BY id`

	var rows pgx.Rows
	var err error
	if filter.Limit > 0 {
		rows, err = r.db.Pool.Query(ctx, query+` LIMIT $1`, filter.Limit)
	} else {
		rows, err = r.db.Pool.Query(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return collectItems(rows)
}

// TopByVolume returns the k most traded items by current tradable volume.
func (r *ItemRepository) TopByVolume(ctx context.Context, k int) ([]domain.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE tradable = TRUE
		ORDER BY buy_quantity + sell_quantity DESC, id
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to get top items by volume: %w", err)
	}
	return collectItems(rows)
}

// TopByFlipScore returns candidates ordered by the materialized score
// descending, ties broken by ascending id. The scan uses the flip_score
// index; the full table is never loaded.
func (r *ItemRepository) TopByFlipScore(ctx context.Context, filter ports.FlipCandidateFilter) ([]domain.Item, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE tradable = TRUE AND flip_score > 0
	`
	args := []any{limit}
	if filter.MaxBuyPrice > 0 {
		query += ` AND buy_price <= $2`
		args = append(args, filter.MaxBuyPrice)
	}
	query += ` ORDER BY flip_score DESC, id ASC LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get top items by score: %w", err)
	}
	return collectItems(rows)
}

// MissingVendorValue returns ids of tradable items whose vendor value has
// not been backfilled yet.
func (r *ItemRepository) MissingVendorValue(ctx context.Context, limit int) ([]int, error) {
	query := `
		SELECT id FROM items
		WHERE tradable = TRUE AND vendor_value = 0
		ORDER BY id
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to find items missing vendor value: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan item id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item ids: %w", err)
	}
	return ids, nil
}

// SetVendorValues records backfilled vendor values
func (r *ItemRepository) SetVendorValues(ctx context.Context, values map[int]int64) error {
	if len(values) == 0 {
		return nil
	}

	query := `UPDATE items SET vendor_value = $2, updated_at = NOW() WHERE id = $1`

	batch := &pgx.Batch{}
	for id, value := range values {
		batch.Queue(query, id, value)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range values {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to set vendor value: %w", err)
		}
	}
	return nil
}

// UpdateAggregates materializes per-item history aggregates and scores.
// Each row is its own statement, so a reader never sees a half-written
// item even while the batch is in flight.
func (r *ItemRepository) UpdateAggregates(ctx context.Context, updates []ports.AggregateUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	query := `
		UPDATE items SET
			buy_sold_1d = $2, sell_sold_1d = $3,
			buy_sold_7d = $4, sell_sold_7d = $5,
			buy_sold_30d = $6, sell_sold_30d = $7,
			buy_floor_yesterday = $8, sell_ceiling_yesterday = $9,
			flip_score = $10,
			updated_at = NOW()
		WHERE id = $1
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query,
			u.ItemID,
			u.BuySold1d, u.SellSold1d,
			u.BuySold7d, u.SellSold7d,
			u.BuySold30d, u.SellSold30d,
			u.BuyFloorYesterday, u.SellCeilingYesterday,
			u.FlipScore,
		)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range updates {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to update aggregates: %w", err)
		}
	}
	return nil
}

// TouchRefreshed records when items were last deep-refreshed
func (r *ItemRepository) TouchRefreshed(ctx context.Context, ids []int, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	query := `UPDATE items SET last_refreshed = $2 WHERE id = ANY($1)`

	if _, err := r.db.Pool.Exec(ctx, query, ids, at); err != nil {
		return fmt.Errorf("failed to touch refreshed items: %w", err)
	}
	return nil
}

// Count returns total number of items
func (r *ItemRepository) Count(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM items`

	var count int
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// Ensure ItemRepository implements ports.ItemRepository
var _ ports.ItemRepository = (*ItemRepository)(nil)
