// Package datawars wraps the bulk catalog/history provider. The provider
// reports every money value in copper subunits already; rows still pass
// through the unit converter so fractional daily aggregates (averaged
// prices) truncate to whole copper consistently.
package datawars

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gw2trader/tradepost/internal/currency"
	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
	"github.com/gw2trader/tradepost/pkg/retry"
)

const (
	defaultBaseURL = "https://api.datawars2.ie/gw2/v1"
	catalogPath    = "/items/csv"
	historyPath    = "/history"

	dateLayout = "2006-01-02"
)

// Client implements ports.CatalogSource against the datawars2 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	policy     retry.Policy
	logger     *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the HTTP client timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRetry configures retry behavior
func WithRetry(maxAttempts int, base time.Duration) ClientOption {
	return func(c *Client) {
		c.policy.MaxAttempts = maxAttempts
		c.policy.BaseDelay = base
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "datawars_client")
	}
}

// NewClient creates a new datawars client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		policy:     retry.DefaultPolicy(),
		logger:     slog.Default().With("component", "datawars_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCatalog returns one entry per item with current prices and
// quantities, plus the count of malformed rows skipped. A row missing its
// id or name is dropped and counted; it never fails the batch.
func (c *Client) FetchCatalog(ctx context.Context) ([]domain.CatalogEntry, int, error) {
	body, err := c.get(ctx, c.baseURL+catalogPath)
	if err != nil {
		return nil, 0, err
	}

	reader := csv.NewReader(strings.NewReader(string(body)))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: catalog header: %v", domain.ErrMalformedRecord, err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"id", "name"} {
		if _, ok := col[required]; !ok {
			return nil, 0, fmt.Errorf("%w: catalog missing %q column", domain.ErrMalformedRecord, required)
		}
	}

	var entries []domain.CatalogEntry
	malformed := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			malformed++
			continue
		}

		entry, err := parseCatalogRow(row, col)
		if err != nil {
			malformed++
			continue
		}
		entries = append(entries, entry)
	}

	if malformed > 0 {
		c.logger.Warn("skipped malformed catalog rows", "count", malformed)
	}
	return entries, malformed, nil
}

func parseCatalogRow(row []string, col map[string]int) (domain.CatalogEntry, error) {
	field := func(name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	id, err := strconv.Atoi(field("id"))
	if err != nil {
		return domain.CatalogEntry{}, fmt.Errorf("%w: item id %q", domain.ErrMalformedRecord, field("id"))
	}
	name := field("name")
	if name == "" {
		return domain.CatalogEntry{}, fmt.Errorf("%w: item %d has no name", domain.ErrMalformedRecord, id)
	}

	buyPrice := copperField(field("buy_price"))
	sellPrice := copperField(field("sell_price"))
	buyQty := copperField(field("buy_quantity"))
	sellQty := copperField(field("sell_quantity"))

	item := domain.Item{
		ID:           id,
		Name:         name,
		Tradable:     buyPrice > 0 || sellPrice > 0,
		BuyPrice:     buyPrice,
		SellPrice:    sellPrice,
		BuyQuantity:  buyQty,
		SellQuantity: sellQty,
	}
	return domain.CatalogEntry{
		Item: item,
		Snapshot: domain.Snapshot{
			ItemID:       id,
			BuyPrice:     buyPrice,
			SellPrice:    sellPrice,
			BuyQuantity:  buyQty,
			SellQuantity: sellQty,
		},
	}, nil
}

// copperField parses a catalog number already denominated in copper.
// Blank or unparseable optional fields read as zero.
func copperField(s string) int64 {
	if s == "" || s == "None" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	v, err := currency.ToCopper(d, currency.UnitCopper)
	if err != nil {
		return 0
	}
	return v
}

// historyRow is the provider's daily history record. Counts are plain
// units; price aggregates are copper, fractional where the provider
// averaged them.
type historyRow struct {
	Date         string          `json:"date"`
	BuySold      int64           `json:"buy_sold"`
	SellSold     int64           `json:"sell_sold"`
	BuyListed    int64           `json:"buy_listed"`
	SellListed   int64           `json:"sell_listed"`
	BuyDelisted  int64           `json:"buy_delisted"`
	SellDelisted int64           `json:"sell_delisted"`
	BuyPriceAvg  decimal.Decimal `json:"buy_price_avg"`
	SellPriceAvg decimal.Decimal `json:"sell_price_avg"`
	BuyPriceMin  decimal.Decimal `json:"buy_price_min"`
	SellPriceMax decimal.Decimal `json:"sell_price_max"`
}

// FetchHistory returns up to days daily snapshots for the item, most
// recent first. Malformed rows are skipped; an unreachable source after
// retries fails with domain.ErrSourceUnavailable for this item only.
func (c *Client) FetchHistory(ctx context.Context, itemID, days int) ([]domain.Snapshot, error) {
	if days < 1 {
		days = 1
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	u, err := url.Parse(c.baseURL + historyPath)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("itemID", strconv.Itoa(itemID))
	q.Set("start", start.Format(dateLayout))
	q.Set("end", end.Format(dateLayout))
	u.RawQuery = q.Encode()

	body, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var rows []historyRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("%w: history for item %d: %v", domain.ErrMalformedRecord, itemID, err)
	}

	snapshots := make([]domain.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := row.toSnapshot(itemID)
		if err != nil {
			c.logger.Debug("skipping malformed history row",
				"item_id", itemID, "date", row.Date, "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Date.After(snapshots[j].Date)
	})
	return snapshots, nil
}

func (r historyRow) toSnapshot(itemID int) (domain.Snapshot, error) {
	date, err := time.Parse(dateLayout, r.Date)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%w: date %q", domain.ErrMalformedRecord, r.Date)
	}

	snap := domain.Snapshot{
		ItemID:       itemID,
		Date:         domain.MetricDate(date),
		BuySold:      r.BuySold,
		SellSold:     r.SellSold,
		BuyListed:    r.BuyListed,
		SellListed:   r.SellListed,
		BuyDelisted:  r.BuyDelisted,
		SellDelisted: r.SellDelisted,
	}

	for _, conv := range []struct {
		src decimal.Decimal
		dst *int64
	}{
		{r.BuyPriceAvg, &snap.BuyPriceAvg},
		{r.SellPriceAvg, &snap.SellPriceAvg},
		{r.BuyPriceMin, &snap.BuyPriceMin},
		{r.SellPriceMax, &snap.SellPriceMax},
	} {
		v, err := currency.ToCopper(conv.src, currency.UnitCopper)
		if err != nil {
			return domain.Snapshot{}, err
		}
		*conv.dst = v
	}
	return snap, nil
}

// get performs a GET with bounded exponential backoff on timeouts, 5xx and
// rate-limit signals.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	return retry.DoWithResult(ctx, c.policy, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("request failed, will retry", "url", rawURL, "error", err)
			return nil, retry.Transient(fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited by bulk provider")
			return nil, retry.Transient(domain.ErrSourceUnavailable)
		case resp.StatusCode >= 500:
			c.logger.Warn("bulk provider server error", "status", resp.StatusCode)
			return nil, retry.Transient(domain.ErrSourceUnavailable)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrSourceUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, retry.Transient(fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err))
		}
		return body, nil
	})
}

// Ensure Client implements CatalogSource
var _ ports.CatalogSource = (*Client)(nil)
