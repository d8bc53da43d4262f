// Package gw2 wraps the official API: live order-book depth and item
// reference metadata. The official API already reports prices in the
// canonical copper subunit, so values pass through unconverted.
package gw2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gw2trader/tradepost/internal/domain"
	"github.com/gw2trader/tradepost/internal/ports"
	"github.com/gw2trader/tradepost/pkg/retry"
)

const (
	defaultBaseURL = "https://api.guildwars2.com/v2"
	listingsPath   = "/commerce/listings"
	itemsPath      = "/items"
	buildPath      = "/build"

	// The official API caps bulk id lookups at 200 per request.
	chunkSize = 200
)

// Client implements ports.OrderBookSource against the official API.
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
		c.logger = logger.With("component", "gw2_client")
	}
}

// NewClient creates a new official-API client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		policy:     retry.DefaultPolicy(),
		logger:     slog.Default().With("component", "gw2_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listingTier is one depth level as the API reports it.
type listingTier struct {
	UnitPrice int64 `json:"unit_price"`
	Quantity  int64 `json:"quantity"`
}

// listingResponse is one item's order book as the API reports it: buys
// ordered best (highest) first, sells best (lowest) first.
type listingResponse struct {
	ID    int           `json:"id"`
	Buys  []listingTier `json:"buys"`
	Sells []listingTier `json:"sells"`
}

func (l listingResponse) toSample(capturedAt time.Time) *domain.OrderBookSample {
	sample := &domain.OrderBookSample{
		ItemID:     l.ID,
		Bids:       make([]domain.PriceTier, 0, len(l.Buys)),
		Asks:       make([]domain.PriceTier, 0, len(l.Sells)),
		CapturedAt: capturedAt,
	}
	for _, t := range l.Buys {
		sample.Bids = append(sample.Bids, domain.PriceTier{Price: t.UnitPrice, Quantity: t.Quantity})
	}
	for _, t := range l.Sells {
		sample.Asks = append(sample.Asks, domain.PriceTier{Price: t.UnitPrice, Quantity: t.Quantity})
	}
	return sample
}

// FetchOrderBook returns the current depth for one item.
func (c *Client) FetchOrderBook(ctx context.Context, itemID int) (*domain.OrderBookSample, error) {
	body, status, err := c.get(ctx, c.baseURL+listingsPath+"/"+strconv.Itoa(itemID))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: item %d", domain.ErrNoOrderBook, itemID)
	}

	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("%w: listings for item %d: %v", domain.ErrMalformedRecord, itemID, err)
	}
	return listing.toSample(time.Now().UTC()), nil
}

// FetchOrderBooks bulk-fetches depth for many items in chunks. Items
// without listings are absent from the result; malformed entries are
// skipped, never batch-fatal.
func (c *Client) FetchOrderBooks(ctx context.Context, itemIDs []int) (map[int]*domain.OrderBookSample, error) {
	results := make(map[int]*domain.OrderBookSample, len(itemIDs))

	for _, chunk := range chunks(itemIDs, chunkSize) {
		body, status, err := c.get(ctx, c.baseURL+listingsPath+"?ids="+joinIDs(chunk))
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			// None of the chunk's items have listings.
			continue
		}

		var listings []listingResponse
		if err := json.Unmarshal(body, &listings); err != nil {
			c.logger.Warn("skipping malformed listings chunk", "error", err)
			continue
		}

		capturedAt := time.Now().UTC()
		for _, l := range listings {
			if l.ID == 0 {
				continue
			}
			results[l.ID] = l.toSample(capturedAt)
		}
	}
	return results, nil
}

// itemResponse is the official item record; only the fields the catalog
// cares about.
type itemResponse struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	VendorValue int64  `json:"vendor_value"`
}

// FetchItemInfo returns reference metadata for the given ids in chunks.
func (c *Client) FetchItemInfo(ctx context.Context, itemIDs []int) (map[int]domain.ItemInfo, error) {
	results := make(map[int]domain.ItemInfo, len(itemIDs))

	for _, chunk := range chunks(itemIDs, chunkSize) {
		body, status, err := c.get(ctx, c.baseURL+itemsPath+"?ids="+joinIDs(chunk))
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			continue
		}

		var items []itemResponse
		if err := json.Unmarshal(body, &items); err != nil {
			c.logger.Warn("skipping malformed items chunk", "error", err)
			continue
		}

		for _, it := range items {
			if it.ID == 0 {
				continue
			}
			results[it.ID] = domain.ItemInfo{
				ID:          it.ID,
				Name:        it.Name,
				VendorValue: it.VendorValue,
			}
		}
	}
	return results, nil
}

// Ping checks that the official API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, status, err := c.get(ctx, c.baseURL+buildPath)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, status)
	}
	return nil
}

// get performs a GET with bounded backoff. 404 is returned to the caller
// (it means "no data", not failure); other non-2xx statuses fail.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	type result struct {
		body   []byte
		status int
	}

	res, err := retry.DoWithResult(ctx, c.policy, func(ctx context.Context) (result, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return result{}, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.logger.Debug("request failed, will retry", "url", rawURL, "error", err)
			return result{}, retry.Transient(fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err))
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			c.logger.Warn("rate limited by official API")
			return result{}, retry.Transient(domain.ErrSourceUnavailable)
		case resp.StatusCode >= 500:
			c.logger.Warn("official API server error", "status", resp.StatusCode)
			return result{}, retry.Transient(domain.ErrSourceUnavailable)
		case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound:
			return result{}, fmt.Errorf("%w: unexpected status %d", domain.ErrSourceUnavailable, resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return result{}, retry.Transient(fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err))
		}
		return result{body: body, status: resp.StatusCode}, nil
	})
	if err != nil {
		return nil, 0, err
	}
	return res.body, res.status, nil
}

func chunks(ids []int, size int) [][]int {
	if len(ids) == 0 {
		return nil
	}
	out := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// Ensure Client implements OrderBookSource
var _ ports.OrderBookSource = (*Client)(nil)
