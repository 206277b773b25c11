package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetPriceHistory fetches historical candles for an orderbook.
func (c *Client) GetPriceHistory(ctx context.Context, opts GetPriceHistoryOptions) (*PriceHistoryResponse, error) {
	query := url.Values{}
	query.Set("orderbook_id", opts.OrderbookID)

	if opts.Resolution != "" {
		query.Set("resolution", string(opts.Resolution))
	}
	if opts.From > 0 {
		query.Set("from", strconv.FormatInt(opts.From, 10))
	}
	if opts.To > 0 {
		query.Set("to", strconv.FormatInt(opts.To, 10))
	}
	if opts.Cursor > 0 {
		query.Set("cursor", strconv.FormatInt(opts.Cursor, 10))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.IncludeOHLCV {
		query.Set("include_ohlcv", "true")
	}

	var resp PriceHistoryResponse
	if err := c.get(ctx, "/api/price-history", query, &resp); err != nil {
		return nil, fmt.Errorf("get price history: %w", err)
	}

	return &resp, nil
}
