package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetTrades fetches a page of executed trades.
func (c *Client) GetTrades(ctx context.Context, opts GetTradesOptions) (*TradesResponse, error) {
	query := url.Values{}
	query.Set("orderbook_id", opts.OrderbookID)

	if opts.User != "" {
		query.Set("user_pubkey", opts.User)
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

	var resp TradesResponse
	if err := c.get(ctx, "/api/trades", query, &resp); err != nil {
		return nil, fmt.Errorf("get trades: %w", err)
	}

	return &resp, nil
}

// GetTradeHistory fetches one page of trade history for an orderbook starting
// at cursor. cursor 0 starts from the newest trade.
func (c *Client) GetTradeHistory(ctx context.Context, orderbookID string, cursor int64, limit int) (*TradesResponse, error) {
	return c.GetTrades(ctx, GetTradesOptions{
		OrderbookID: orderbookID,
		Cursor:      cursor,
		Limit:       limit,
	})
}

// GetAllTrades fetches every trade for an orderbook by paginating through
// results. Uses DefaultPaginationTimeout (10m) if the context has no deadline.
func (c *Client) GetAllTrades(ctx context.Context, orderbookID string) ([]APITrade, error) {
	// Apply default timeout if context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var allTrades []APITrade
	opts := GetTradesOptions{OrderbookID: orderbookID, Limit: 500}

	for {
		resp, err := c.GetTrades(ctx, opts)
		if err != nil {
			return nil, err
		}

		allTrades = append(allTrades, resp.Trades...)

		if !resp.HasMore || resp.NextCursor == nil {
			break
		}
		opts.Cursor = *resp.NextCursor
	}

	return allTrades, nil
}
