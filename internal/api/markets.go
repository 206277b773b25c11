package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// GetMarkets fetches all markets with their orderbook listings.
func (c *Client) GetMarkets(ctx context.Context) (*MarketsResponse, error) {
	var resp MarketsResponse
	if err := c.get(ctx, "/api/markets", nil, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return &resp, nil
}

// GetMarket fetches a single market by pubkey.
func (c *Client) GetMarket(ctx context.Context, marketPubkey string) (*MarketInfoResponse, error) {
	var resp MarketInfoResponse
	if err := c.get(ctx, "/api/markets/"+marketPubkey, nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", marketPubkey, err)
	}
	return &resp, nil
}

// GetMarketBySlug fetches a single market by its URL slug.
func (c *Client) GetMarketBySlug(ctx context.Context, slug string) (*MarketInfoResponse, error) {
	var resp MarketInfoResponse
	if err := c.get(ctx, "/api/markets/by-slug/"+slug, nil, &resp); err != nil {
		return nil, fmt.Errorf("get market by slug %s: %w", slug, err)
	}
	return &resp, nil
}

// GetOrderbook fetches current orderbook depth. depth 0 returns all levels.
func (c *Client) GetOrderbook(ctx context.Context, orderbookID string, depth int) (*OrderbookResponse, error) {
	query := url.Values{}
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}

	var resp OrderbookResponse
	if err := c.get(ctx, "/api/orderbook/"+orderbookID, query, &resp); err != nil {
		return nil, fmt.Errorf("get orderbook %s: %w", orderbookID, err)
	}

	return &resp, nil
}
