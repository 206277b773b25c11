package api

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// GetServerTime fetches the venue's clock as milliseconds since epoch.
func (c *Client) GetServerTime(ctx context.Context) (time.Time, error) {
	var resp ServerTimeResponse
	if err := c.get(ctx, "/api/time", nil, &resp); err != nil {
		return time.Time{}, fmt.Errorf("get server time: %w", err)
	}
	return time.UnixMilli(resp.ServerTime), nil
}

// HealthCheck reports whether the API is reachable and healthy. The /health
// route sits outside /api and returns no body.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/health", nil); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}
