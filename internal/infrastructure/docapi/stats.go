package docapi

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kirillkom/smart-document-manager/internal/core/domain"
)

func (c *Client) Statistics(ctx context.Context) (*domain.Statistics, error) {
	var out domain.Statistics
	if err := c.call(ctx, request{
		operation:  "stats",
		method:     http.MethodGet,
		path:       "/stats",
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CategoryStatistics(ctx context.Context) (*domain.CategoryStats, error) {
	var out domain.CategoryStats
	if err := c.call(ctx, request{
		operation:  "stats_categories",
		method:     http.MethodGet,
		path:       "/stats/categories",
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) TimelineStatistics(ctx context.Context, days int) (*domain.Timeline, error) {
	if days <= 0 {
		days = 30
	}
	query := url.Values{}
	query.Set("days", strconv.Itoa(days))

	var out domain.Timeline
	if err := c.call(ctx, request{
		operation:  "stats_timeline",
		method:     http.MethodGet,
		path:       "/stats/timeline",
		query:      query,
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExportCSV(ctx context.Context) ([]byte, error) {
	var out []byte
	if err := c.call(ctx, request{
		operation:  "export_csv",
		method:     http.MethodGet,
		path:       "/export/csv",
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ExportJSON(ctx context.Context) (*domain.JSONExport, error) {
	var out domain.JSONExport
	if err := c.call(ctx, request{
		operation:  "export_json",
		method:     http.MethodGet,
		path:       "/export/json",
		idempotent: true,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
