package api

import (
	"context"
	"strings"

	"github.com/banshee-data/squat.report/internal/db"
	"github.com/banshee-data/squat.report/internal/httputil"
	"github.com/banshee-data/squat.report/internal/squat"
)

// Client submits results to a remote squat server.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil HTTP client
// uses http.DefaultClient.
func NewClient(baseURL string, c httputil.HTTPClient) *Client {
	if c == nil {
		c = httputil.NewStandardClient(nil)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: c}
}

// SubmitResult posts a computed result and returns the stored record.
func (c *Client) SubmitResult(ctx context.Context, label, source string, res squat.Result) (*db.ResultRecord, error) {
	return c.submit(ctx, submitResultRequest{Label: label, Source: source, Result: &res})
}

// SubmitSeries posts a raw depth series for the server to analyse.
func (c *Client) SubmitSeries(ctx context.Context, label, source string, series []squat.Sample) (*db.ResultRecord, error) {
	if series == nil {
		series = []squat.Sample{}
	}
	return c.submit(ctx, submitResultRequest{Label: label, Source: source, Series: series})
}

func (c *Client) submit(ctx context.Context, req submitResultRequest) (*db.ResultRecord, error) {
	var rec db.ResultRecord
	if err := httputil.PostJSON(ctx, c.http, c.baseURL+"/api/results", req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
