package easyorder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

// Probe endpoint lists. Like the status templates these are ordered and
// fixed; they only read, never mutate.
var (
	connectionProbePaths = []string{"/health", "/status", "/ping", "/orders", "/"}
	discoveryProbePaths  = []string{"/docs", "/swagger", "/api-docs", "/documentation", "/openapi.json", "/swagger.json"}
)

// ProbeResult is one responding probe endpoint.
type ProbeResult struct {
	Endpoint    string `json:"endpoint"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
}

// TestConnection checks whether the primary base URL answers on any of the
// well-known read paths. Used by the status surface, never on the order path.
func (c *Client) TestConnection(ctx context.Context) (ProbeResult, bool) {
	for _, p := range connectionProbePaths {
		res, ok := c.get(ctx, c.cfg.BaseURL+p)
		if ok {
			return res, true
		}
	}
	return ProbeResult{}, false
}

// DiscoverAPIStructure probes common documentation endpoints and, when
// outPath is non-empty, writes the responding set there as JSON for manual
// inspection.
func (c *Client) DiscoverAPIStructure(ctx context.Context, outPath string) ([]ProbeResult, error) {
	var results []ProbeResult
	for _, p := range discoveryProbePaths {
		if res, ok := c.get(ctx, c.cfg.BaseURL+p); ok {
			results = append(results, res)
		}
	}
	if outPath != "" && len(results) > 0 {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return results, fmt.Errorf("marshal discovery results: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return results, fmt.Errorf("write discovery results: %w", err)
		}
		log.Printf("[easyorder] wrote API discovery results to %s", outPath)
	}
	return results, nil
}

func (c *Client) get(ctx context.Context, url string) (ProbeResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ProbeResult{}, false
	}
	c.setHeaders(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return ProbeResult{}, false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProbeResult{}, false
	}
	return ProbeResult{
		Endpoint:    url,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, true
}
