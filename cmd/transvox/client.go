package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"transvox/internal/api"
)

// apiClient talks to the transvoxd HTTP API.
type apiClient struct {
	base  string
	user  string
	token string
	http  *http.Client
}

func newAPIClient(base, user, token string) *apiClient {
	return &apiClient{
		base:  base,
		user:  user,
		token: token,
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-User-ID", c.user)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s (%s)", apiErr.Error, resp.Status)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) Start(ctx context.Context, req api.StartRequest) (api.StartResponse, error) {
	var out api.StartResponse
	err := c.do(ctx, http.MethodPost, "/api/pipeline/start", req, &out)
	return out, err
}

func (c *apiClient) Status(ctx context.Context, jobID string) (api.JobView, error) {
	var out api.JobView
	err := c.do(ctx, http.MethodGet, "/api/pipeline/status/"+jobID, nil, &out)
	return out, err
}

func (c *apiClient) Stop(ctx context.Context, jobID string) (api.JobView, error) {
	var out api.JobView
	err := c.do(ctx, http.MethodPost, "/api/pipeline/stop/"+jobID, nil, &out)
	return out, err
}

func (c *apiClient) Clear(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/api/pipeline/clear/"+jobID, nil, nil)
}

func (c *apiClient) History(ctx context.Context, limit int) (api.HistoryResponse, error) {
	path := "/api/pipeline/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out api.HistoryResponse
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (c *apiClient) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &out)
	return out, err
}

func (c *apiClient) Whoami(ctx context.Context) (api.WhoamiResponse, error) {
	var out api.WhoamiResponse
	err := c.do(ctx, http.MethodGet, "/whoami", nil, &out)
	return out, err
}
