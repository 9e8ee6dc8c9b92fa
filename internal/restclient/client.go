// Package restclient is a minimal HTTP client for Serval's REST surface:
// exactly the get_json/put_json/get_text contract spec.md §1 allows the
// core to depend on, nothing else.
package restclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout is applied when a Config leaves Timeout unset.
const DefaultTimeout = 10 * time.Second

// Config describes how to reach a Serval instance.
type Config struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is a thin REST client scoped to Serval's surface.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// New builds a Client from cfg, applying DefaultTimeout when unset.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("restclient: building request for %s: %w", path, err)
	}
	if c.username != "" || c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	return req, nil
}

// GetJSON issues a GET and returns the raw response body alongside the
// status code. A non-200 status is not an error here: the body and
// status are returned and callers decide how to surface them.
func (c *Client) GetJSON(ctx context.Context, path string) (json.RawMessage, int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("restclient: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("restclient: reading GET %s body: %w", path, err)
	}
	return body, resp.StatusCode, nil
}

// PutJSON issues a PUT with a JSON-encoded body and returns the status code.
func (c *Client) PutJSON(ctx context.Context, path string, body interface{}) (int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("restclient: encoding PUT %s body: %w", path, err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, path, bytes.NewReader(encoded))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("restclient: PUT %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// GetText issues a GET and returns the response body as a string.
func (c *Client) GetText(ctx context.Context, path string) (string, int, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("restclient: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("restclient: reading GET %s body: %w", path, err)
	}
	return string(body), resp.StatusCode, nil
}
