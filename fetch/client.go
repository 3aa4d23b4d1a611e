// Package fetch pulls raw CSV extracts from the upstream surveillance API
// and archives them to the local extracts directory.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client downloads bearer-authenticated CSV extracts.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
	}
}

// Extract downloads one CSV extract by endpoint path.
func (c *Client) Extract(ctx context.Context, endpoint string) ([]byte, error) {
	target, err := url.JoinPath(c.baseURL, endpoint)
	if err != nil {
		return nil, fmt.Errorf("build extract url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "text/csv")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", endpoint, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Result carries the archived paths of one fetch pass. A nil path means
// that extract failed; the other may still have succeeded.
type Result struct {
	SessionsPath  string
	SpecimensPath string
}

// FetchAll downloads both extracts and archives them under dir with
// month-stamped filenames. Failures are isolated per extract: one bad
// endpoint never blocks the other.
func (c *Client) FetchAll(ctx context.Context, dir string, now time.Time) (Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create extracts dir: %w", err)
	}
	stamp := now.Format("2006_01")
	var res Result
	var firstErr error

	archive := func(endpoint, filename string) string {
		data, err := c.Extract(ctx, endpoint)
		if err != nil {
			log.Printf("fetch: extract=%s failed: %v", endpoint, err)
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		path := filepath.Join(dir, filename)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Printf("fetch: archive %s failed: %v", path, err)
			if firstErr == nil {
				firstErr = err
			}
			return ""
		}
		log.Printf("fetch: extract=%s bytes=%d archived=%s", endpoint, len(data), path)
		return path
	}

	res.SessionsPath = archive("sessions", fmt.Sprintf("surveillance_%s.csv", stamp))
	res.SpecimensPath = archive("specimens", fmt.Sprintf("specimens_%s.csv", stamp))
	if res.SessionsPath == "" && res.SpecimensPath == "" {
		return res, fmt.Errorf("all extracts failed: %w", firstErr)
	}
	return res, nil
}
