package traffic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/vatscope/traffic-server/pkg/logger"
)

// StatusClient fetches raw status files over HTTP, rotating through the
// configured mirror URLs so no single mirror carries every request.
type StatusClient struct {
	httpClient *http.Client
	urls       []string
	logger     *logger.Logger

	mu   sync.Mutex
	next int // index of the mirror to use on the next fetch
}

// NewStatusClient creates a status-file client over the given mirror URLs.
func NewStatusClient(urls []string, timeout time.Duration, loggerObj *logger.Logger) (*StatusClient, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one status URL is required")
	}
	for _, u := range urls {
		if u == "" {
			return nil, fmt.Errorf("status URL must not be empty")
		}
	}
	return &StatusClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		urls:   urls,
		logger: loggerObj.Named("status-cli"),
	}, nil
}

// nextURL returns the mirror for this fetch and advances the rotation.
func (c *StatusClient) nextURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := c.urls[c.next]
	c.next = (c.next + 1) % len(c.urls)
	return u
}

// GetTrafficData downloads one raw status-file snapshot, recording which
// mirror served it and how long the transfer took.
func (c *StatusClient) GetTrafficData(ctx context.Context) (*TrafficData, error) {
	urlStr := c.nextURL()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug("Fetching status file",
		logger.String("url", urlStr),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to execute request", logger.Error(err), logger.String("url", urlStr))
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Unexpected status code",
			logger.Int("status_code", resp.StatusCode),
			logger.String("url", urlStr))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("Failed to read response body", logger.Error(err))
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	elapsed := time.Since(start)

	data, err := NewTrafficData(string(body), urlStr, time.Now().UTC(), elapsed)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Successfully fetched status file",
		logger.String("url", urlStr),
		logger.Int("bytes", len(body)),
		logger.Duration("fetch_time", elapsed),
	)

	return data, nil
}
