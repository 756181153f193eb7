package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
)

// Options configures a resource service client.
type Options struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// client holds the plumbing shared by the user, project and asset clients.
type client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

func newClient(name string, opts Options) (*client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%s gateway: base url is required", name)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &client{name: name, baseURL: baseURL, httpClient: httpClient, logger: logger}, nil
}

// get fetches {base}/{collection}/{id}. found is false on 404. When out is
// non-nil a 200 body is decoded into it. Any other outcome is reported as
// domain.ErrDependencyUnavailable.
func (c *client) get(ctx context.Context, collection string, id uuid.UUID, token string, out any) (found bool, err error) {
	endpoint := c.baseURL + "/" + collection + "/" + id.String()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, c.unavailable("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, c.unavailable("http request", err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("gateway", c.name).
		Str("url", endpoint).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("gateway lookup")

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, c.unavailable("lookup", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, c.unavailable("decode response", err)
	}
	return true, nil
}

func (c *client) unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s gateway: %s: %w", domain.ErrDependencyUnavailable, c.name, op, err)
}
