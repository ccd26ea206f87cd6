package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/hubcull/internal/domain"
	"github.com/bnema/hubcull/internal/ports"
)

const (
	paginationAccept = "application/jupyterhub-pagination+json"
	maxResponseBytes = 16 << 20

	defaultRequestTimeout = 60 * time.Second
)

type Config struct {
	// BaseURL is the hub API root, e.g. http://hub:8081/hub/api.
	BaseURL string
	Token   string

	// Concurrency caps in-flight requests across listing and deletes.
	// 0 leaves them unbounded.
	Concurrency int

	// RequestTimeout bounds any single request when the caller's
	// context carries no deadline of its own.
	RequestTimeout time.Duration

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client consumes the hub's REST API. All requests are bearer-token
// authenticated and pass through the shared concurrency gate.
type Client struct {
	base           *url.URL
	token          string
	httpClient     *http.Client
	requestTimeout time.Duration
	gate           *Gate
	log            zerolog.Logger
}

var _ ports.HubClient = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		return nil, domain.ErrMissingToken
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	return &Client{
		base:           base,
		token:          cfg.Token,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		gate:           NewGate(cfg.Concurrency),
		log:            cfg.Logger,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, domain.ErrMissingURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse hub API URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, errors.New("hub API URL must use http or https")
	}
	if parsed.Host == "" {
		return nil, errors.New("hub API URL host is required")
	}

	return parsed, nil
}

func (c *Client) Version(ctx context.Context) (string, error) {
	endpoint := strings.TrimRight(c.base.String(), "/") + "/"

	status, body, err := c.do(ctx, http.MethodGet, endpoint, nil, false)
	if err != nil {
		return "", fmt.Errorf("probe hub version: %w", err)
	}
	if !is2xx(status) {
		return "", apiError("probe hub version", status, body)
	}

	var payload struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode hub version response: %w", err)
	}

	return payload.Version, nil
}

func (c *Client) ListAccounts(opts ports.ListOptions) ports.AccountSeq {
	endpoint := c.endpoint("users")

	query := url.Values{}
	if opts.State != "" {
		query.Set("state", opts.State)
	}
	if opts.PageSize > 0 {
		query.Set("limit", fmt.Sprintf("%d", opts.PageSize))
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return &accountPager{client: c, next: endpoint, first: endpoint}
}

func (c *Client) StopSession(ctx context.Context, account, session string, remove bool) (bool, error) {
	var endpoint string
	if session == "" {
		endpoint = c.endpoint("users", account, "server")
	} else {
		endpoint = c.endpoint("users", account, "servers", session)
	}

	var body []byte
	if session != "" && remove {
		body = []byte(`{"remove": true}`)
	}

	status, payload, err := c.do(ctx, http.MethodDelete, endpoint, body, false)
	if err != nil {
		return false, fmt.Errorf("stop session: %w", err)
	}
	if status == http.StatusAccepted {
		// Accepted but not finished; the session must be treated as
		// still alive this cycle.
		return false, nil
	}
	if !is2xx(status) {
		return false, apiError("stop session", status, payload)
	}

	return true, nil
}

func (c *Client) DeleteAccount(ctx context.Context, account string) error {
	endpoint := c.endpoint("users", account)

	status, payload, err := c.do(ctx, http.MethodDelete, endpoint, nil, false)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if !is2xx(status) {
		return apiError("delete account", status, payload)
	}

	return nil
}

// do issues one gate-guarded request and reads the full body while the
// slot is still held, so the in-flight bound covers the body transfer.
// The per-request timeout starts only once a slot is acquired; waiting
// for the gate is bounded by the caller's context alone.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, paginated bool) (int, []byte, error) {
	var (
		status  int
		payload []byte
	)
	err := c.gate.Do(ctx, func() error {
		reqCtx, cancel := c.requestContext(ctx)
		defer cancel()

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(reqCtx, method, endpoint, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "token "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if paginated {
			req.Header.Set("Accept", paginationAccept)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		status = resp.StatusCode
		payload, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		return nil
	})

	return status, payload, err
}

func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, segment := range segments {
		escaped[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(c.base.String(), "/") + "/" + strings.Join(escaped, "/")
}

func is2xx(status int) bool {
	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

func apiError(op string, status int, body []byte) error {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		return fmt.Errorf("%s: status %d", op, status)
	}
	return fmt.Errorf("%s: status %d: %s", op, status, snippet)
}
