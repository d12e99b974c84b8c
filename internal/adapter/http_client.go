package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/beatwave/dashsync/models"
)

// HTTPClientConfig configures the HTTP implementation of PollClient.
type HTTPClientConfig struct {
	// BaseURL is the sync server's address, scheme optional
	// (e.g. "localhost:8080" or "https://sync.example.com").
	BaseURL string
	// Token is an optional bearer token identifying the user; without it
	// the server serves the global queue only.
	Token string
	// Timeout bounds every request. Default 15s.
	Timeout time.Duration
}

type httpPollClient struct {
	client *resty.Client
	token  string
}

// NewHTTPPollClient constructs a resty-backed PollClient. Returns
// ErrInvalidBaseURL when cfg.BaseURL is empty or unparsable.
func NewHTTPPollClient(cfg HTTPClientConfig) (PollClient, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.Timeout)

	return &httpPollClient{client: cli, token: strings.TrimSpace(cfg.Token)}, nil
}

// Poll implements PollClient. Any transport error or non-2xx status is
// wrapped in ErrPolling so the manager can classify it uniformly.
func (h *httpPollClient) Poll(ctx context.Context, since int64) (models.PollResponse, error) {
	resp, err := h.authedRequest(ctx).
		SetQueryParam("since", strconv.FormatInt(since, 10)).
		Get("/api/sync/poll")
	if err != nil {
		return models.PollResponse{}, fmt.Errorf("%w: %w", ErrPolling, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.PollResponse{}, err
	}

	var pr models.PollResponse
	if err = json.Unmarshal(resp.Body(), &pr); err != nil {
		return models.PollResponse{}, fmt.Errorf("%w: decode response: %w", ErrPolling, err)
	}
	if !pr.Success {
		return models.PollResponse{}, fmt.Errorf("%w: server reported failure", ErrPolling)
	}

	return pr, nil
}

// CheckConsistency implements PollClient.
func (h *httpPollClient) CheckConsistency(ctx context.Context) (models.ConsistencyResponse, error) {
	resp, err := h.authedRequest(ctx).Get("/api/sync/consistency")
	if err != nil {
		return models.ConsistencyResponse{}, fmt.Errorf("consistency request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return models.ConsistencyResponse{}, err
	}

	var cr models.ConsistencyResponse
	if err = json.Unmarshal(resp.Body(), &cr); err != nil {
		return models.ConsistencyResponse{}, fmt.Errorf("decode consistency response: %w", err)
	}

	return cr, nil
}

func (h *httpPollClient) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if h.token != "" {
		req.SetHeader("Authorization", "Bearer "+h.token)
	}
	return req
}

func mapHTTPError(resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(resp.StatusCode())
	}
	return fmt.Errorf("%w: http %d: %s", ErrPolling, resp.StatusCode(), body)
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidBaseURL
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidBaseURL
	}

	return strings.TrimRight(u.String(), "/"), nil
}
