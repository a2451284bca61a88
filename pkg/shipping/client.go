package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/pixsoft/tienda-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://app.skydropx.com/api/v1"
	defaultPollInterval        = 500 * time.Millisecond
	defaultPollAttempts        = 10
	requestBodyReadLimit int64 = 1024
)

var (
	errCredentialsRequired = errors.New("shipping client credentials are required")
	errNoRates             = errors.New("quotation completed with no rates")
)

// Destination is where the parcel is going.
type Destination struct {
	PostalCode string
	City       string
	State      string
}

// Origin is the warehouse the parcel ships from.
type Origin struct {
	PostalCode string
	City       string
	State      string
}

// Client quotes shipments against a Skydropx-style carrier aggregator.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	origin       Origin

	pollInterval time.Duration
	pollAttempts int
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured aggregator base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithPollInterval overrides how long the client waits between quotation polls.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

// NewClient builds the shipping client given aggregator credentials.
func NewClient(clientID, clientSecret string, origin Origin, opts ...Option) (*Client, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, errCredentialsRequired
	}

	client := &Client{
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		origin:       origin,
		baseURL:      defaultBaseURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		pollInterval: defaultPollInterval,
		pollAttempts: defaultPollAttempts,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Quote returns the cheapest available rate for the destination. Callers are
// expected to fall back to a flat price when this fails.
func (c *Client) Quote(ctx context.Context, dest Destination) (decimal.Decimal, error) {
	if c == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, "shipping client not configured")
	}
	if strings.TrimSpace(dest.PostalCode) == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "destination postal code is required")
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	quotationID, rates, done, err := c.createQuotation(ctx, token, dest)
	if err != nil {
		return decimal.Zero, err
	}

	for attempt := 0; !done && attempt < c.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, ctx.Err(), "quotation poll cancelled")
		case <-time.After(c.pollInterval):
		}
		rates, done, err = c.fetchQuotation(ctx, token, quotationID)
		if err != nil {
			return decimal.Zero, err
		}
	}

	cheapest, err := cheapestRate(rates)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "selecting quotation rate")
	}
	return cheapest, nil
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"grant_type":    "client_credentials",
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal token request")
	}

	var apiResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.postJSON(ctx, "oauth/token", "", payload, &apiResp); err != nil {
		return "", err
	}
	if apiResp.AccessToken == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "empty access token from shipping provider")
	}
	return apiResp.AccessToken, nil
}

type quotationRate struct {
	Total        string `json:"total"`
	ProviderName string `json:"provider_name"`
}

type quotationResponse struct {
	ID          string          `json:"id"`
	IsCompleted bool            `json:"is_completed"`
	Rates       []quotationRate `json:"rates"`
}

func (c *Client) createQuotation(ctx context.Context, token string, dest Destination) (string, []quotationRate, bool, error) {
	payload, err := json.Marshal(map[string]any{
		"quotation": map[string]any{
			"address_from": map[string]string{
				"country_code": "MX",
				"postal_code":  c.origin.PostalCode,
				"area_level1":  c.origin.State,
				"area_level2":  c.origin.City,
			},
			"address_to": map[string]string{
				"country_code": "MX",
				"postal_code":  dest.PostalCode,
				"area_level1":  dest.State,
				"area_level2":  dest.City,
			},
			"parcel": map[string]int{
				"length": 30,
				"width":  30,
				"height": 30,
				"weight": 1,
			},
		},
	})
	if err != nil {
		return "", nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal quotation request")
	}

	var apiResp quotationResponse
	if err := c.postJSON(ctx, "quotations", token, payload, &apiResp); err != nil {
		return "", nil, false, err
	}
	return apiResp.ID, apiResp.Rates, apiResp.IsCompleted, nil
}

func (c *Client) fetchQuotation(ctx context.Context, token, quotationID string) ([]quotationRate, bool, error) {
	url := fmt.Sprintf("%s/quotations/%s", strings.TrimRight(c.baseURL, "/"), quotationID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build quotation fetch request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute quotation fetch request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "quotation fetch failed")
	}

	var apiResp quotationResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode quotation response")
	}
	return apiResp.Rates, apiResp.IsCompleted, nil
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload []byte, out any) error {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build shipping request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute shipping request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "shipping request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipping response")
	}
	return nil
}

func cheapestRate(rates []quotationRate) (decimal.Decimal, error) {
	var (
		cheapest decimal.Decimal
		found    bool
	)
	for _, rate := range rates {
		amount, err := decimal.NewFromString(strings.TrimSpace(rate.Total))
		if err != nil || !amount.IsPositive() {
			continue
		}
		if !found || amount.LessThan(cheapest) {
			cheapest = amount
			found = true
		}
	}
	if !found {
		return decimal.Zero, errNoRates
	}
	return cheapest, nil
}
