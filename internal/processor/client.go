package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/josh-kwaku/booking-payments/internal/domain"
	"github.com/josh-kwaku/booking-payments/internal/logging"
)

const DefaultTimeout = 15 * time.Second

type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client talks to the hosted-payment-page provider. It never retries.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type InitializeRequest struct {
	MerchantReference string
	Amount            decimal.Decimal
	Currency          string
	Email             string
	FirstName         string
	LastName          string
	CallbackURL       string
	ReturnURL         string
	Description       string
}

type initializePayload struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	TxRef       string `json:"tx_ref"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
	Description string `json:"description,omitempty"`
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*Response, error) {
	body, err := json.Marshal(initializePayload{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		TxRef:       req.MerchantReference,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Description: req.Description,
	})
	if err != nil {
		return nil, fmt.Errorf("Initialize: marshal: %w", err)
	}

	return c.do(ctx, "Initialize", http.MethodPost, c.baseURL+"/transaction/initialize", body)
}

// Verify asks the provider for the current state of one transaction.
func (c *Client) Verify(ctx context.Context, lookup domain.PaymentLookup) (*Response, error) {
	if !lookup.Valid() {
		return nil, fmt.Errorf("Verify: %w", domain.ErrAmbiguousIdentifier)
	}
	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(lookup.Value())
	return c.do(ctx, "Verify", http.MethodGet, endpoint, nil)
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) (*Response, error) {
	log := logging.FromContext(ctx)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	log.Info("processor request sent", "op", op, "method", method, "url", endpoint)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	log.Info("processor response received",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Message: "read body: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, truncate(respBody, 512)),
		}
	}

	parsed, err := ParseDocument(respBody)
	if err != nil {
		return nil, &TransportError{Op: op, StatusCode: resp.StatusCode, Message: "decode response: " + err.Error(), Err: err}
	}
	return parsed, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
