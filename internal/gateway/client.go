package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Config holds payment-processor client configuration.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client is the HTTP implementation of Gateway against a Stripe-style
// REST API: form-encoded requests, bearer secret key, Idempotency-Key
// header on mutating calls.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
	logger    *slog.Logger
}

// NewClient creates a new payment-processor client. Timeout defaults to
// 15s; gateway calls are blocking remote calls and must never hang
// unbounded.
func NewClient(config *Config, logger *slog.Logger) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		secretKey: config.SecretKey,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// chargePayload is the subset of the processor's charge object we consume.
type chargePayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// accountPayload is the subset of the processor's account object we consume.
type accountPayload struct {
	ID               string `json:"id"`
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
	OnboardingURL    string `json:"onboarding_url"`
}

type errorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) AuthorizeCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	form := chargeForm(req)
	form.Set("capture_method", "manual")

	var out chargePayload
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, req.IdempotencyKey, &out); err != nil {
		return nil, err
	}

	c.logger.Info("Charge authorized",
		slog.String("charge_id", out.ID),
		slog.String("status", out.Status),
		slog.Int64("amount_cents", req.AmountCents),
	)

	return &Charge{ChargeID: out.ID, Status: out.Status}, nil
}

func (c *Client) ConfirmCharge(ctx context.Context, chargeID string) (*Charge, error) {
	var out chargePayload
	path := fmt.Sprintf("/v1/payment_intents/%s/confirm", url.PathEscape(chargeID))
	if err := c.do(ctx, http.MethodPost, path, url.Values{}, "", &out); err != nil {
		return nil, err
	}
	return &Charge{ChargeID: out.ID, Status: out.Status}, nil
}

func (c *Client) CaptureCharge(ctx context.Context, chargeID string) (*Charge, error) {
	var out chargePayload
	path := fmt.Sprintf("/v1/payment_intents/%s/capture", url.PathEscape(chargeID))
	err := c.do(ctx, http.MethodPost, path, url.Values{}, "", &out)
	if err != nil {
		// The processor rejects capture of an already-captured charge.
		// Treat that as success and report the existing status so the
		// operation stays idempotent for the engine.
		var gwErr *Error
		if errors.As(err, &gwErr) && gwErr.Code == "payment_intent_unexpected_state" {
			existing, getErr := c.getCharge(ctx, chargeID)
			if getErr == nil && existing.Status == "succeeded" {
				c.logger.Info("Capture on already-captured charge",
					slog.String("charge_id", chargeID),
				)
				return existing, nil
			}
		}
		return nil, err
	}
	return &Charge{ChargeID: out.ID, Status: out.Status}, nil
}

func (c *Client) VoidCharge(ctx context.Context, chargeID string) (*Charge, error) {
	var out chargePayload
	path := fmt.Sprintf("/v1/payment_intents/%s/cancel", url.PathEscape(chargeID))
	if err := c.do(ctx, http.MethodPost, path, url.Values{}, "", &out); err != nil {
		return nil, err
	}

	c.logger.Info("Charge voided",
		slog.String("charge_id", out.ID),
		slog.String("status", out.Status),
	)

	return &Charge{ChargeID: out.ID, Status: out.Status}, nil
}

func (c *Client) ChargeImmediate(ctx context.Context, req ChargeRequest) (*Charge, error) {
	form := chargeForm(req)
	form.Set("capture_method", "automatic")
	form.Set("confirm", "true")

	var out chargePayload
	if err := c.do(ctx, http.MethodPost, "/v1/payment_intents", form, req.IdempotencyKey, &out); err != nil {
		return nil, err
	}

	c.logger.Info("Immediate charge created",
		slog.String("charge_id", out.ID),
		slog.String("status", out.Status),
		slog.Int64("amount_cents", req.AmountCents),
	)

	return &Charge{ChargeID: out.ID, Status: out.Status}, nil
}

func (c *Client) GetPayeeAccountStatus(ctx context.Context, accountID string) (*AccountStatus, error) {
	var out accountPayload
	path := fmt.Sprintf("/v1/accounts/%s", url.PathEscape(accountID))
	err := c.do(ctx, http.MethodGet, path, nil, "", &out)
	if err != nil {
		var gwErr *Error
		if errors.As(err, &gwErr) && gwErr.Code == "resource_missing" {
			return &AccountStatus{Exists: false}, nil
		}
		return nil, err
	}

	return &AccountStatus{
		Exists:             true,
		ReadyToReceive:     out.PayoutsEnabled,
		OnboardingComplete: out.DetailsSubmitted,
	}, nil
}

func (c *Client) CreatePayeeAccount(ctx context.Context, ownerIdentity string) (*Account, error) {
	form := url.Values{}
	form.Set("type", "express")
	form.Set("metadata[owner]", ownerIdentity)

	var out accountPayload
	if err := c.do(ctx, http.MethodPost, "/v1/accounts", form, "", &out); err != nil {
		return nil, err
	}

	c.logger.Info("Payee account created",
		slog.String("account_id", out.ID),
		slog.String("owner", ownerIdentity),
	)

	return &Account{AccountID: out.ID, OnboardingURL: out.OnboardingURL}, nil
}

// getCharge fetches a charge's current state, used to resolve idempotent
// capture on an already-captured charge.
func (c *Client) getCharge(ctx context.Context, chargeID string) (*Charge, error) {
	var out chargePayload
	path := fmt.Sprintf("/v1/payment_intents/%s", url.PathEscape(chargeID))
	if err := c.do(ctx, http.MethodGet, path, nil, "", &out); err != nil {
		return nil, err
	}
	return &Charge{ChargeID: out.ID, Status: out.Status}, nil
}

// do performs one processor call and decodes the response into out.
// Failures are mapped into *Error: network errors, timeouts, 429 and 5xx
// are transient; other 4xx responses are permanent.
func (c *Client) do(ctx context.Context, method, path string, form url.Values, idempotencyKey string, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Gateway request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err),
		)
		return c.classifyNetworkError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return NewTransientError("", fmt.Sprintf("failed to read gateway response: %s", err))
	}

	if resp.StatusCode >= 400 {
		return c.classifyErrorResponse(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return NewPermanentError("", fmt.Sprintf("failed to decode gateway response: %s", err))
	}

	return nil
}

func (c *Client) classifyNetworkError(err error) *Error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewTransientError("timeout", err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransientError("timeout", err.Error())
	}
	return NewTransientError("network", err.Error())
}

func (c *Client) classifyErrorResponse(status int, raw []byte) *Error {
	var payload errorPayload
	_ = json.Unmarshal(raw, &payload)

	code := payload.Error.Code
	message := payload.Error.Message
	if message == "" {
		message = "gateway returned HTTP " + strconv.Itoa(status)
	}

	if status == http.StatusTooManyRequests || status >= 500 {
		return NewTransientError(code, message)
	}

	return NewPermanentError(code, message)
}

func chargeForm(req ChargeRequest) url.Values {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(req.AmountCents, 10))
	form.Set("currency", req.Currency)
	if req.PayerAccount != "" {
		form.Set("customer", req.PayerAccount)
	}
	if req.PayeeAccount != "" {
		form.Set("transfer_data[destination]", req.PayeeAccount)
	}
	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}
	return form
}
