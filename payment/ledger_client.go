package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"perma-store/common"

	"github.com/imroc/req"
	"github.com/tidwall/gjson"
)

// LedgerClient HTTP client for the payment contract gateway
type LedgerClient struct {
	client  *req.Req
	baseURL string
}

// NewLedgerClient create contract gateway client
func NewLedgerClient(baseURL string, timeout time.Duration) (*LedgerClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("ledger url not configured")
	}
	r := req.New()
	r.SetTimeout(timeout)
	return &LedgerClient{
		client:  r,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// GetBalance read the account balance from the contract
func (c *LedgerClient) GetBalance(ctx context.Context, address string) (int64, error) {
	resp, err := c.client.Get(c.baseURL+"/accounts/"+address+"/balance", ctx)
	if err != nil {
		return 0, fmt.Errorf("ledger balance query failed: %w", common.ErrUnavailable)
	}
	code := resp.Response().StatusCode
	switch {
	case code == 404:
		return 0, common.ErrNotFound
	case code >= 500:
		return 0, fmt.Errorf("ledger returned %d: %w", code, common.ErrUnavailable)
	case code != 200:
		return 0, fmt.Errorf("ledger rejected balance query with %d", code)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger response: %w", err)
	}
	balance := gjson.GetBytes(body, "balance")
	if !balance.Exists() {
		return 0, fmt.Errorf("ledger response missing balance field")
	}
	return balance.Int(), nil
}

type deductRequest struct {
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// Deduct charge the account. The contract rejects overdrafts, so an
// amount above the live balance comes back as insufficient.
func (c *LedgerClient) Deduct(ctx context.Context, address string, amount int64, memo string) (string, error) {
	resp, err := c.client.Post(c.baseURL+"/accounts/"+address+"/deduct", ctx,
		req.BodyJSON(&deductRequest{Amount: amount, Memo: memo}))
	if err != nil {
		return "", fmt.Errorf("ledger deduct failed: %w", common.ErrUnavailable)
	}
	code := resp.Response().StatusCode
	switch {
	case code == 402:
		return "", common.ErrInsufficientBalance
	case code == 404:
		return "", common.ErrNotFound
	case code >= 500:
		return "", fmt.Errorf("ledger returned %d: %w", code, common.ErrUnavailable)
	case code != 200:
		return "", fmt.Errorf("ledger rejected deduct with %d", code)
	}

	body, err := resp.ToBytes()
	if err != nil {
		return "", fmt.Errorf("failed to read ledger response: %w", err)
	}
	txRef := gjson.GetBytes(body, "txRef").String()
	if txRef == "" {
		return "", fmt.Errorf("ledger response missing txRef")
	}
	return txRef, nil
}
