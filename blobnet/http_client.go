package blobnet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"perma-store/common"
	"perma-store/conf"

	"github.com/imroc/req"
)

// HTTPNetwork blob network behind an HTTP gateway.
// POST /blobs with the raw payload returns the certificate;
// GET /blobs/{certificate} returns the payload.
type HTTPNetwork struct {
	client   *req.Req
	endpoint string
}

// NewHTTPNetwork create HTTP gateway client
func NewHTTPNetwork(cfg conf.BlobnetConfig) (*HTTPNetwork, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("blobnet http endpoint not configured")
	}
	r := req.New()
	// Dispersal can take minutes on the real network
	r.SetTimeout(time.Duration(cfg.TimeoutMinutes) * time.Minute)
	return &HTTPNetwork{
		client:   r,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}, nil
}

type disperseResult struct {
	Certificate string `json:"certificate"`
}

// Disperse submit payload, blocking until the gateway confirms
func (n *HTTPNetwork) Disperse(ctx context.Context, data []byte) (string, error) {
	resp, err := n.client.Post(n.endpoint+"/blobs", ctx, data,
		req.Header{"Content-Type": "application/octet-stream"})
	if err != nil {
		return "", fmt.Errorf("blob dispersal failed: %w", common.ErrUnavailable)
	}
	code := resp.Response().StatusCode
	if code >= 500 {
		return "", fmt.Errorf("blob gateway returned %d: %w", code, common.ErrUnavailable)
	}
	if code != 200 {
		return "", fmt.Errorf("blob gateway rejected dispersal with %d", code)
	}

	var result disperseResult
	if err := resp.ToJSON(&result); err != nil {
		return "", fmt.Errorf("failed to parse dispersal response: %w", err)
	}
	if result.Certificate == "" {
		return "", fmt.Errorf("blob gateway returned empty certificate")
	}
	return result.Certificate, nil
}

// Retrieve fetch payload by certificate
func (n *HTTPNetwork) Retrieve(ctx context.Context, certificate string) ([]byte, error) {
	resp, err := n.client.Get(n.endpoint+"/blobs/"+certificate, ctx)
	if err != nil {
		return nil, fmt.Errorf("blob retrieval failed: %w", common.ErrUnavailable)
	}
	code := resp.Response().StatusCode
	switch {
	case code == 404:
		return nil, common.ErrNotFound
	case code >= 500:
		return nil, fmt.Errorf("blob gateway returned %d: %w", code, common.ErrUnavailable)
	case code != 200:
		return nil, fmt.Errorf("blob gateway rejected retrieval with %d", code)
	}

	data, err := resp.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read blob payload: %w", err)
	}
	return data, nil
}
