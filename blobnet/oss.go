package blobnet

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"perma-store/common"
	"perma-store/conf"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// OSSNetwork blob network over an Alibaba Cloud OSS gateway
type OSSNetwork struct {
	bucket *oss.Bucket
	prefix string
}

// NewOSSNetwork create OSS gateway client
func NewOSSNetwork(cfg conf.BlobnetConfig) (*OSSNetwork, error) {
	o := cfg.OSS
	if o.Endpoint == "" || o.AccessKey == "" || o.SecretKey == "" || o.Bucket == "" {
		return nil, fmt.Errorf("blobnet oss configuration incomplete")
	}

	client, err := oss.New(o.Endpoint, o.AccessKey, o.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create oss client: %w", err)
	}

	bucket, err := client.Bucket(o.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSNetwork{bucket: bucket, prefix: cfg.CertPrefix}, nil
}

// Disperse upload payload under a new certificate key
func (n *OSSNetwork) Disperse(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cert := newCertificate(n.prefix, data)
	if err := n.bucket.PutObject(cert, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to upload blob to oss: %w", err)
	}
	return cert, nil
}

// Retrieve download payload by certificate
func (n *OSSNetwork) Retrieve(ctx context.Context, certificate string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := n.bucket.GetObject(certificate)
	if err != nil {
		if ossErr, ok := err.(oss.ServiceError); ok && ossErr.StatusCode == 404 {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blob from oss: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read oss blob: %w", err)
	}
	return data, nil
}
