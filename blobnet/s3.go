package blobnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"perma-store/common"
	"perma-store/conf"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Network blob network over an S3-compatible gateway (AWS S3 or
// MinIO). Payloads live under certificate-derived object keys.
type S3Network struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Network create S3 gateway client
func NewS3Network(cfg conf.BlobnetConfig) (*S3Network, error) {
	s3cfg := cfg.S3
	if s3cfg.AccessKey == "" || s3cfg.SecretKey == "" || s3cfg.Bucket == "" {
		return nil, fmt.Errorf("blobnet s3 configuration incomplete")
	}

	ctx := context.Background()
	creds := credentials.NewStaticCredentialsProvider(s3cfg.AccessKey, s3cfg.SecretKey, "")

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s3cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var client *s3.Client
	if s3cfg.Endpoint != "" {
		// Custom endpoint (MinIO or S3-compatible gateways)
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3Network{client: client, bucket: s3cfg.Bucket, prefix: cfg.CertPrefix}, nil
}

// Disperse upload payload under a new certificate key
func (n *S3Network) Disperse(ctx context.Context, data []byte) (string, error) {
	cert := newCertificate(n.prefix, data)
	_, err := n.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(n.bucket),
		Key:    aws.String(cert),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload blob to s3: %w", err)
	}
	return cert, nil
}

// Retrieve download payload by certificate
func (n *S3Network) Retrieve(ctx context.Context, certificate string) ([]byte, error) {
	result, err := n.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(n.bucket),
		Key:    aws.String(certificate),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blob from s3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3 blob: %w", err)
	}
	return data, nil
}
