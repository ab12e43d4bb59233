package blobnet

import (
	"context"
	"fmt"

	"perma-store/common"
	"perma-store/conf"

	"github.com/google/uuid"
)

// Network a pay-per-byte blob network. Disperse submits a payload and
// returns the certificate that retrieves it until retention lapses.
// Certificates are opaque to callers; a fresh dispersal of identical
// bytes yields a fresh certificate.
type Network interface {
	Disperse(ctx context.Context, data []byte) (string, error)
	Retrieve(ctx context.Context, certificate string) ([]byte, error)
}

// New create a blob network client by configured type
func New(cfg conf.BlobnetConfig) (Network, error) {
	switch cfg.Type {
	case "http":
		return NewHTTPNetwork(cfg)
	case "s3":
		return NewS3Network(cfg)
	case "oss":
		return NewOSSNetwork(cfg)
	case "devnet":
		return NewDevnetNetwork(cfg)
	default:
		return nil, fmt.Errorf("unsupported blobnet type: %s", cfg.Type)
	}
}

// newCertificate mint a certificate for a dispersal: payload digest
// fragment plus a nonce, so resubmitting the same bytes never reuses
// an old certificate.
func newCertificate(prefix string, data []byte) string {
	return prefix + common.HashBytes(data)[:16] + "-" + uuid.NewString()
}
