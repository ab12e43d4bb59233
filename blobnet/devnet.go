package blobnet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"perma-store/common"
	"perma-store/conf"

	"github.com/cockroachdb/pebble"
)

// DevnetNetwork local blob network backed by PebbleDB, used in
// development and tests. Each dispersal stores the payload under a
// freshly minted certificate, matching the real network's behavior of
// never reusing certificates.
type DevnetNetwork struct {
	db     *pebble.DB
	prefix string
}

// NewDevnetNetwork open the local certificate store
func NewDevnetNetwork(cfg conf.BlobnetConfig) (*DevnetNetwork, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create devnet data directory %s: %w", cfg.DataDir, err)
	}

	db, err := pebble.Open(cfg.DataDir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open devnet store: %w", err)
	}

	log.Printf("Devnet blob store: %s", cfg.DataDir)
	return &DevnetNetwork{db: db, prefix: cfg.CertPrefix}, nil
}

// Disperse store payload under a new certificate
func (n *DevnetNetwork) Disperse(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cert := newCertificate(n.prefix, data)
	if err := n.db.Set([]byte(cert), data, pebble.Sync); err != nil {
		return "", fmt.Errorf("failed to store devnet blob: %w", err)
	}
	return cert, nil
}

// Retrieve load payload by certificate
func (n *DevnetNetwork) Retrieve(ctx context.Context, certificate string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, closer, err := n.db.Get([]byte(certificate))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read devnet blob: %w", err)
	}
	defer closer.Close()

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Close release the pebble store
func (n *DevnetNetwork) Close() error {
	return n.db.Close()
}
