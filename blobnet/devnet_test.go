package blobnet

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"perma-store/common"
	"perma-store/conf"
)

func newTestDevnet(t *testing.T) *DevnetNetwork {
	t.Helper()
	net, err := NewDevnetNetwork(conf.BlobnetConfig{
		DataDir:    t.TempDir(),
		CertPrefix: "test:",
	})
	if err != nil {
		t.Fatalf("failed to open devnet store: %v", err)
	}
	t.Cleanup(func() { net.Close() })
	return net
}

func TestDevnetRoundTrip(t *testing.T) {
	net := newTestDevnet(t)
	ctx := context.Background()
	payload := []byte("blob payload")

	cert, err := net.Disperse(ctx, payload)
	if err != nil {
		t.Fatalf("disperse failed: %v", err)
	}
	if cert == "" {
		t.Fatal("expected a certificate")
	}

	got, err := net.Retrieve(ctx, cert)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: got %q", got)
	}
}

func TestDevnetFreshCertificatePerDispersal(t *testing.T) {
	net := newTestDevnet(t)
	ctx := context.Background()
	payload := []byte("identical bytes")

	first, err := net.Disperse(ctx, payload)
	if err != nil {
		t.Fatalf("disperse failed: %v", err)
	}
	second, err := net.Disperse(ctx, payload)
	if err != nil {
		t.Fatalf("disperse failed: %v", err)
	}
	if first == second {
		t.Error("resubmitting identical bytes must mint a new certificate")
	}

	// Both certificates stay retrievable
	for _, cert := range []string{first, second} {
		if _, err := net.Retrieve(ctx, cert); err != nil {
			t.Errorf("retrieve %s failed: %v", cert, err)
		}
	}
}

func TestDevnetUnknownCertificate(t *testing.T) {
	net := newTestDevnet(t)

	_, err := net.Retrieve(context.Background(), "test:no-such-cert")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
