package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// EvidencePinner pins production evidence to content-addressed storage and
// returns the CID recorded on the claim.
type EvidencePinner interface {
	PinFile(ctx context.Context, body io.Reader) (string, error)
	UnpinFile(ctx context.Context, cid string) error
}

// localPinner content-addresses evidence without a remote pinning service.
// A production deployment swaps in a real IPFS client behind the same
// interface.
type localPinner struct{}

func NewEvidencePinner() EvidencePinner {
	return &localPinner{}
}

func (p *localPinner) PinFile(ctx context.Context, body io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return "", err
	}
	return "sha256-" + hex.EncodeToString(h.Sum(nil)), nil
}

func (p *localPinner) UnpinFile(ctx context.Context, cid string) error {
	return nil
}
