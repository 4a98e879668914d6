// Package storage contains the content-addressed store adapters: the
// pinning store (Pinata), the immutable-metadata store (NFT.Storage) and
// the permanent ledger (Arweave). Each adapter speaks its backend's HTTP
// API and normalizes failures into the typed Error of this package.
package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// BackendTag identifies which content store produced a given content id.
// It is persisted next to the content id in the reference table.
type BackendTag string

const (
	BackendNone    BackendTag = "none"
	BackendArweave BackendTag = "arweave"
	BackendPinata  BackendTag = "pinata"
)

// ParseBackendTag validates a tag coming from config or an API request.
func ParseBackendTag(s string) (BackendTag, error) {
	switch BackendTag(s) {
	case BackendArweave, BackendPinata:
		return BackendTag(s), nil
	case BackendNone:
		return BackendNone, nil
	}
	return BackendNone, errors.New("unknown backend tag: " + s)
}

// PutMeta carries optional name/value tags attached to an upload.
type PutMeta struct {
	Name        string
	Description string
	Keyvalues   map[string]string
}

// Store is the uniform put/get contract over a profile content backend.
// Payloads are JSON documents; Put returns the backend's content id
// (IPFS CID or ledger transaction id).
type Store interface {
	Put(ctx context.Context, payload []byte, meta PutMeta) (string, error)
	Get(ctx context.Context, contentID string) ([]byte, error)
	Tag() BackendTag
}

// Unpinner is implemented only by backends that can remove content.
// The permanent ledger deliberately does not satisfy it.
type Unpinner interface {
	Unpin(ctx context.Context, contentID string) error
}

const defaultTimeout = 20 * time.Second

// sendRetry performs the request produced by build, retrying once with
// fibonacci backoff when the transport itself fails. HTTP status codes
// are never retried here; build is invoked per attempt so request bodies
// are fresh.
func sendRetry(ctx context.Context, hc *http.Client, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	var resp *http.Response

	backoff := retry.WithMaxRetries(1, retry.NewFibonacci(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return err
		}
		r, err := hc.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// transportKind classifies a transport failure as timeout or plain network.
func transportKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindNetwork
}
