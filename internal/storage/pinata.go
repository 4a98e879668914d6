package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/slemarket/hybridstore/internal/logging"
)

const (
	pinataBackend       = "pinata"
	pinataDefaultAPI    = "https://api.pinata.cloud"
	pinataPublicGateway = "https://gateway.pinata.cloud/ipfs"

	// pinJSONToIPFS rejects large bodies; cap ours before the round trip.
	pinataMaxPayload = 10 << 20
)

// PinataConfig configures the pinning-store adapter. Either JWT or the
// APIKey/APISecret pair must be set; GatewayURL may be a bare domain
// ("example.mypinata.cloud") or a full URL.
type PinataConfig struct {
	JWT        string
	APIKey     string
	APISecret  string
	GatewayURL string
	GatewayKey string
	APIBase    string
}

// PinataClient uploads, fetches and unpins JSON content on the pinning
// store. Reads go through the configured private gateway first and fall
// back once to the public gateway on auth or network failure.
type PinataClient struct {
	cfg           PinataConfig
	base          string
	gateway       string
	publicGateway string
	hc            *http.Client
	log           logging.Logger
}

func NewPinataClient(cfg PinataConfig, log logging.Logger) (*PinataClient, error) {
	if cfg.JWT == "" && (cfg.APIKey == "" || cfg.APISecret == "") {
		return nil, newError(pinataBackend, "init", KindCredentials,
			errors.New("set PINATA_JWT or PINATA_API_KEY + PINATA_API_SECRET"))
	}

	base := cfg.APIBase
	if base == "" {
		base = pinataDefaultAPI
	}

	return &PinataClient{
		cfg:           cfg,
		base:          strings.TrimRight(base, "/"),
		gateway:       normalizeGateway(cfg.GatewayURL),
		publicGateway: pinataPublicGateway,
		hc:            &http.Client{},
		log:           log,
	}, nil
}

// normalizeGateway turns a configured gateway domain or URL into a
// ".../ipfs" prefix; empty config means the public gateway.
func normalizeGateway(gw string) string {
	if gw == "" {
		return pinataPublicGateway
	}
	if !strings.HasPrefix(gw, "http") {
		return "https://" + gw + "/ipfs"
	}
	gw = strings.TrimRight(gw, "/")
	if strings.HasSuffix(gw, "/ipfs") {
		return gw
	}
	return gw + "/ipfs"
}

func (c *PinataClient) Tag() BackendTag { return BackendPinata }

func (c *PinataClient) authHeaders(h http.Header) {
	if c.cfg.JWT != "" {
		h.Set("Authorization", "Bearer "+c.cfg.JWT)
		return
	}
	h.Set("pinata_api_key", c.cfg.APIKey)
	h.Set("pinata_secret_api_key", c.cfg.APISecret)
}

type pinataUploadBody struct {
	PinataContent  json.RawMessage `json:"pinataContent"`
	PinataMetadata pinataMetadata  `json:"pinataMetadata"`
	PinataOptions  pinataOptions   `json:"pinataOptions"`
}

type pinataMetadata struct {
	Name      string            `json:"name"`
	Keyvalues map[string]string `json:"keyvalues"`
}

type pinataOptions struct {
	CidVersion        int  `json:"cidVersion"`
	WrapWithDirectory bool `json:"wrapWithDirectory"`
}

// Put pins a JSON payload and returns its CID.
func (c *PinataClient) Put(ctx context.Context, payload []byte, meta PutMeta) (string, error) {
	if len(payload) == 0 || !json.Valid(payload) {
		return "", newError(pinataBackend, "put", KindInvalidPayload, errors.New("payload must be non-empty JSON"))
	}
	if len(payload) > pinataMaxPayload {
		return "", newError(pinataBackend, "put", KindInvalidPayload,
			fmt.Errorf("payload of %d bytes exceeds pin limit", len(payload)))
	}

	name := meta.Name
	if name == "" {
		name = fmt.Sprintf("data-%d.json", time.Now().UnixMilli())
	}
	kv := meta.Keyvalues
	if kv == nil {
		kv = map[string]string{}
	}

	body, err := json.Marshal(pinataUploadBody{
		PinataContent:  payload,
		PinataMetadata: pinataMetadata{Name: name, Keyvalues: kv},
		PinataOptions:  pinataOptions{CidVersion: 1, WrapWithDirectory: false},
	})
	if err != nil {
		return "", newError(pinataBackend, "put", KindInvalidPayload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/pinning/pinJSONToIPFS", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.authHeaders(req.Header)
		return req, nil
	})
	if err != nil {
		return "", newTransportError(pinataBackend, "put", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newHTTPError(pinataBackend, "put", resp.StatusCode)
	}

	var out struct {
		IpfsHash string `json:"IpfsHash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", newError(pinataBackend, "put", KindHTTP, err)
	}
	if out.IpfsHash == "" {
		return "", newError(pinataBackend, "put", KindHTTP, errors.New("upload response missing IpfsHash"))
	}
	return out.IpfsHash, nil
}

// Get fetches content by CID through the private gateway. On a 401 or a
// transport failure it retries once through the public unauthenticated
// gateway before surfacing the error; this fallback is load-bearing for
// profiles pinned before a gateway key rotation.
func (c *PinataClient) Get(ctx context.Context, contentID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	data, status, err := c.gatewayFetch(ctx, c.gateway, contentID, true)
	if err == nil && status == http.StatusOK {
		return data, nil
	}

	if status == http.StatusUnauthorized || err != nil {
		if c.gateway != c.publicGateway {
			c.log.Warn(ctx, "private gateway fetch failed, trying public gateway",
				"cid", contentID, "status", status)
			data, status, perr := c.gatewayFetch(ctx, c.publicGateway, contentID, false)
			if perr == nil && status == http.StatusOK {
				return data, nil
			}
		}
	}

	if err != nil {
		return nil, newTransportError(pinataBackend, "get", err)
	}
	return nil, newHTTPError(pinataBackend, "get", status)
}

func (c *PinataClient) gatewayFetch(ctx context.Context, gateway, cid string, auth bool) ([]byte, int, error) {
	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, gateway+"/"+cid, nil)
		if err != nil {
			return nil, err
		}
		if auth {
			if c.cfg.JWT != "" {
				req.Header.Set("Authorization", "Bearer "+c.cfg.JWT)
			} else if c.cfg.GatewayKey != "" {
				req.Header.Set("x-pinata-gateway-token", c.cfg.GatewayKey)
			}
		}
		return req, nil
	})
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// Unpin removes the pin for a CID, making the content eligible for
// garbage collection. A 404 means not found or already deleted.
func (c *PinataClient) Unpin(ctx context.Context, contentID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/pinning/unpin/"+contentID, nil)
		if err != nil {
			return nil, err
		}
		c.authHeaders(req.Header)
		return req, nil
	})
	if err != nil {
		return newTransportError(pinataBackend, "unpin", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newHTTPError(pinataBackend, "unpin", resp.StatusCode)
	}
	return nil
}

// PinListOptions filters the pin listing. Zero values are omitted.
type PinListOptions struct {
	Status     string
	PageLimit  int
	PageOffset int
}

// PinListRow is one pinned object as reported by the pin listing API.
type PinListRow struct {
	IpfsPinHash string `json:"ipfs_pin_hash"`
	Size        int64  `json:"size"`
	DatePinned  string `json:"date_pinned"`
	Metadata    struct {
		Name      string            `json:"name"`
		Keyvalues map[string]string `json:"keyvalues"`
	} `json:"metadata"`
}

// PinList holds one page of pin listing results.
type PinList struct {
	Count int          `json:"count"`
	Rows  []PinListRow `json:"rows"`
}

// List pages through the account's pins by status/offset/limit.
func (c *PinataClient) List(ctx context.Context, opts PinListOptions) (*PinList, error) {
	q := url.Values{}
	if opts.Status != "" {
		q.Set("status", opts.Status)
	}
	if opts.PageLimit > 0 {
		q.Set("pageLimit", strconv.Itoa(opts.PageLimit))
	}
	if opts.PageOffset > 0 {
		q.Set("pageOffset", strconv.Itoa(opts.PageOffset))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/data/pinList?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		c.authHeaders(req.Header)
		return req, nil
	})
	if err != nil {
		return nil, newTransportError(pinataBackend, "list", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(pinataBackend, "list", resp.StatusCode)
	}

	list := &PinList{}
	if err := json.NewDecoder(resp.Body).Decode(list); err != nil {
		return nil, newError(pinataBackend, "list", KindHTTP, err)
	}
	return list, nil
}

// GatewayURL returns the fetch URL for a CID on the configured gateway.
func (c *PinataClient) GatewayURL(cid string) string {
	return c.gateway + "/" + cid
}
