package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/slemarket/hybridstore/internal/logging"
)

const (
	nftStorageBackend        = "nftstorage"
	nftStorageDefaultAPI     = "https://api.nft.storage"
	nftStorageDefaultGateway = "https://nftstorage.link/ipfs"

	// JSON metadata always lives under this name inside an upload, so
	// gateway fetches can append a fixed filename.
	nftMetadataFilename = "metadata.json"
)

// NFTStorageConfig configures the immutable-metadata adapter. Token is
// required; GatewayURL defaults to the public nftstorage.link gateway.
type NFTStorageConfig struct {
	Token      string
	GatewayURL string
	APIBase    string
}

// NFTStorageClient stores NFT metadata documents. There is no delete:
// uploads are immutable by contract, matching the one-way NFT flow.
type NFTStorageClient struct {
	cfg     NFTStorageConfig
	base    string
	gateway string
	hc      *http.Client
	log     logging.Logger
}

func NewNFTStorageClient(cfg NFTStorageConfig, log logging.Logger) (*NFTStorageClient, error) {
	if cfg.Token == "" {
		return nil, newError(nftStorageBackend, "init", KindCredentials,
			errors.New("set NFT_STORAGE_TOKEN"))
	}

	base := cfg.APIBase
	if base == "" {
		base = nftStorageDefaultAPI
	}
	gateway := cfg.GatewayURL
	if gateway == "" {
		gateway = nftStorageDefaultGateway
	}

	return &NFTStorageClient{
		cfg:     cfg,
		base:    strings.TrimRight(base, "/"),
		gateway: strings.TrimRight(gateway, "/"),
		hc:      &http.Client{},
		log:     log,
	}, nil
}

type nftStorageUploadResp struct {
	OK    bool `json:"ok"`
	Value struct {
		CID string `json:"cid"`
	} `json:"value"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// UploadJSON uploads a JSON metadata document and returns its CID.
func (c *NFTStorageClient) UploadJSON(ctx context.Context, metadata []byte) (string, error) {
	if len(metadata) == 0 || !json.Valid(metadata) {
		return "", newError(nftStorageBackend, "upload", KindInvalidPayload, errors.New("metadata must be non-empty JSON"))
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", bytes.NewReader(metadata))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", newTransportError(nftStorageBackend, "upload", err)
	}
	defer resp.Body.Close()

	return decodeNFTStorageUpload(resp)
}

// UploadBundle uploads metadata.json plus an image as one directory CID.
func (c *NFTStorageClient) UploadBundle(ctx context.Context, metadata []byte, imageName string, image []byte) (string, error) {
	if len(metadata) == 0 || !json.Valid(metadata) {
		return "", newError(nftStorageBackend, "upload", KindInvalidPayload, errors.New("metadata must be non-empty JSON"))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := writeFilePart(mw, nftMetadataFilename, "application/json", metadata); err != nil {
		return "", newError(nftStorageBackend, "upload", KindInvalidPayload, err)
	}
	if len(image) > 0 {
		if err := writeFilePart(mw, imageName, "application/octet-stream", image); err != nil {
			return "", newError(nftStorageBackend, "upload", KindInvalidPayload, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", newError(nftStorageBackend, "upload", KindInvalidPayload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	raw := body.Bytes()
	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/upload", bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", newTransportError(nftStorageBackend, "upload", err)
	}
	defer resp.Body.Close()

	return decodeNFTStorageUpload(resp)
}

func writeFilePart(mw *multipart.Writer, filename, contentType string, data []byte) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", contentType)
	p, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = p.Write(data)
	return err
}

func decodeNFTStorageUpload(resp *http.Response) (string, error) {
	if resp.StatusCode != http.StatusOK {
		return "", newHTTPError(nftStorageBackend, "upload", resp.StatusCode)
	}
	var out nftStorageUploadResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", newError(nftStorageBackend, "upload", KindHTTP, err)
	}
	if !out.OK || out.Value.CID == "" {
		return "", newError(nftStorageBackend, "upload", KindHTTP, errors.New("upload response missing cid"))
	}
	return out.Value.CID, nil
}

// FetchMetadata fetches the metadata.json stored under a CID.
func (c *NFTStorageClient) FetchMetadata(ctx context.Context, cid string) ([]byte, error) {
	return c.Fetch(ctx, cid, nftMetadataFilename)
}

// Fetch gets arbitrary content under a CID; path may be empty.
func (c *NFTStorageClient) Fetch(ctx context.Context, cid, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(cid, path), nil)
	})
	if err != nil {
		return nil, newTransportError(nftStorageBackend, "fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(nftStorageBackend, "fetch", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GatewayURL returns the gateway URL for a CID with an optional path.
func (c *NFTStorageClient) GatewayURL(cid, path string) string {
	if path == "" {
		return c.gateway + "/" + cid
	}
	return c.gateway + "/" + cid + "/" + path
}
