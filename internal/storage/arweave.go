package storage

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"github.com/slemarket/hybridstore/internal/logging"
)

const (
	arweaveBackend        = "arweave"
	arweaveDefaultGateway = "https://arweave.net"

	winstonPerAR = 1_000_000_000_000
)

// Signer is the wallet credential the permanent ledger requires for every
// write. It signs transaction data and exposes the wallet identity.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	Owner() string
	Address() string
}

// Wallet is an RSA-PSS signer. Real deployments load a keyfile; tests and
// server-side throwaway writes can generate one.
type Wallet struct {
	key *rsa.PrivateKey
}

// NewWallet generates a fresh wallet keypair.
func NewWallet() (*Wallet, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &Wallet{key: key}, nil
}

// NewWalletFromKey wraps an existing private key.
func NewWalletFromKey(key *rsa.PrivateKey) *Wallet {
	return &Wallet{key: key}
}

func (w *Wallet) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return rsa.SignPSS(rand.Reader, w.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
}

// Owner is the base64url public modulus, as the ledger encodes wallets.
func (w *Wallet) Owner() string {
	return base64.RawURLEncoding.EncodeToString(w.key.PublicKey.N.Bytes())
}

// Address is base64url(sha256(owner bytes)).
func (w *Wallet) Address() string {
	sum := sha256.Sum256(w.key.PublicKey.N.Bytes())
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ArweaveConfig configures the permanent-ledger adapter. AppName and
// AppVersion become transaction tags so profile writes can be located
// again by tag search.
type ArweaveConfig struct {
	GatewayURL string
	AppName    string
	AppVersion string
}

// ArweaveClient writes and reads permanent-ledger transactions. There is
// no delete operation: the ledger is immutable by design, so the type
// deliberately has no Unpin method.
type ArweaveClient struct {
	cfg  ArweaveConfig
	base string
	hc   *http.Client
	log  logging.Logger
}

func NewArweaveClient(cfg ArweaveConfig, log logging.Logger) (*ArweaveClient, error) {
	if cfg.AppName == "" {
		return nil, newError(arweaveBackend, "init", KindCredentials,
			errors.New("app name tag is required"))
	}
	base := cfg.GatewayURL
	if base == "" {
		base = arweaveDefaultGateway
	}
	return &ArweaveClient{
		cfg:  cfg,
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{},
		log:  log,
	}, nil
}

type arweaveTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type arweaveTx struct {
	ID        string       `json:"id"`
	Owner     string       `json:"owner"`
	Data      string       `json:"data"`
	Tags      []arweaveTag `json:"tags"`
	Signature string       `json:"signature"`
}

func b64tag(name, value string) arweaveTag {
	return arweaveTag{
		Name:  base64.RawURLEncoding.EncodeToString([]byte(name)),
		Value: base64.RawURLEncoding.EncodeToString([]byte(value)),
	}
}

// PutSigned signs and posts a data transaction, returning its id. The
// User-Address tag comes from meta.Keyvalues["walletAddress"] when set,
// which is what the tag search below keys on.
func (c *ArweaveClient) PutSigned(ctx context.Context, payload []byte, meta PutMeta, signer Signer) (string, error) {
	if signer == nil {
		return "", newError(arweaveBackend, "put", KindCredentials, errors.New("signing wallet is required"))
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return "", newError(arweaveBackend, "put", KindInvalidPayload, errors.New("payload must be non-empty JSON"))
	}

	sig, err := signer.Sign(payload)
	if err != nil {
		return "", newError(arweaveBackend, "put", KindCredentials, err)
	}
	idSum := sha256.Sum256(sig)

	tags := []arweaveTag{
		b64tag("Content-Type", "application/json"),
		b64tag("App-Name", c.cfg.AppName),
		b64tag("App-Version", c.cfg.AppVersion),
	}
	if t, ok := meta.Keyvalues["type"]; ok {
		tags = append(tags, b64tag("Type", t))
	}
	if addr, ok := meta.Keyvalues["walletAddress"]; ok {
		tags = append(tags, b64tag("User-Address", addr))
	}

	tx := arweaveTx{
		ID:        base64.RawURLEncoding.EncodeToString(idSum[:]),
		Owner:     signer.Owner(),
		Data:      base64.RawURLEncoding.EncodeToString(payload),
		Tags:      tags,
		Signature: base64.RawURLEncoding.EncodeToString(sig),
	}

	body, err := json.Marshal(tx)
	if err != nil {
		return "", newError(arweaveBackend, "put", KindInvalidPayload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/tx", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", newTransportError(arweaveBackend, "put", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newHTTPError(arweaveBackend, "put", resp.StatusCode)
	}
	return tx.ID, nil
}

// Get reads transaction data by id. The data endpoint serves base64url.
func (c *ArweaveClient) Get(ctx context.Context, contentID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/tx/"+contentID+"/data", nil)
	})
	if err != nil {
		return nil, newTransportError(arweaveBackend, "get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newHTTPError(arweaveBackend, "get", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(arweaveBackend, "get", KindHTTP, err)
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, newError(arweaveBackend, "get", KindHTTP, fmt.Errorf("decoding tx data: %w", err))
	}
	return data, nil
}

type arqlExpr struct {
	Op    string `json:"op"`
	Expr1 any    `json:"expr1"`
	Expr2 any    `json:"expr2"`
}

// SearchByAddress locates the most recent transaction tagged with this
// app name and wallet address. Best effort: the gateway may lag or
// return nothing, which surfaces as KindNotFound.
func (c *ArweaveClient) SearchByAddress(ctx context.Context, walletAddress string) (string, error) {
	query := arqlExpr{
		Op:    "and",
		Expr1: arqlExpr{Op: "equals", Expr1: "App-Name", Expr2: c.cfg.AppName},
		Expr2: arqlExpr{Op: "equals", Expr1: "User-Address", Expr2: walletAddress},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return "", newError(arweaveBackend, "search", KindInvalidPayload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/arql", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", newTransportError(arweaveBackend, "search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newHTTPError(arweaveBackend, "search", resp.StatusCode)
	}

	var ids []string
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return "", newError(arweaveBackend, "search", KindHTTP, err)
	}
	if len(ids) == 0 {
		return "", newError(arweaveBackend, "search", KindNotFound, errors.New("no transactions for address"))
	}
	// results are oldest-first
	return ids[len(ids)-1], nil
}

// Balance returns the wallet balance in AR.
func (c *ArweaveClient) Balance(ctx context.Context, walletAddress string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	resp, err := sendRetry(ctx, c.hc, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/wallet/"+walletAddress+"/balance", nil)
	})
	if err != nil {
		return "", newTransportError(arweaveBackend, "balance", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newHTTPError(arweaveBackend, "balance", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(arweaveBackend, "balance", KindHTTP, err)
	}
	return winstonToAR(strings.TrimSpace(string(raw)))
}

func winstonToAR(winston string) (string, error) {
	w, ok := new(big.Int).SetString(winston, 10)
	if !ok {
		return "", fmt.Errorf("invalid winston amount: %q", winston)
	}
	r := new(big.Rat).SetFrac(w, big.NewInt(winstonPerAR))
	return strings.TrimRight(strings.TrimRight(r.FloatString(12), "0"), "."), nil
}

// Signed binds a wallet credential to the client, yielding the uniform
// Store contract used by the profile service.
func (c *ArweaveClient) Signed(s Signer) Store {
	return &signedArweave{c: c, s: s}
}

type signedArweave struct {
	c *ArweaveClient
	s Signer
}

func (a *signedArweave) Put(ctx context.Context, payload []byte, meta PutMeta) (string, error) {
	return a.c.PutSigned(ctx, payload, meta, a.s)
}

func (a *signedArweave) Get(ctx context.Context, contentID string) ([]byte, error) {
	return a.c.Get(ctx, contentID)
}

func (a *signedArweave) Tag() BackendTag { return BackendArweave }
