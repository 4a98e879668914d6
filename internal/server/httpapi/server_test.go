package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slemarket/hybridstore/internal/common"
	"github.com/slemarket/hybridstore/internal/dbx"
	"github.com/slemarket/hybridstore/internal/logging"
	"github.com/slemarket/hybridstore/internal/server/models"
	nftsrepo "github.com/slemarket/hybridstore/internal/server/repositories/nfts"
	profilesrepo "github.com/slemarket/hybridstore/internal/server/repositories/profiles"
	"github.com/slemarket/hybridstore/internal/server/services"
	"github.com/slemarket/hybridstore/internal/storage"
)

// --- fakes ---

type fakeProfilesRepo struct {
	row       *models.ProfileReference
	upsertErr error
	registerOut     *models.ProfileReference
	registerCreated bool
	deleteErr       error
}

func (f *fakeProfilesRepo) Upsert(ctx context.Context, wallet, cid string, backend storage.BackendTag) (*models.ProfileReference, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	return &models.ProfileReference{WalletAddress: wallet, ContentID: &cid, Backend: backend}, nil
}

func (f *fakeProfilesRepo) Register(ctx context.Context, wallet string) (*models.ProfileReference, bool, error) {
	return f.registerOut, f.registerCreated, nil
}

func (f *fakeProfilesRepo) Get(ctx context.Context, wallet string) (*models.ProfileReference, error) {
	if f.row == nil {
		return nil, common.ErrorNotFound
	}
	return f.row, nil
}

func (f *fakeProfilesRepo) Delete(ctx context.Context, wallet string) error { return f.deleteErr }

type fakeNFTsRepo struct {
	rec  *models.NFTRecord
	list []*models.NFTRecord
}

func (f *fakeNFTsRepo) Insert(ctx context.Context, rec *models.NFTRecord) (*models.NFTRecord, error) {
	return rec, nil
}

func (f *fakeNFTsRepo) GetByMint(ctx context.Context, mint string) (*models.NFTRecord, error) {
	if f.rec == nil {
		return nil, common.ErrorNotFound
	}
	return f.rec, nil
}

func (f *fakeNFTsRepo) ListByOwner(ctx context.Context, owner string) ([]*models.NFTRecord, error) {
	return f.list, nil
}

func (f *fakeNFTsRepo) UpdateOwner(ctx context.Context, mint, owner string) (*models.NFTRecord, error) {
	if f.rec == nil {
		return nil, common.ErrorNotFound
	}
	f.rec.OwnerWallet = owner
	return f.rec, nil
}

func (f *fakeNFTsRepo) DeleteByMint(ctx context.Context, mint string) error { return nil }

type fakeRepoManager struct {
	p *fakeProfilesRepo
	n *fakeNFTsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Profiles(db dbx.DBTX) profilesrepo.Repository { return m.p }
func (m *fakeRepoManager) NFTs(db dbx.DBTX) nftsrepo.Repository         { return m.n }

type fakeStore struct {
	tag    storage.BackendTag
	putCID string
	putErr error
	getOut map[string][]byte
}

func (f *fakeStore) Put(ctx context.Context, payload []byte, meta storage.PutMeta) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	return f.putCID, nil
}

func (f *fakeStore) Get(ctx context.Context, contentID string) ([]byte, error) {
	out, ok := f.getOut[contentID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return out, nil
}

func (f *fakeStore) Tag() storage.BackendTag { return f.tag }

type fakeMetadataStore struct {
	uploadCID string
	fetchOut  map[string][]byte
}

func (f *fakeMetadataStore) UploadJSON(ctx context.Context, metadata []byte) (string, error) {
	return f.uploadCID, nil
}

func (f *fakeMetadataStore) Fetch(ctx context.Context, cid, path string) ([]byte, error) {
	out, ok := f.fetchOut[cid]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return out, nil
}

func (f *fakeMetadataStore) GatewayURL(cid, path string) string {
	return "https://nftstorage.link/ipfs/" + cid
}

func strptr(s string) *string { return &s }

func newTestServer(p *fakeProfilesRepo, n *fakeNFTsRepo, target *fakeStore, meta *fakeMetadataStore) *httptest.Server {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	rm := &fakeRepoManager{p: p, n: n}
	readers := map[storage.BackendTag]storage.Store{target.tag: target}
	profiles := services.NewProfileService(nil, rm, target, readers, nil, log)
	nfts := services.NewNFTService(nil, rm, meta, log)
	migrations := services.NewMigrationService(nil, rm, profiles, readers, log)
	return httptest.NewServer(NewServer(profiles, nfts, migrations, log).Router())
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

// --- tests ---

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeProfilesRepo{}, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("unexpected health response: %d %+v", resp.StatusCode, env)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("missing request id header")
	}
}

func TestRegister_NewWallet(t *testing.T) {
	p := &fakeProfilesRepo{
		registerOut:     &models.ProfileReference{WalletAddress: "wallet-1", Backend: storage.BackendNone},
		registerCreated: true,
	}
	srv := newTestServer(p, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/profiles/register",
		map[string]string{"walletAddress": "wallet-1"})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestRegister_MissingWallet(t *testing.T) {
	srv := newTestServer(&fakeProfilesRepo{}, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/profiles/register", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest || env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestSaveProfile(t *testing.T) {
	p := &fakeProfilesRepo{}
	srv := newTestServer(p, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata, putCID: "cid-1"}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPut, srv.URL+"/api/v1/profiles/wallet-1",
		models.ProfileData{FullName: "Alice", Username: "alice", Email: "a@example.com"})
	if resp.StatusCode != http.StatusOK || !env.Success || env.Warning != "" {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestSaveProfile_DegradedSuccessCarriesWarning(t *testing.T) {
	p := &fakeProfilesRepo{upsertErr: errors.New("db down")}
	srv := newTestServer(p, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata, putCID: "cid-1"}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPut, srv.URL+"/api/v1/profiles/wallet-1",
		models.ProfileData{FullName: "Alice"})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("expected degraded success, got %d %+v", resp.StatusCode, env)
	}
	if env.Warning == "" {
		t.Fatal("expected warning on degraded save")
	}
}

func TestSaveProfile_UploadFailure(t *testing.T) {
	srv := newTestServer(&fakeProfilesRepo{}, &fakeNFTsRepo{},
		&fakeStore{tag: storage.BackendPinata, putErr: errors.New("backend down")}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPut, srv.URL+"/api/v1/profiles/wallet-1", models.ProfileData{})
	if resp.StatusCode != http.StatusInternalServerError || env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestGetProfile_Empty(t *testing.T) {
	p := &fakeProfilesRepo{row: &models.ProfileReference{WalletAddress: "wallet-1", Backend: storage.BackendNone}}
	srv := newTestServer(p, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/profiles/wallet-1", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
	data, _ := json.Marshal(env.Data)
	var pr profileResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if pr.Profile.FullName != "Not provided" {
		t.Fatalf("expected empty profile, got %+v", pr.Profile)
	}
}

func TestGetProfile_NotFound(t *testing.T) {
	srv := newTestServer(&fakeProfilesRepo{}, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/profiles/ghost", nil)
	if resp.StatusCode != http.StatusNotFound || env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestMigrate_UnknownSource(t *testing.T) {
	srv := newTestServer(&fakeProfilesRepo{}, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/profiles/wallet-1/migrate",
		map[string]string{"source": "dropbox"})
	if resp.StatusCode != http.StatusBadRequest || env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestUploadNFT(t *testing.T) {
	srv := newTestServer(&fakeProfilesRepo{}, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata},
		&fakeMetadataStore{uploadCID: "bafy-1"})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/nfts", map[string]any{
		"mintAddress": "mint-1",
		"ownerWallet": "wallet-1",
		"metadata":    map[string]string{"name": "Token #1"},
	})
	if resp.StatusCode != http.StatusCreated || !env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestGetNFT(t *testing.T) {
	n := &fakeNFTsRepo{rec: &models.NFTRecord{MintAddress: "mint-1", ContentID: "bafy-1", OwnerWallet: "wallet-1"}}
	meta := &fakeMetadataStore{fetchOut: map[string][]byte{"bafy-1": []byte(`{"name":"Token #1"}`)}}
	srv := newTestServer(&fakeProfilesRepo{}, n, &fakeStore{tag: storage.BackendPinata}, meta)
	defer srv.Close()

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/nfts/mint-1", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestTransferNFT(t *testing.T) {
	n := &fakeNFTsRepo{rec: &models.NFTRecord{MintAddress: "mint-1", ContentID: "bafy-1", OwnerWallet: "wallet-1"}}
	srv := newTestServer(&fakeProfilesRepo{}, n, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/v1/nfts/mint-1/transfer",
		map[string]string{"newOwner": "wallet-2"})
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
	if n.rec.OwnerWallet != "wallet-2" {
		t.Fatalf("ownership not transferred: %+v", n.rec)
	}
}

func TestListNFTs(t *testing.T) {
	n := &fakeNFTsRepo{list: []*models.NFTRecord{
		{MintAddress: "mint-1", ContentID: "bafy-1", OwnerWallet: "wallet-1"},
	}}
	srv := newTestServer(&fakeProfilesRepo{}, n, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/v1/wallets/wallet-1/nfts", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("unexpected response: %d %+v", resp.StatusCode, env)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv := newTestServer(&fakeProfilesRepo{}, &fakeNFTsRepo{}, &fakeStore{tag: storage.BackendPinata}, &fakeMetadataStore{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/profiles/register", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
