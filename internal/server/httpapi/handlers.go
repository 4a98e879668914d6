package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/slemarket/hybridstore/internal/server/models"
	"github.com/slemarket/hybridstore/internal/storage"
)

type registerRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type registerResponse struct {
	WalletAddress string `json:"walletAddress"`
	IsNewUser     bool   `json:"isNewUser"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ref, created, err := s.profiles.Register(r.Context(), req.WalletAddress)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeSuccess(w, status, registerResponse{WalletAddress: ref.WalletAddress, IsNewUser: created}, "")
}

type saveProfileResponse struct {
	WalletAddress string `json:"walletAddress"`
	ContentID     string `json:"contentId"`
	Backend       string `json:"backend"`
	IsUpdate      bool   `json:"isUpdate"`
}

func (s *Server) handleSaveProfile(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	var data models.ProfileData
	if !decodeJSON(w, r, &data) {
		return
	}

	res, err := s.profiles.CreateOrUpdate(r.Context(), wallet, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, saveProfileResponse{
		WalletAddress: wallet,
		ContentID:     res.ContentID,
		Backend:       string(res.Backend),
		IsUpdate:      res.IsUpdate,
	}, res.Warning)
}

type profileResponse struct {
	WalletAddress string             `json:"walletAddress"`
	ContentID     string             `json:"contentId,omitempty"`
	Backend       string             `json:"backend"`
	Profile       models.ProfileData `json:"profile"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	p, err := s.profiles.Get(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := profileResponse{
		WalletAddress: p.Reference.WalletAddress,
		Backend:       string(p.Reference.Backend),
		Profile:       p.Data,
	}
	if p.Reference.ContentID != nil {
		resp.ContentID = *p.Reference.ContentID
	}
	writeSuccess(w, http.StatusOK, resp, "")
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	if err := s.profiles.Delete(r.Context(), wallet); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"walletAddress": wallet}, "")
}

func (s *Server) handleProfileExists(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	ok, err := s.profiles.Exists(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]bool{"exists": ok}, "")
}

type statsResponse struct {
	Registered bool `json:"registered"`
	HasProfile bool `json:"hasProfile"`
	NFTCount   int  `json:"nftCount"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	st, err := s.profiles.Stats(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, statsResponse{
		Registered: st.Registered,
		HasProfile: st.HasProfile,
		NFTCount:   st.NFTCount,
	}, "")
}

type migrateRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	var req migrateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	source, err := storage.ParseBackendTag(req.Source)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	res, err := s.migrations.Migrate(r.Context(), wallet, source)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, saveProfileResponse{
		WalletAddress: wallet,
		ContentID:     res.ContentID,
		Backend:       string(res.Backend),
		IsUpdate:      res.IsUpdate,
	}, res.Warning)
}

type uploadNFTRequest struct {
	MintAddress string          `json:"mintAddress"`
	OwnerWallet string          `json:"ownerWallet"`
	Metadata    json.RawMessage `json:"metadata"`
}

type nftResponse struct {
	MintAddress string          `json:"mintAddress"`
	ContentID   string          `json:"contentId"`
	OwnerWallet string          `json:"ownerWallet"`
	GatewayURL  string          `json:"gatewayUrl,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func (s *Server) handleUploadNFT(w http.ResponseWriter, r *http.Request) {
	var req uploadNFTRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.nfts.Upload(r.Context(), req.Metadata, req.MintAddress, req.OwnerWallet)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, nftResponse{
		MintAddress: rec.MintAddress,
		ContentID:   rec.ContentID,
		OwnerWallet: rec.OwnerWallet,
	}, "")
}

func (s *Server) handleGetNFT(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]

	nft, err := s.nfts.Get(r.Context(), mint)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nftResponse{
		MintAddress: nft.Record.MintAddress,
		ContentID:   nft.Record.ContentID,
		OwnerWallet: nft.Record.OwnerWallet,
		GatewayURL:  nft.Gateway,
		Metadata:    nft.Metadata,
	}, "")
}

func (s *Server) handleListNFTs(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["wallet"]

	recs, err := s.nfts.ListByOwner(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]nftResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, nftResponse{
			MintAddress: rec.MintAddress,
			ContentID:   rec.ContentID,
			OwnerWallet: rec.OwnerWallet,
		})
	}
	writeSuccess(w, http.StatusOK, out, "")
}

type transferRequest struct {
	NewOwner string `json:"newOwner"`
}

func (s *Server) handleTransferNFT(w http.ResponseWriter, r *http.Request) {
	mint := mux.Vars(r)["mint"]

	var req transferRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rec, err := s.nfts.TransferOwner(r.Context(), mint, req.NewOwner)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, nftResponse{
		MintAddress: rec.MintAddress,
		ContentID:   rec.ContentID,
		OwnerWallet: rec.OwnerWallet,
	}, "")
}
