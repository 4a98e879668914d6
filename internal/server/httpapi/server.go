// Package httpapi exposes the profile, NFT, and migration services over
// a JSON HTTP surface. It is glue only; all storage policy lives in the
// services.
package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/slemarket/hybridstore/internal/logging"
	"github.com/slemarket/hybridstore/internal/server/services"
)

type Server struct {
	profiles   *services.ProfileService
	nfts       *services.NFTService
	migrations *services.MigrationService
	log        logging.Logger
}

func NewServer(profiles *services.ProfileService, nfts *services.NFTService,
	migrations *services.MigrationService, log logging.Logger) *Server {
	return &Server{profiles: profiles, nfts: nfts, migrations: migrations, log: log}
}

// Router builds the route table. All routes are JSON in, JSON out with
// the uniform {success, error?, warning?, data?} envelope.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.requestLogger)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/profiles/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/profiles/{wallet}", s.handleSaveProfile).Methods(http.MethodPut)
	api.HandleFunc("/profiles/{wallet}", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{wallet}", s.handleDeleteProfile).Methods(http.MethodDelete)
	api.HandleFunc("/profiles/{wallet}/exists", s.handleProfileExists).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{wallet}/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/profiles/{wallet}/migrate", s.handleMigrate).Methods(http.MethodPost)

	api.HandleFunc("/nfts", s.handleUploadNFT).Methods(http.MethodPost)
	api.HandleFunc("/nfts/{mint}", s.handleGetNFT).Methods(http.MethodGet)
	api.HandleFunc("/nfts/{mint}/transfer", s.handleTransferNFT).Methods(http.MethodPost)
	api.HandleFunc("/wallets/{wallet}/nfts", s.handleListNFTs).Methods(http.MethodGet)

	return r
}

// requestLogger attaches a request id and logs each request once served.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		log := s.log.With("requestID", reqID, "method", r.Method, "path", r.URL.Path)
		log.Debug(r.Context(), "request received")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "")
}
