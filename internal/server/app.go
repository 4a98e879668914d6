// Package server initializes and runs the application server. It opens
// the reference database, applies migrations, wires the content store
// adapters and services, and starts the HTTP API with graceful
// shutdown.
package server

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slemarket/hybridstore/internal/logging"
	"github.com/slemarket/hybridstore/internal/server/config"
	"github.com/slemarket/hybridstore/internal/server/httpapi"
	"github.com/slemarket/hybridstore/internal/server/repositories/repomanager"
	"github.com/slemarket/hybridstore/internal/server/services"
	"github.com/slemarket/hybridstore/internal/storage"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	api    *httpapi.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager(db)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	pinata, err := storage.NewPinataClient(storage.PinataConfig{
		JWT:        cfg.PinataJWT,
		APIKey:     cfg.PinataAPIKey,
		APISecret:  cfg.PinataAPISecret,
		GatewayURL: cfg.PinataGatewayURL,
		GatewayKey: cfg.PinataGatewayKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("pinning store init error: %w", err)
	}

	nftStore, err := storage.NewNFTStorageClient(storage.NFTStorageConfig{
		Token:      cfg.NFTStorageToken,
		GatewayURL: cfg.NFTStorageGatewayURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("metadata store init error: %w", err)
	}

	arweave, err := storage.NewArweaveClient(storage.ArweaveConfig{
		GatewayURL: cfg.ArweaveGatewayURL,
		AppName:    cfg.ArweaveAppName,
		AppVersion: cfg.ArweaveAppVersion,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("ledger init error: %w", err)
	}

	wallet, err := loadArweaveWallet(cfg.ArweaveKeyFile)
	if err != nil {
		return nil, fmt.Errorf("ledger wallet error: %w", err)
	}

	readers := map[storage.BackendTag]storage.Store{
		storage.BackendPinata:  pinata,
		storage.BackendArweave: arweave.Signed(wallet),
	}

	targetTag, err := storage.ParseBackendTag(cfg.TargetBackend)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	target, ok := readers[targetTag]
	if !ok {
		return nil, fmt.Errorf("config error: backend %q cannot be a write target", targetTag)
	}

	profileSvc := services.NewProfileService(db, rm, target, readers, pinata, logger)
	profileSvc.SetCleanupTimeout(cfg.CleanupTimeout)
	nftSvc := services.NewNFTService(db, rm, nftStore, logger)
	migrationSvc := services.NewMigrationService(db, rm, profileSvc, readers, logger)

	api := httpapi.NewServer(profileSvc, nftSvc, migrationSvc, logger)

	return &App{config: cfg, logger: logger, db: db, api: api}, nil
}

// loadArweaveWallet reads an RSA private key from a PEM file. With no
// file configured, a throwaway key is generated; its transactions are
// valid but the wallet is unfunded, which suits development.
func loadArweaveWallet(path string) (*storage.Wallet, error) {
	if path == "" {
		return storage.NewWallet()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("no PEM block in key file")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return storage.NewWalletFromKey(key), nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing key file: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key file does not contain an RSA key")
	}
	return storage.NewWalletFromKey(key), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr,
		"targetBackend", app.config.TargetBackend)

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.api.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error(ctx, "server error", "error", err)
		}
	case <-ctx.Done():
		app.logger.Info(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "shutdown error", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
