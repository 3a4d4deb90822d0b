package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/jmcleod/signet/api"
	"github.com/jmcleod/signet/internal/util"
	"github.com/jmcleod/signet/pki"
	"github.com/jmcleod/signet/request"
	bboltstorage "github.com/jmcleod/signet/storage/bbolt"
	pgstorage "github.com/jmcleod/signet/storage/postgres"
)

var (
	port        int
	dataDir     string
	backend     string
	postgresDSN string
	tlsCert     string
	tlsKey      string
	seedAdmin   string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the certificate request service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var (
			users    api.UserSaver
			certs    request.CertificateRepository
			requests request.RequestRepository
		)
		switch backend {
		case "bbolt":
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			store, err := bboltstorage.NewStoreFromFile(dataDir+"/signet.db", nil)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()
			users, certs, requests = store.Users(), store.Certificates(), store.Requests()
		case "postgres":
			if postgresDSN == "" {
				return errors.New("--postgres-dsn is required with --backend postgres")
			}
			store, err := pgstorage.NewStoreFromDSN(ctx, postgresDSN)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()
			users, certs, requests = store.Users(), store.Certificates(), store.Requests()
		default:
			return fmt.Errorf("unknown backend %q (want bbolt or postgres)", backend)
		}

		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
		authority := pki.NewAuthority(certs)
		engine := request.NewEngine(users, certs, requests, authority,
			request.WithLogger(logger))

		a := api.New(engine, users, certs, api.WithLogger(logger))

		if seedAdmin != "" {
			token, err := a.Bootstrap(ctx, seedAdmin, request.RoleAdmin)
			if err != nil {
				return fmt.Errorf("failed to seed admin: %w", err)
			}
			// Printed once; only the hash is kept server-side.
			fmt.Printf("Admin token for %s: %s\n", seedAdmin, token)
		}

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		var tlsConfig *tls.Config
		if tlsCert != "" && tlsKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		} else {
			cert, err := util.GenerateSelfSignedCert()
			if err != nil {
				return fmt.Errorf("failed to generate self-signed certificate: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			fmt.Println("Using self-signed runtime generated certificate for TLS")
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (backend: %s)...\n", port, backend)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8443, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data (bbolt backend)")
	serverCmd.Flags().StringVar(&backend, "backend", "bbolt", "Storage backend: bbolt or postgres")
	serverCmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringVar(&seedAdmin, "seed-admin", "", "Email of an admin principal to provision at startup")
}
