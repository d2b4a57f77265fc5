package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"counselflow.org/internal/auth"
	"counselflow.org/internal/config"
	"counselflow.org/internal/httpapi"
	"counselflow.org/internal/idp"
	"counselflow.org/internal/obs"
	"counselflow.org/internal/service"
	"counselflow.org/internal/store"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := store.Open(cfg.DatabaseDSN, cfg.Debug)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	var provider *idp.Client
	if cfg.IdentityProvider.BaseURL != "" {
		provider = idp.NewClient(idp.Config{
			BaseURL:      cfg.IdentityProvider.BaseURL,
			ClientID:     cfg.IdentityProvider.ClientID,
			ClientSecret: cfg.IdentityProvider.ClientSecret,
			Audience:     cfg.IdentityProvider.Audience,
			Connection:   cfg.IdentityProvider.Connection,
		}, nil)
	}

	var verifier *auth.Verifier
	if cfg.IdentityProvider.JWKSURL != "" || cfg.AuthSecret != "" {
		var jwks *auth.JWKS
		if cfg.IdentityProvider.JWKSURL != "" {
			jwks = auth.NewJWKS(cfg.IdentityProvider.JWKSURL, nil)
		}
		verifier = auth.NewVerifier(jwks, cfg.AuthSecret, cfg.IdentityProvider.Issuer, cfg.IdentityProvider.Audience)
	}

	svcs := service.New(db, provider)

	if cfg.BootstrapAdminEmail != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if _, err := svcs.Accounts.BootstrapAdminByEmail(ctx, cfg.BootstrapAdminEmail); err != nil {
			log.Printf("bootstrap admin: %v", err)
		}
		cancel()
	}

	probe := httpapi.ReadyProbe{Ping: db.PingContext}
	api := httpapi.New(svcs, verifier, provider, probe, *cfg, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		grpcSrv = grpc.NewServer()
		healthpb.RegisterHealthServer(grpcSrv, httpapi.NewGRPCHealthServer(probe))
		go func() {
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
		log.Printf("gRPC health on %s", cfg.GRPCAddr)
	}

	log.Printf("Starting counselflow-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	_ = db.Close()
	log.Println("Stopped")
}
