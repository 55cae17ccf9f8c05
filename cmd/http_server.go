package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/spf13/cobra"

	"github.com/frahmantamala/booking-ledger/internal/auth"
	"github.com/frahmantamala/booking-ledger/internal/booking"
	"github.com/frahmantamala/booking-ledger/internal/ledger"
	"github.com/frahmantamala/booking-ledger/internal/payment"
	"github.com/frahmantamala/booking-ledger/internal/transport/rest"
	"github.com/frahmantamala/booking-ledger/internal/transport/swagger"
	"github.com/frahmantamala/booking-ledger/pkg/logger"
)

var enableSwagger bool

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests and gateway webhooks`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

func init() {
	httpServerCmd.Flags().BoolVar(&enableSwagger, "swagger", true, "serve the OpenAPI document and Swagger UI")
}

func startHTTPServer() {
	cfg, err := loadValidConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.LoggerWrapper()

	ctx := context.Background()
	if _, err := swagger.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load API document: %v\n", err)
		os.Exit(1)
	}

	deps, err := initializeDependencies(ctx, cfg, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	publicKey, err := cfg.Security.GetPublicKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load JWT public key: %v\n", err)
		os.Exit(1)
	}

	health := rest.NewHealthHandler(deps.SQL)
	if deps.Redis != nil {
		health.WithCheck("redis", deps.Redis.Ping)
	}

	router := chi.NewRouter()
	rest.RegisterAllRoutes(router, rest.Handlers{
		Health:  health,
		Tokens:  auth.NewJWTVerifier(publicKey),
		Payment: payment.NewHandler(deps.Payments, lg),
		Webhook: payment.NewWebhookHandler(
			payment.NewWebhookAuthenticator(cfg.Webhook.Username, cfg.Webhook.Password),
			deps.Processor,
			lg,
		),
		Ledger:        ledger.NewHandler(deps.Ledger, lg),
		Booking:       booking.NewHandler(deps.Allocation, lg),
		EnableSwagger: enableSwagger,
	}, lg)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	lg.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		lg.Info("Received signal, shutting down...", "signal", sig)
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			lg.Error("Server failed to start", "error", err)
			deps.Close(ctx)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("Server shutdown error", "error", err)
	}
	deps.Close(shutdownCtx)

	lg.Info("Server stopped")
}
