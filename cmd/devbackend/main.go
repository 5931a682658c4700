package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"recruitpipe/console/internal/config"
	"recruitpipe/console/internal/devbackend"
	"recruitpipe/console/internal/devotp"
	"recruitpipe/console/internal/logger"
	mfarepo "recruitpipe/console/internal/mfa/repository"
	"recruitpipe/console/internal/security"
	telemetryotel "recruitpipe/console/internal/telemetry/otel"
	userrepo "recruitpipe/console/internal/user/repository"
)

const serviceName = "recruitpipe-devbackend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Production() {
		log.Fatal("devbackend: refusing to run with APP_ENV=production")
	}

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()
	lg := logger.New(os.Stderr, cfg.LogLevel, serviceName, providers.LoggerProvider)

	keys, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt keys: %v", err)
	}
	if keys.Ephemeral {
		lg.Warn("using an ephemeral signing key; tokens do not survive a restart")
	}
	tokens := security.NewTokenProvider(keys.Signer, keys.Public, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	opts := devbackend.Options{
		Limiter: devbackend.NewSignInLimiter(cfg.DevSignInRate, cfg.DevSignInBurst),
		Logger:  lg,
	}
	if cfg.OTPAutofill {
		opts.DevOTP = devotp.NewOutbox(nil)
		lg.Warn("plaintext step-up codes are returned to clients (OTP_AUTOFILL=true)")
	}
	svc := devbackend.NewService(userrepo.NewMemoryRepository(), mfarepo.NewMemoryRepository(), tokens, security.NewPasswordHasher(cfg.BcryptCost), opts)

	seeds, err := cfg.SeedUsers()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	accounts := make([]devbackend.Account, 0, len(seeds))
	for _, s := range seeds {
		accounts = append(accounts, devbackend.Account{Role: s.Role, Email: s.Email, Password: s.Password})
	}
	if err := svc.Seed(ctx, accounts); err != nil {
		log.Fatalf("seed: %v", err)
	}

	srv := &http.Server{
		Addr:              cfg.DevBackendAddr,
		Handler:           otelhttp.NewHandler(devbackend.NewHandler(svc, cfg.IdentityAPIKey, lg).Router(), serviceName),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("dev backend listening", "addr", cfg.DevBackendAddr, "users", len(accounts))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down dev backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown", "error", err)
	}
}
