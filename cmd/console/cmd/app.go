package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"recruitpipe/console/internal/audit"
	auditrepo "recruitpipe/console/internal/audit/repository"
	"recruitpipe/console/internal/backend"
	"recruitpipe/console/internal/config"
	"recruitpipe/console/internal/identity/provider"
	"recruitpipe/console/internal/identity/service"
	"recruitpipe/console/internal/logger"
	"recruitpipe/console/internal/platform/httpclient"
	"recruitpipe/console/internal/session/repository"
	"recruitpipe/console/internal/session/store"
	telemetryotel "recruitpipe/console/internal/telemetry/otel"
)

const (
	serviceName   = "recruitpipe-console"
	auditCapacity = 256
)

// app is the wired console core for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	audit     audit.AuditLogger
	providers *telemetryotel.Providers
	manager   *service.Manager
	backend   *backend.Client
	printer   *printer
}

// session wraps run so the session is opened before it and closed after it, whatever it returns.
func (a *app) session(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.open(cmd.Context()); err != nil {
			_ = a.close()
			return err
		}
		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()
		return run(cmd, args)
	}
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	a.providers = providers
	a.logger = logger.New(os.Stderr, cfg.LogLevel, serviceName, providers.LoggerProvider)
	a.audit = audit.NewLogger(auditrepo.NewMemoryRepository(auditCapacity), a.logger)

	var slot repository.Slot
	switch cfg.SessionStore {
	case config.SessionStoreBolt:
		bs, err := repository.OpenBoltSlot(cfg.SessionStorePath)
		if err != nil {
			return err
		}
		slot = bs
	default:
		slot = repository.NewMemorySlot()
	}

	hc := httpclient.New(cfg.Timeout())
	idp := provider.NewClient(provider.Config{
		SignInURL: cfg.SignInURL(),
		TokenURL:  cfg.TokenURL(),
		APIKey:    cfg.IdentityAPIKey,
	}, hc)
	a.backend = backend.NewClient(cfg.BackendBaseURL, hc, nil)
	a.manager = service.NewManager(store.New(slot, a.logger), idp, a.backend, service.Options{
		RefreshSkew: cfg.RefreshSkew(),
		Logger:      a.logger,
		Audit:       a.audit,
	})
	a.backend.SetHeaderSource(a.manager)
	a.manager.Init(ctx)
	return nil
}

func (a *app) close() error {
	var err error
	if a.manager != nil {
		err = a.manager.Close()
		a.manager = nil
	}
	if a.providers != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.providers.Shutdown(ctx)
		a.providers = nil
	}
	return err
}
