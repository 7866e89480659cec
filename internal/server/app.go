// Package server wires the GophAuth components together and runs them: the
// HTTP API, the gRPC health endpoint and the optional retention janitor.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gin-gonic/gin"

	gs "github.com/dmitrijs2005/gophauth/internal/server/grpc"
)

type App struct {
	config     config.Config
	logger     logging.Logger
	db         *sql.DB
	ready      *httpapi.Readiness
	httpServer *httpapi.Server
	grpcServer *gs.HealthServer
	janitor    *services.Janitor
}

// NewApp connects to PostgreSQL, applies migrations and builds every
// component from c.
func NewApp(ctx context.Context, c config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(c, logger, db, rm, os.Stderr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(c config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager, mailOut io.Writer) (*App, error) {
	codec, err := auth.NewTokenCodec(c.SecretKey, c.SigningAlgorithm, auth.Lifetimes{
		Access:            c.AccessTokenValidityDuration,
		Refresh:           c.RefreshTokenValidityDuration,
		EmailVerification: c.EmailVerificationTokenValidityDuration,
		PasswordReset:     c.PasswordResetTokenValidityDuration,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}

	accounts, err := services.NewAccountService(db, rm, auth.NewBcryptHasher(c.BcryptCost), logger, nil)
	if err != nil {
		return nil, err
	}
	ledger := services.NewRevocationLedger(db, rm, nil)
	otp := services.NewOTPManager(db, rm, services.NewConsoleMailer(mailOut), logger, c.OTPValidityDuration, nil)
	twofa := services.NewTwoFactorManager(db, rm, auth.NewTOTP(c.TOTPIssuer, c.TOTPSkew, nil), logger, nil)
	authService := services.NewAuthService(accounts, ledger, codec, logger)

	if c.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ready := httpapi.NewReadiness(false)
	handler := httpapi.NewHandler(authService, accounts, otp, twofa, logger)
	router := httpapi.NewRouter(handler, logger, ready, metrics.NewRegistry())

	app := &App{
		config:     c,
		logger:     logger,
		db:         db,
		ready:      ready,
		httpServer: httpapi.NewServer(c.EndpointAddrHTTP, router, logger),
		grpcServer: gs.NewHealthServer(c.EndpointAddrGRPC, logger),
	}
	if c.LedgerRetention > 0 {
		app.janitor = services.NewJanitor(ledger, otp, c.LedgerRetention, c.JanitorInterval, logger, nil)
	}
	return app, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Signal received", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until ctx is cancelled, a termination signal arrives or one of
// the servers fails. The database is closed before Run returns.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				app.logger.Error(ctx, name+" failed", "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	start("http server", app.httpServer.Run)
	start("grpc server", app.grpcServer.Run)
	if app.janitor != nil {
		start("janitor", func(ctx context.Context) error {
			app.janitor.Run(ctx)
			return nil
		})
	}

	app.ready.SetReady(true)
	app.grpcServer.SetServing(true)

	<-ctx.Done()
	app.ready.SetReady(false)
	app.grpcServer.SetServing(false)

	wg.Wait()

	if err := app.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close db: %w", err))
	}
	app.logger.Info(context.Background(), "App stopped")
	return errors.Join(errs...)
}
