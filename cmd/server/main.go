// Command server runs the civil registry back office: citizen registration
// and approval, certificate issuance, household tax collection, operator
// accounts with a mail second factor, and the public verification endpoint.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	adminhandler "civreg/internal/admin/handler"
	adminmetrics "civreg/internal/admin/metrics"
	adminservice "civreg/internal/admin/service"
	adminstore "civreg/internal/admin/store"
	certhandler "civreg/internal/certificate/handler"
	certmetrics "civreg/internal/certificate/metrics"
	certservice "civreg/internal/certificate/service"
	certstore "civreg/internal/certificate/store"
	citizenhandler "civreg/internal/citizen/handler"
	citizenmetrics "civreg/internal/citizen/metrics"
	citizenservice "civreg/internal/citizen/service"
	citizenstore "civreg/internal/citizen/store"
	"civreg/internal/idgen"
	ledgerstore "civreg/internal/ledger/store"
	"civreg/internal/notify"
	otpmetrics "civreg/internal/otp/metrics"
	otpservice "civreg/internal/otp/service"
	otpstore "civreg/internal/otp/store"
	"civreg/internal/platform/config"
	"civreg/internal/platform/httpserver"
	"civreg/internal/platform/logger"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/postgres"
	platformredis "civreg/internal/platform/redis"
	taxhandler "civreg/internal/tax/handler"
	taxmetrics "civreg/internal/tax/metrics"
	taxservice "civreg/internal/tax/service"
	taxstore "civreg/internal/tax/store"
	transporthttp "civreg/internal/transport/http"
	verifhandler "civreg/internal/verification/handler"
	verifmetrics "civreg/internal/verification/metrics"
	verifservice "civreg/internal/verification/service"
	dErrors "civreg/pkg/domain-errors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.PostgresDSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		log.Info("postgres connected")
	} else {
		log.Warn("postgres not configured, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis())
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("redis connected")
	} else {
		log.Warn("redis not configured, passcodes held in memory")
	}

	// Stores. Each module runs on Postgres when configured and falls back to
	// its in-memory implementation otherwise.
	var (
		citizens   citizenstore.Store          = citizenstore.NewInMemory()
		households citizenstore.HouseholdStore = citizenstore.NewInMemoryHouseholds()
		certs      certstore.Store             = certstore.NewInMemory()
		certTypes  certstore.TypeStore         = certstore.NewInMemoryTypes()
		taxRecords taxstore.Store              = taxstore.NewInMemory()
		admins     adminstore.Store            = adminstore.NewInMemory()
		ledger     ledgerstore.Store           = ledgerstore.NewInMemory()
	)
	if db != nil {
		citizens = citizenstore.NewPostgres(db)
		households = citizenstore.NewPostgresHouseholds(db)
		certs = certstore.NewPostgres(db)
		certTypes = certstore.NewPostgresTypes(db)
		taxRecords = taxstore.NewPostgres(db)
		admins = adminstore.NewPostgres(db)
		ledger = ledgerstore.NewPostgres(db)
	}

	var tokens otpstore.Store = otpstore.NewInMemory()
	if redisClient != nil {
		tokens = otpstore.NewRedis(redisClient.Client)
	}

	var publisher notify.Publisher = notify.NewLogPublisher(log)
	if cfg.AMQPURL != "" {
		amqpPublisher, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.NotifyQueue)
		if err != nil {
			return err
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		log.Info("amqp publisher connected", "queue", cfg.NotifyQueue)
	}

	numbers, err := idgen.New(cfg.ResidentCode, cfg.NonResidentCode)
	if err != nil {
		return err
	}

	httpMetrics := metrics.New()

	citizenSvc := citizenservice.New(citizens, households,
		citizenservice.WithLogger(log),
		citizenservice.WithPublisher(publisher),
		citizenservice.WithMetrics(citizenmetrics.New()),
	)
	taxSvc := taxservice.New(taxRecords, citizens, ledger, time.Month(cfg.FiscalStartMonth),
		taxservice.WithLogger(log),
		taxservice.WithPublisher(publisher),
		taxservice.WithMetrics(taxmetrics.New()),
	)
	certSvc := certservice.New(certs, certTypes, citizens, numbers, ledger,
		certservice.WithLogger(log),
		certservice.WithPublisher(publisher),
		certservice.WithMetrics(certmetrics.New()),
	)
	otpSvc := otpservice.New(tokens, &otpservice.LogMailer{Logger: log}, cfg.OTPTTL,
		otpservice.WithLogger(log),
		otpservice.WithMetrics(otpmetrics.New()),
	)
	adminSvc := adminservice.New(admins, otpSvc, []byte(cfg.JWTSigningKey), cfg.SessionTTL,
		adminservice.WithLogger(log),
		adminservice.WithMetrics(adminmetrics.New()),
	)
	verifSvc := verifservice.New(certs, certTypes, citizens,
		verifservice.WithLogger(log),
		verifservice.WithMetrics(verifmetrics.New()),
	)

	if err := bootstrapAdmin(ctx, cfg, adminSvc, log); err != nil {
		return err
	}

	health := map[string]transporthttp.HealthChecker{}
	if db != nil {
		health["postgres"] = db.PingContext
	}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}

	router := transporthttp.NewRouter(transporthttp.Handlers{
		Citizen:      citizenhandler.New(citizenSvc, log),
		Certificate:  certhandler.New(certSvc, log),
		Tax:          taxhandler.New(taxSvc, log),
		Admin:        adminhandler.New(adminSvc, log),
		Verification: verifhandler.New(verifSvc, log),
	}, adminSvc, log, httpMetrics, health)

	srv := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// bootstrapAdmin seeds the first operator account so a fresh deployment can
// log in. Re-running against an existing account is a no-op.
func bootstrapAdmin(ctx context.Context, cfg config.Config, svc *adminservice.Service, log *slog.Logger) error {
	if cfg.BootstrapAdminUser == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	_, err := svc.CreateAdmin(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword)
	switch {
	case err == nil:
		log.Info("bootstrap admin created", "username", cfg.BootstrapAdminUser)
		return nil
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return nil
	default:
		return err
	}
}
