// Command server runs the ticketing service: the HTTP surface, the
// protocol controller, and the background audit worker. main only wires
// dependencies; behavior lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"stagepass/internal/audit"
	"stagepass/internal/auth"
	"stagepass/internal/authority"
	"stagepass/internal/event"
	"stagepass/internal/ledger"
	ledgermetrics "stagepass/internal/ledger/metrics"
	"stagepass/internal/platform/config"
	"stagepass/internal/platform/httpserver"
	"stagepass/internal/platform/logger"
	platformredis "stagepass/internal/platform/redis"
	"stagepass/internal/protocol"
	protocolhandler "stagepass/internal/protocol/handler"
	protometrics "stagepass/internal/protocol/metrics"
	"stagepass/internal/ratelimit"
	"stagepass/internal/ticket"
	httptransport "stagepass/internal/transport/http"
	"stagepass/internal/validation"
	id "stagepass/pkg/domain"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	owner, err := id.ParsePrincipalID(cfg.LedgerOwner)
	if err != nil {
		owner = id.PrincipalID(uuid.New())
		log.Warn("LEDGER_OWNER_PRINCIPAL not set, generated ephemeral issuer principal",
			"principal", owner.String(),
		)
	}

	// Ledger store: postgres when configured, memory otherwise.
	var ledgerStore ledger.Store
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("failed to connect postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, ledger.Schema); err != nil {
			log.Error("failed to apply ledger schema", "error", err)
			os.Exit(1)
		}
		ledgerStore = ledger.NewPostgres(pool)
	} else {
		ledgerStore = ledger.NewInMemoryStore()
	}

	group, ctx := errgroup.WithContext(ctx)

	// Audit trail: in-process store is the source of truth, Kafka fans the
	// events out when brokers are configured.
	publisherOpts := []audit.PublisherOption{audit.WithLogger(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("failed to connect kafka audit sink", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()

		channelSink := audit.NewChannelSink(1024)
		publisherOpts = append(publisherOpts, audit.WithSink(channelSink))
		worker := audit.NewWorker(kafkaSink, channelSink.Inbox(), log)
		group.Go(func() error {
			if err := worker.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	auditPub := audit.NewPublisher(audit.NewInMemoryStore(), publisherOpts...)

	ledgerSvc := ledger.New(ledgerStore, owner,
		ledger.WithLogger(log),
		ledger.WithAuditPublisher(auditPub),
		ledger.WithMetrics(ledgermetrics.New()),
	)

	var authorityClient authority.Client
	if cfg.Authority.Mode == "http" {
		authorityClient = authority.NewHTTPClient(
			cfg.Authority.BaseURL,
			cfg.Authority.Token,
			cfg.Authority.Timeout,
			authority.WithBreaker(authority.NewBreaker()),
		)
	} else {
		log.Info("running with the in-process mock authority")
		authorityClient = authority.NewMockClient(ledgerSvc, owner)
	}

	// Validation queue: redis when configured, memory otherwise.
	var queue validation.Store = validation.NewInMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		queue = validation.NewRedis(redisClient.Client)
	}

	svc := protocol.New(
		authorityClient,
		event.NewInMemory(),
		event.NewInMemory(),
		ticket.NewInMemory(),
		queue,
		protocol.WithLogger(log),
		protocol.WithAuditPublisher(auditPub),
		protocol.WithMetrics(protometrics.New()),
	)

	tokens := auth.NewTokenService(cfg.JWTSigningKey, "stagepass", "stagepass-api")
	limits := ratelimit.New(
		ratelimit.NewInMemoryStore(),
		cfg.RateLimit.Limit,
		cfg.RateLimit.Window,
		log,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	)
	router := httptransport.NewRouter(protocolhandler.New(svc, log), tokens, limits)
	srv := httpserver.New(cfg.Addr, router)

	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
