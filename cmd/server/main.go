package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	bchandler "desci/internal/biocredit/handler"
	bcmetrics "desci/internal/biocredit/metrics"
	bcservice "desci/internal/biocredit/service"
	"desci/internal/payment/adapters/httpledger"
	"desci/internal/payment/adapters/local"
	payhandler "desci/internal/payment/handler"
	paymetrics "desci/internal/payment/metrics"
	"desci/internal/payment/ports"
	payservice "desci/internal/payment/service"
	"desci/internal/platform/config"
	"desci/internal/platform/httpserver"
	"desci/internal/platform/logger"
	"desci/internal/platform/metrics"
	platformredis "desci/internal/platform/redis"
	rlmetrics "desci/internal/ratelimit/metrics"
	ratelimit "desci/internal/ratelimit/middleware"
	rlmodels "desci/internal/ratelimit/models"
	"desci/internal/ratelimit/store/bucket"
	reghandler "desci/internal/registry/handler"
	regmetrics "desci/internal/registry/metrics"
	regservice "desci/internal/registry/service"
	rephandler "desci/internal/report/handler"
	repservice "desci/internal/report/service"
	httptransport "desci/internal/transport/http"
	"desci/pkg/platform/circuit"
	"desci/pkg/platform/events"
	"desci/pkg/platform/events/kafka"
	"desci/pkg/platform/events/outbox"
	"desci/pkg/platform/events/publisher"
	"desci/pkg/platform/invocation"
	"desci/pkg/platform/kv"
	kvmemory "desci/pkg/platform/kv/memory"
	kvpostgres "desci/pkg/platform/kv/postgres"
	kvredis "desci/pkg/platform/kv/redis"
)

// main wires high-level dependencies, exposes the HTTP router and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	health := map[string]httptransport.Pinger{}
	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("close failed", "error", err)
			}
		}
	}()

	store, pg, rdb, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	closers = append(closers, store.Close)
	health["storage"] = store

	// Events always reach the log; Kafka is added when brokers are configured.
	sinks := events.MultiSink{events.NewLogSink(log)}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.WithLogger(log))
		if err != nil {
			return err
		}
		if err := kp.EnsureTopic(ctx, 3, 1); err != nil {
			log.Warn("kafka topic bootstrap failed", "topic", cfg.Kafka.Topic, "error", err)
		}
		closers = append(closers, kp.Close)
		health["kafka"] = kp
		sinks = append(sinks, kp)
	}

	runnerOpts := []invocation.Option{
		invocation.WithLogger(log),
		invocation.WithMetrics(invocation.NewMetrics()),
	}
	var relay *outbox.Relay
	if pg != nil {
		// Postgres records events in the same transaction as the state they
		// describe; the relay forwards them.
		ob := outbox.New(pg.DB())
		if err := ob.EnsureSchema(ctx); err != nil {
			return err
		}
		runnerOpts = append(runnerOpts, invocation.WithRecorder(ob))
		relay = outbox.NewRelay(pg.DB(), sinks,
			outbox.WithInterval(cfg.OutboxRelayInterval),
			outbox.WithLogger(log),
		)
	} else {
		async := publisher.NewPublisher(sinks,
			publisher.WithAsyncBuffer(1024),
			publisher.WithLogger(log),
			publisher.WithMetrics(publisher.NewMetrics()),
		)
		closers = append(closers, async.Close)
		runnerOpts = append(runnerOpts, invocation.WithSink(async))
	}
	runner := invocation.NewRunner(store, runnerOpts...)

	var ledger ports.TokenLedger
	if cfg.Ledger.URL != "" {
		breaker := circuit.New("token-ledger",
			circuit.WithFailureThreshold(cfg.Ledger.BreakerFailures),
			circuit.WithCooldown(cfg.Ledger.BreakerCooldown),
		)
		ledger = httpledger.New(cfg.Ledger.URL,
			httpledger.WithTimeout(cfg.Ledger.Timeout),
			httpledger.WithBreaker(breaker),
			httpledger.WithLogger(log),
		)
		log.Info("using remote token ledger", "url", cfg.Ledger.URL)
	} else {
		ledger = local.New(store, local.WithLogger(log))
	}

	algorithm, err := regservice.ParseHashAlgorithm(cfg.Economics.HashAlgorithm)
	if err != nil {
		return err
	}

	credits := bcservice.New(runner,
		bcservice.WithToken(cfg.Economics.BioCreditToken),
		bcservice.WithLogger(log),
		bcservice.WithMetrics(bcmetrics.New()),
	)
	studies := regservice.New(runner,
		regservice.WithHashAlgorithm(algorithm),
		regservice.WithLogger(log),
		regservice.WithMetrics(regmetrics.New()),
	)
	payments := payservice.New(runner, ledger,
		payservice.WithLogger(log),
		payservice.WithMetrics(paymetrics.New()),
	)
	reports := repservice.New(runner, credits, studies, payments, repservice.Config{
		Treasury:     cfg.Economics.Treasury,
		Token:        cfg.Economics.USDCToken,
		ReportCost:   cfg.Economics.ReportCost,
		USDCPerStudy: cfg.Economics.USDCPerStudy,
	}, repservice.WithLogger(log))

	limit := rlmodels.Limit{Requests: cfg.RateLimit.Writes, Window: cfg.RateLimit.Window}
	rlOpts := []ratelimit.Option{
		ratelimit.WithMetrics(rlmetrics.New()),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
	}
	var buckets ratelimit.BucketStore = bucket.NewInMemoryBucketStore()
	if rdb != nil {
		// Redis deployments share windows between instances and fall back to
		// local buckets while Redis is unreachable.
		rlOpts = append(rlOpts, ratelimit.WithFallback(buckets, circuit.New("ratelimit-redis")))
		buckets = bucket.NewRedisBucketStore(rdb.Client)
	}
	limiter := ratelimit.New(buckets, limit, log, rlOpts...)

	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN is not set, minting is disabled")
	}
	router := httptransport.NewRouter(httptransport.Deps{
		BioCredit: bchandler.New(credits, log),
		Registry:  reghandler.New(studies, log),
		Payment: payhandler.New(payments, payhandler.Defaults{
			Token:    cfg.Economics.USDCToken,
			Treasury: cfg.Economics.Treasury,
		}, log),
		Report:     rephandler.New(reports, log),
		RateLimit:  limiter,
		AdminToken: cfg.AdminToken,
		Health:     health,
		Metrics:    metrics.NewHTTP(),
		Logger:     log,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting desci ledger", "addr", cfg.Addr, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if relay != nil {
		g.Go(func() error {
			if err := relay.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// openStore returns the configured backend. The postgres store and redis
// client are returned again so the outbox and rate limiter can share them.
func openStore(ctx context.Context, cfg config.Server, log *slog.Logger) (kv.Store, *kvpostgres.Store, *platformredis.Client, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		pg, err := kvpostgres.Open(ctx, cfg.DatabaseURL, kvpostgres.WithTxTimeout(5*time.Second))
		if err != nil {
			return nil, nil, nil, err
		}
		return pg, pg, nil, nil
	case config.StorageRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, err
		}
		return kvredis.New(client.Client), nil, client, nil
	default:
		log.Warn("using in-memory storage, state is lost on restart")
		return kvmemory.New(), nil, nil, nil
	}
}
