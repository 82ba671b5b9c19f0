package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/weegigs/wee-streams-go/businesstx"
	"github.com/weegigs/wee-streams-go/connectors/wehttp"
	"github.com/weegigs/wee-streams-go/relay"
	"github.com/weegigs/wee-streams-go/restore"
	"github.com/weegigs/wee-streams-go/samples/job"
	"github.com/weegigs/wee-streams-go/stores/jetstream"
	"github.com/weegigs/wee-streams-go/stores/kafka"
	"github.com/weegigs/wee-streams-go/stores/pg"
	"github.com/weegigs/wee-streams-go/support"
	"github.com/weegigs/wee-streams-go/we"
)

func main() {
	cfg, err := support.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := support.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, &logger); err != nil {
		logger.Fatal().Err(err).Str("mode", string(cfg.Mode)).Msg("job service failed")
	}
}

func run(ctx context.Context, cfg support.Config, logger *zerolog.Logger) error {
	if cfg.OTLPEndpoint != "" {
		exporter, err := we.OTLPExporter(ctx, cfg.OTLPEndpoint, nil)
		if err != nil {
			return errors.Wrap(err, "failed to create trace exporter")
		}

		provider := we.TracerProvider(exporter)
		defer func() { _ = provider.Shutdown(context.Background()) }()
		otel.SetTracerProvider(provider)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	switch cfg.Mode {
	case support.Restore:
		return runRestore(ctx, cfg, registry, logger)
	default:
		return runOnline(ctx, cfg, registry, logger)
	}
}

func runOnline(ctx context.Context, cfg support.Config, registry *prometheus.Registry, logger *zerolog.Logger) error {
	jobs, cleanup, err := OnlineJobs(ctx, pg.DatabaseURL(cfg.DatabaseURL))
	if err != nil {
		return err
	}
	defer cleanup()

	sink, closeSink, err := newSink(cfg, jobs.Codec, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	outbox := relay.New(jobs.DB, jobs.Log, sink,
		relay.WithInterval(cfg.RelayInterval),
		relay.WithBatchSize(cfg.RelayBatchSize),
		relay.WithLogger(logger),
	)

	router := chi.NewRouter()
	router.Use(wehttp.RequestLogger(logger))
	router.Mount("/jobs", job.NewHandler(jobs.Service, logger))
	router.Mount("/admin", wehttp.NewAdminHandler(wehttp.WithGatherer(registry)))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return outbox.Run(ctx) })
	group.Go(func() error { return serve(ctx, cfg.HTTPAddr, router, logger) })

	if len(cfg.KafkaBrokers) > 0 && cfg.OnlineConsumerGroup != "" {
		consumer, closeConsumer, err := batchAuditor(cfg, jobs, logger)
		if err != nil {
			return err
		}
		defer closeConsumer()

		group.Go(func() error { return consumer(ctx) })
	}

	return group.Wait()
}

// newSink publishes to JetStream when NATS_URL is set, otherwise to Kafka.
func newSink(cfg support.Config, codec *we.Codec, logger *zerolog.Logger) (relay.Sink, func(), error) {
	if cfg.NATSURL != "" {
		conn, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "failed to connect to nats")
		}

		stream, err := jetstream.NewStream(cfg.NATSStream, conn, codec, jetstream.WithLogger(logger))
		if err != nil {
			conn.Close()
			return nil, nil, err
		}

		return stream, conn.Close, nil
	}

	client, closeClient, err := kafka.ProducerClient(kafka.Brokers(cfg.KafkaBrokers))
	if err != nil {
		return nil, nil, err
	}

	return kafka.NewSink(client, kafka.Topic(cfg.KafkaTopic), codec), closeClient, nil
}

// batchAuditor consumes the service's own topic as the online group and logs
// every completed batch of queued jobs.
func batchAuditor(cfg support.Config, jobs Online, logger *zerolog.Logger) (func(ctx context.Context) error, func(), error) {
	client, closeClient, err := kafka.ConsumerClient(kafka.Brokers(cfg.KafkaBrokers), kafka.Group(cfg.OnlineConsumerGroup), cfg.Topics()...)
	if err != nil {
		return nil, nil, err
	}

	audit := businesstx.NewProcessor("batch-audit", func(ctx context.Context, tx businesstx.Transaction) error {
		logger.Info().
			Str("transaction", tx.ID.String()).
			Int("jobs", len(tx.Events())).
			Msg("job batch committed")
		return nil
	})
	manager := businesstx.NewConsumerManager(jobs.Buffer, businesstx.WithConsumerLogger(logger))
	listener := businesstx.NewListener(jobs.DB, manager, audit)

	consumer := kafka.NewConsumer(client, jobs.Codec,
		kafka.WithRedeliveryInterval(cfg.RedeliveryInterval),
		kafka.WithConsumerLogger(logger),
	)

	run := func(ctx context.Context) error {
		return consumer.Run(ctx, func(ctx context.Context, record we.Record, ack restore.Acknowledgment) error {
			if err := listener.Handle(ctx, record); err != nil {
				return err
			}
			ack.Acknowledge()
			return nil
		})
	}

	return run, closeClient, nil
}

func runRestore(ctx context.Context, cfg support.Config, registry *prometheus.Registry, logger *zerolog.Logger) error {
	restoring, cleanup, err := RestoreJobs(ctx, pg.DatabaseURL(cfg.DatabaseURL), kafka.Brokers(cfg.KafkaBrokers))
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := restore.NewMetrics(registry)
	offsets := restore.NewOffsetSynchronizationManager(restoring.Offsets, cfg.OnlineConsumerGroup,
		restore.WithSyncInterval(cfg.OffsetSyncInterval),
		restore.WithOffsetLogger(logger),
		restore.WithOffsetMetrics(metrics),
	)
	dispatcher := restore.NewStrategyDispatcher(restoring.DB, job.RestoreStrategies(restoring.Store),
		restore.WithDispatcherLogger(logger),
		restore.WithDispatcherMetrics(metrics),
	)
	listener := restore.NewListener(offsets, dispatcher,
		restore.WithListenerLogger(logger),
		restore.WithListenerMetrics(metrics),
	)

	client, closeClient, err := kafka.ConsumerClient(kafka.Brokers(cfg.KafkaBrokers), kafka.Group(cfg.RestoreConsumerGroup), cfg.Topics()...)
	if err != nil {
		return err
	}
	defer closeClient()

	consumer := kafka.NewConsumer(client, restoring.Codec,
		kafka.WithRedeliveryInterval(cfg.RedeliveryInterval),
		kafka.WithConsumerLogger(logger),
	)

	router := chi.NewRouter()
	router.Use(wehttp.RequestLogger(logger))
	router.Mount("/admin", wehttp.NewAdminHandler(wehttp.WithGatherer(registry), wehttp.WithOffsets(offsets)))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return offsets.Run(ctx) })
	group.Go(func() error { return consumer.Run(ctx, listener.Listen) })
	group.Go(func() error { return serve(ctx, cfg.HTTPAddr, router, logger) })

	return group.Wait()
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *zerolog.Logger) error {
	server := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdown)
	}()

	logger.Info().Str("addr", addr).Msg("listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
