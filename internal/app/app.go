package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/orders/internal/health"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/orders/internal/version"
)

const shutdownTimeout = 5 * time.Second

// Run собирает сервис заказов и блокируется до отмены контекста
// или падения HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	// Kafka опционален: без брокеров события жизненного цикла не публикуются
	// и outbox не подключается.
	var kafkaProducer *kafka.Producer
	if cfg.KafkaBrokers != "" {
		brokers := strings.Split(cfg.KafkaBrokers, ",")
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("kafka недоступна, события заказов публиковаться не будут")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")
		}
	}
	defer func() {
		if kafkaProducer == nil {
			return
		}
		if err := kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}()

	outboxRepo := deps.Outbox
	if kafkaProducer == nil {
		outboxRepo = nil
	}

	svc := orders.NewServiceWithOutbox(
		deps.Orders,
		deps.Items,
		deps.Customers,
		outboxRepo,
		logger.WithField("component", "order-service"),
	)

	var workerWG sync.WaitGroup
	if kafkaProducer != nil {
		worker := outbox.NewWorker(
			deps.Outbox,
			kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicOrderEvents),
			kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue),
			logger.WithField("component", "outbox-worker"),
			outbox.Config{
				PollInterval: cfg.OutboxPollInterval,
				BatchSize:    cfg.OutboxBatchSize,
				MaxAttempts:  cfg.OutboxMaxAttempts,
			},
		)
		workerWG.Add(1)
		go func() {
			defer workerWG.Done()
			worker.Run(ctx)
		}()
	}

	v, _, _ := version.Info()
	healthHandler := healthcheck.NewHandler(v)
	healthHandler.RegisterChecker("storage", deps.StorageChecker)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(svc, logger.WithField("component", "http-api")),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		workerWG.Wait()
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		workerWG.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
