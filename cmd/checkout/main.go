package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"checkout/internal/app/inventory"
	"checkout/internal/app/orders"
	"checkout/internal/app/payments"
	"checkout/internal/config"
	"checkout/internal/infrastructure/cinetpay"
	"checkout/internal/infrastructure/database"
	"checkout/internal/infrastructure/kafka"
	"checkout/internal/metrics"
	"checkout/internal/outbox"
	"checkout/internal/repository/notifications_repo"
	"checkout/internal/repository/orders_repo"
	"checkout/internal/repository/outbox_repo"
	"checkout/internal/repository/payments_repo"
	"checkout/internal/repository/products_repo"
	"checkout/internal/worker"
)

func main() {
	envFile := flag.String("env", ".env", "optional env file loaded before reading the environment")
	flag.Parse()

	// registered first so it runs after every other deferred cleanup
	code := 0
	defer func() {
		if code != 0 {
			os.Exit(code)
		}
	}()

	cfg, err := config.LoadConfig(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()
	appLogger.Info("Checkout Service starting...")

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	appLogger.Info("Waiting for database to be available...")
	dbConfig := database.DBConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.Name,
		SSLMode:  cfg.DBConfig.SSLMode,
	}

	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(dbConfig)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn("Failed to connect to database, retrying",
			zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries), zap.Duration("retry_in", retryDelay), zap.Error(err))
		time.Sleep(retryDelay)
	}

	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...")
	if err := database.RunMigrations(cfg.GetDBMigrationConnectionString(), appLogger); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	brokers := cfg.GetKafkaBrokers()
	topicCtx, cancelTopics := context.WithTimeout(context.Background(), 30*time.Second)
	err = kafka.EnsureTopics(topicCtx, brokers[0], []kafka.TopicSpec{
		{Name: cfg.KafkaOrderEventsTopic, Partitions: 3, ReplicationFactor: 1},
		{Name: cfg.KafkaPaymentEventsTopic, Partitions: 3, ReplicationFactor: 1},
	}, appLogger)
	cancelTopics()
	if err != nil {
		// the producer retries on its own once the cluster is reachable
		appLogger.Warn("Could not ensure Kafka topics", zap.Error(err))
	}

	kafkaProducer, err := kafka.NewProducer(brokers, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	topics := outbox.Topics{
		OrderEvents:   cfg.KafkaOrderEventsTopic,
		PaymentEvents: cfg.KafkaPaymentEventsTopic,
	}

	transactor := database.NewTransactor(db, appLogger.With(zap.String("component", "Transactor")))
	productRepository := products_repo.NewProductRepository()
	orderRepository := orders_repo.NewOrderRepository()
	paymentRepository := payments_repo.NewPaymentRepository()
	notificationRepository := notifications_repo.NewNotificationRepository()
	outboxRepository := outbox_repo.NewOutboxRepository()

	ledger := inventory.NewLedger(productRepository, appMetrics, appLogger.With(zap.String("component", "InventoryLedger")))

	orderService := orders.NewOrderService(
		db,
		transactor,
		ledger,
		productRepository,
		orderRepository,
		paymentRepository,
		outboxRepository,
		topics,
		orders.Settings{
			ShippingCost:      cfg.Shop.ShippingCost,
			OrderNumberPrefix: cfg.Shop.OrderNumberPrefix,
			MaxLineQuantity:   cfg.Shop.MaxLineQuantity,
		},
		appMetrics,
		appLogger.With(zap.String("component", "OrderService")),
	)

	gateway := cinetpay.NewClient(cinetpay.Config{
		BaseURL:         cfg.CinetPay.BaseURL,
		APIKey:          cfg.CinetPay.APIKey,
		SiteID:          cfg.CinetPay.SiteID,
		NotifyURL:       cfg.CinetPay.NotifyURL,
		ReturnURL:       cfg.CinetPay.ReturnURL,
		CancelURL:       cfg.CinetPay.CancelURL,
		Lang:            cfg.CinetPay.Lang,
		Channels:        cfg.CinetPay.Channels,
		CustomerCountry: cfg.CinetPay.CustomerCountry,
		Timeout:         cfg.CinetPay.Timeout,
	}, appMetrics, appLogger.With(zap.String("component", "CinetPayClient")))

	paymentService := payments.NewPaymentService(
		db,
		transactor,
		gateway,
		orderRepository,
		paymentRepository,
		notificationRepository,
		outboxRepository,
		topics,
		payments.Settings{
			Currency:          cfg.Shop.Currency,
			TransactionPrefix: cfg.Shop.TransactionPrefix,
		},
		appMetrics,
		appLogger.With(zap.String("component", "PaymentService")),
	)

	outboxProcessor := outbox.NewProcessor(
		transactor,
		outboxRepository,
		kafkaProducer,
		cfg.OutboxPollInterval,
		cfg.OutboxPollTimeout,
		cfg.OutboxBatchSize,
		appMetrics,
		appLogger.With(zap.String("component", "OutboxProcessor")),
	)

	expiry := worker.NewReservationExpiry(
		orderService,
		cfg.Shop.ReservationTTL,
		cfg.Shop.ExpirySweepEvery,
		appLogger.With(zap.String("component", "ReservationExpiry")),
	)

	serverAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      newRouter(cfg.CORSAllowedOrigins, orderService, paymentService, appMetrics, registry, appLogger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		appLogger.Info("Checkout Service listening", zap.String("address", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return outboxProcessor.Start(gCtx)
	})

	g.Go(func() error {
		return expiry.Start(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutting down Checkout Service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if code = exitCode(err); code != 0 {
		appLogger.Error("Checkout Service stopped with error", zap.Error(err))
		return
	}
	appLogger.Info("Checkout Service stopped.")
}

// exitCode treats a cancelled context as a clean shutdown.
func exitCode(err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	return 1
}
