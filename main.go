package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"invoice-sync-service/internal/config"
	"invoice-sync-service/internal/consumer"
	"invoice-sync-service/internal/currency"
	"invoice-sync-service/internal/domain"
	"invoice-sync-service/internal/ebay"
	"invoice-sync-service/internal/events"
	"invoice-sync-service/internal/handler"
	"invoice-sync-service/internal/ing"
	"invoice-sync-service/internal/repository"
	"invoice-sync-service/internal/scheduler"
	"invoice-sync-service/internal/sender"
	"invoice-sync-service/internal/service"
	"invoice-sync-service/internal/validator"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stdout)

	if err := godotenv.Load(); err != nil {
		log.Warn("Could not load .env file.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	log.Info("Starting invoice sync service...")

	runMigrations(cfg)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()

	repo := repository.NewPostgresRepository(db)
	loc := cfg.Location()
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	tokens := ebay.NewTokenManager(httpClient, cfg.Ebay.APIURL, ebay.Credentials{
		ClientID:     cfg.Ebay.ClientID,
		ClientSecret: cfg.Ebay.ClientSecret,
		RefreshToken: cfg.Ebay.RefreshToken,
		Scopes:       cfg.Ebay.Scopes,
	})
	ebayClient := ebay.NewClient(httpClient, cfg.Ebay.APIURL, cfg.Ebay.OrdersPageSize)
	orderSync := service.NewOrderSyncService(tokens, ebayClient, repo, cfg.Ebay.OrderLookback)

	positions, err := ing.LoadPositionNames(cfg.Invoice.PositionTypesPath)
	if err != nil {
		log.WithError(err).Fatal("Could not load invoice position names")
	}
	rates := currency.NewResolver(httpClient, cfg.Currency.APIURL, cfg.Currency.MaxLookbackDays,
		domain.Currency(cfg.Currency.BaseCurrency), loc)
	builder := ing.NewBuilder(repo, rates, positions, ing.BuilderConfig{
		IssuePlace:  cfg.Invoice.IssuePlace,
		Description: cfg.Invoice.Description,
		BuyerEmail:  cfg.Invoice.BuyerEmail,
	}, loc)
	ingClient := ing.NewClient(httpClient, cfg.Invoice.APIURL, cfg.Invoice.APIKey)

	if !cfg.Mail.Enabled() {
		log.Warn("SMTP environment variables are not set. Invoice emails will fail.")
	} else if err := validator.ValidateEmail(cfg.Mail.To); err != nil {
		log.WithError(err).WithField("mail_to", cfg.Mail.To).Fatal("Invalid destination mailbox")
	}
	emailSender := sender.NewSMTPEmailSender(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
	notifications := service.NewNotificationService(ingClient, repo, emailSender, service.NotificationConfig{
		Recipient:   cfg.Mail.To,
		MaxAttempts: cfg.Mail.MaxAttempts,
		RetryDelay:  time.Second,
		Location:    loc,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	var publisher events.Publisher

	if cfg.Kafka.Enabled() {
		servers := strings.Trim(cfg.Kafka.BootstrapServers, "\"")
		log.WithField("kafka_servers", servers).Info("Connecting to Kafka")

		producer, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": servers})
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka producer")
		}
		kafkaPublisher := events.NewKafkaPublisher(producer, cfg.Kafka.InvoicesTopic)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher

		kc, err := kafka.NewConsumer(&kafka.ConfigMap{
			"bootstrap.servers":  servers,
			"group.id":           cfg.Kafka.GroupID,
			"auto.offset.reset":  "earliest",
			"enable.auto.commit": false,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		invoiceConsumer, err := consumer.NewKafkaConsumer(kc, cfg.Kafka.InvoicesTopic, handler.NewInvoicesCreatedHandler(notifications))
		if err != nil {
			log.WithError(err).Fatal("Failed to subscribe to topic")
		}
		defer invoiceConsumer.Close()

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := invoiceConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("Kafka consumer stopped")
			}
		}()
	} else {
		bus := events.NewChannelBus(16)
		defer bus.Close()
		publisher = bus

		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Start(ctx, notifications)
		}()
	}

	invoiceSync := service.NewInvoiceSyncService(repo, builder, ingClient, publisher)

	var locker scheduler.Locker
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("Could not connect to Redis")
		}
		locker = scheduler.NewRedisLocker(rdb, cfg.Redis.LockTTL)
		log.WithField("redis_addr", cfg.Redis.Addr).Info("Using Redis job lock")
	}

	runner := scheduler.NewRunner(locker,
		scheduler.Job{Name: "order-sync", Interval: cfg.SyncInterval, Run: orderSync.Job},
		scheduler.Job{Name: "invoice-sync", Interval: cfg.SyncInterval, Run: invoiceSync.Job},
	)
	runner.Start(ctx)

	<-ctx.Done()
	log.Info("Caught signal, terminating")
	runner.Stop()
	wg.Wait()
}

func runMigrations(cfg config.Config) {
	// Separate migrations table so the service can share a database with others.
	migrationDBURL := cfg.DatabaseURL
	if strings.Contains(migrationDBURL, "?") {
		migrationDBURL += "&x-migrations-table=invoice_sync_schema_migrations"
	} else {
		migrationDBURL += "?x-migrations-table=invoice_sync_schema_migrations"
	}

	m, err := migrate.New(cfg.MigrationsPath, migrationDBURL)
	if err != nil {
		log.WithError(err).Fatal("Could not create migration instance")
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.WithError(err).Fatal("Could not apply migration")
	}
	log.Info("Database migration successfully applied")
}
