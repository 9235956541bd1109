package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"course-marketplace/internal/config"
	"course-marketplace/internal/database"
	"course-marketplace/internal/handlers"
	"course-marketplace/internal/kafka"
	"course-marketplace/internal/logger"
	"course-marketplace/internal/models"
	"course-marketplace/internal/notify"
	"course-marketplace/internal/redis"
	"course-marketplace/internal/services"
)

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *database.DB
	redis      *redis.Client
	producer   *kafka.Producer
	consumer   *kafka.Consumer
	dispatcher *notify.Dispatcher
	server     *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting course marketplace server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	app.shutdown(ctx)
	app.log.Info("Server exited")
}

// shutdown останавливает приём запросов, дожидается очереди уведомлений и закрывает соединения
func (a *application) shutdown(ctx context.Context) {
	if err := a.server.Shutdown(ctx); err != nil {
		a.log.WithError(err).Error("Server forced to shutdown")
	}
	if err := a.dispatcher.Stop(ctx); err != nil {
		a.log.WithError(err).WithField("pending", a.dispatcher.Pending()).Warn("Notification queue not drained")
	}
	_ = a.consumer.Stop()
	_ = a.producer.Close()
	_ = a.redis.Close()
	_ = a.db.Close()
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	closeAll := func() {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
	}

	payments, err := services.NewPaymentProvider(&cfg.Payment)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("payment provider: %w", err)
	}

	deliverer := newDeliverer(&cfg.Notify, log)
	sink, err := newNotificationSink(cfg.Notify.Transport, producer, deliverer)
	if err != nil {
		closeAll()
		return nil, err
	}
	dispatcher := notify.NewDispatcher(sink, &cfg.Notify, log)

	siteName := cfg.Notify.SiteName
	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLHours)*time.Hour)
	authService := services.NewAuthService(db, log, tokens, &cfg.Auth)
	otpService := services.NewOTPService(redisClient, authService, dispatcher, log, &cfg.OTP, siteName)
	statsService := services.NewStatsService(db, redisClient, log, &cfg.Stats)
	courseService := services.NewCourseService(db, log, statsService)
	promoService := services.NewPromoService(db, log)
	orderService := services.NewOrderService(db, log, promoService, payments, dispatcher, &cfg.Orders, siteName)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	registerEventHandlers(consumer, deliverer, statsService, log)
	if err := consumer.Start(); err != nil {
		closeAll()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}
	dispatcher.Start(context.Background())

	router := &handlers.Router{
		Orders:     handlers.NewOrderHandler(orderService, producer, log),
		Promos:     handlers.NewPromoHandler(promoService, log),
		Auth:       handlers.NewAuthHandler(authService, otpService, &cfg.Auth, log),
		Courses:    handlers.NewCourseHandler(courseService, redisClient, log),
		Stats:      handlers.NewStatsHandler(statsService),
		Health:     handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck),
		RateLimit:  handlers.NewRateLimitHandler(rateLimiter, log),
		Sessions:   authService,
		Limiter:    rateLimiter,
		CookieName: cfg.Auth.CookieName,
		Timeout:    time.Duration(cfg.Server.WriteTimeout) * time.Second,
		Log:        log,
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:        cfg,
		log:        log,
		db:         db,
		redis:      redisClient,
		producer:   producer,
		consumer:   consumer,
		dispatcher: dispatcher,
		server:     server,
	}, nil
}

// newDeliverer собирает доставку по настроенным каналам
func newDeliverer(cfg *config.NotifyConfig, log *logger.Logger) *notify.Deliverer {
	var mailer notify.Mailer
	if m := notify.NewSMTPMailer(&cfg.SMTP); m != nil {
		mailer = m
	} else {
		log.Warn("SMTP is not configured, email notifications are disabled")
	}

	var sms notify.SMSSender
	if g := notify.NewSMSGateway(&cfg.SMS, time.Duration(cfg.SendTimeoutSeconds)*time.Second); g != nil {
		sms = g
	} else {
		log.Warn("SMS gateway is not configured, SMS notifications are disabled")
	}

	return notify.NewDeliverer(mailer, sms, log)
}

// newNotificationSink выбирает транспорт уведомлений: kafka или direct
func newNotificationSink(transport string, producer notify.Publisher, deliverer *notify.Deliverer) (notify.Sink, error) {
	switch strings.ToLower(transport) {
	case "", "kafka":
		return notify.KafkaSink(producer), nil
	case "direct":
		return deliverer, nil
	default:
		return nil, fmt.Errorf("unknown notify transport %q", transport)
	}
}

// registerEventHandlers регистрирует обработчики событий Kafka
func registerEventHandlers(consumer *kafka.Consumer, deliverer *notify.Deliverer, stats *services.StatsService, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeNotificationRequested, deliverer.HandleEvent)
	consumer.RegisterHandler(models.EventTypeOrderCreated, stats.HandleOrderEvent)
	consumer.RegisterHandler(models.EventTypeOrderStatusChanged, stats.HandleOrderEvent)
	log.WithField("handlers", consumer.HandlerCount()).Info("Kafka event handlers registered")
}
