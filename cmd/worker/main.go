package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/flowdose/invite-dispatcher/internal/api"
	"github.com/flowdose/invite-dispatcher/internal/config"
	"github.com/flowdose/invite-dispatcher/internal/container"
	"github.com/flowdose/invite-dispatcher/internal/domain"
	"github.com/flowdose/invite-dispatcher/internal/esp"
	"github.com/flowdose/invite-dispatcher/internal/eventbus"
	"github.com/flowdose/invite-dispatcher/internal/mailing"
	"github.com/flowdose/invite-dispatcher/internal/pkg/logger"
	"github.com/flowdose/invite-dispatcher/internal/repository/postgres"
	"github.com/flowdose/invite-dispatcher/internal/service/invite"
	"github.com/flowdose/invite-dispatcher/internal/service/sending"
	"github.com/flowdose/invite-dispatcher/internal/storage"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the worker config file")
	flag.Parse()

	log.Printf("Starting FlowDose invite worker %s...", version)

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.Redact())
	lg := logger.New(os.Stderr, logger.ParseLevel(cfg.Logging.Level)).With("service", "invite-worker")
	lg.SetRedactPII(cfg.Logging.Redact())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Invite record service
	var (
		db      *sql.DB
		records invite.Repository
		awsCfg  aws.Config
		awsOnce bool
	)
	loadAWS := func() aws.Config {
		if !awsOnce {
			awsCfg, err = storage.LoadAWSConfig(ctx, cfg.AWS.Region, cfg.AWS.Profile)
			if err != nil {
				log.Fatalf("Failed to load AWS config: %v", err)
			}
			awsOnce = true
		}
		return awsCfg
	}

	switch cfg.Database.Driver {
	case "dynamodb":
		records = storage.NewInviteTableFromConfig(loadAWS(), cfg.Database.InviteTable, cfg.Database.KeyAttribute)
		log.Printf("Invite records: DynamoDB table %s (region %s)", cfg.Database.InviteTable, cfg.AWS.Region)
	default:
		db = openDatabase(ctx, cfg.Database)
		defer db.Close()
		records = postgres.NewInviteRepo(db, cfg.Database.InviteTable)
		log.Printf("Invite records: Postgres table %s", cfg.Database.InviteTable)
	}

	sender, err := newSender(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s sender: %v", cfg.Mail.Provider, err)
	}
	log.Printf("Mail provider: %s", cfg.Mail.Provider)

	var renderer *mailing.InviteRenderer
	if storage.IsS3URL(cfg.Invite.TemplatePath) {
		body, err := storage.NewTemplateStoreFromConfig(loadAWS()).ReadTemplate(ctx, cfg.Invite.TemplatePath)
		if err != nil {
			log.Fatalf("Failed to fetch invite template: %v", err)
		}
		renderer, err = mailing.NewInviteRenderer(mailing.NewTemplateService(), body)
		if err != nil {
			log.Fatalf("Failed to load invite template: %v", err)
		}
	} else {
		renderer, err = mailing.LoadInviteRenderer(mailing.NewTemplateService(), cfg.Invite.TemplatePath)
		if err != nil {
			log.Fatalf("Failed to load invite template: %v", err)
		}
	}

	registry := container.New()
	registry.Register(container.LoggerService, lg)
	registry.Register(container.InviteService, records)
	registry.Register(container.MailerService, sender)

	handler := invite.NewHandler(invite.Options{
		SubscriberID: cfg.Worker.SubscriberID,
		EventName:    cfg.Events.Name,
		Shapes:       invite.NewShapes(cfg.Events.IDPaths, cfg.Events.NamePaths, cfg.Events.ContainerKeys),
		Fields:       invite.FieldSynonyms{Email: cfg.Fields.Email, Token: cfg.Fields.Token},
		Settings:     cfg.MailSettings,
		Renderer:     renderer,
		Fallback:     logger.Default(),
	})

	// Event transport
	var (
		bus         eventbus.Subscriber
		redisClient *redis.Client
		natsState   api.ConnState
	)
	switch cfg.Worker.Transport {
	case "nats":
		nb, err := eventbus.DialNATS(eventbus.NATSConfig{
			URL:           cfg.NATS.URL,
			Name:          cfg.NATS.Name,
			MaxReconnects: cfg.NATS.MaxReconnects,
			ReconnectWait: cfg.NATS.ReconnectWait(),
			Timeout:       cfg.NATS.Timeout(),
			Username:      cfg.NATS.Username,
			Password:      cfg.NATS.Password,
			Token:         cfg.NATS.Token,
		})
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		bus, natsState = nb, nb
		log.Printf("NATS connected: %s", cfg.NATS.URL)
	default:
		redisClient, err = eventbus.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		bus = eventbus.NewRedisBus(redisClient)
		log.Printf("Redis connected: %s", cfg.Redis.URL)
	}

	log.Printf("Loading subscribers: %s -> %s (%s)", cfg.Events.Name, cfg.Worker.SubscriberID, cfg.Worker.Transport)
	subErr := make(chan error, 1)
	go func() {
		subErr <- bus.Subscribe(ctx, cfg.Events.Name, cfg.Worker.SubscriberID, func(ctx context.Context, d eventbus.Delivery) {
			handler.Handle(ctx, domain.RawEvent{Name: d.Subject, Body: d.Data}, registry)
		})
	}()

	// Ops server
	api.SetVersion(version)
	server := api.NewServer(api.NewHealthChecker(db, redisClient, natsState))
	go func() {
		log.Printf("Ops server listening on %s", cfg.Server.Addr())
		if err := server.ListenAndServe(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Ops server error: %v", err)
		}
	}()

	log.Println("Worker running...")

	// Wait for interrupt signal or a dead subscription
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-subErr:
		log.Printf("Subscription ended: %v", err)
	}

	log.Println("Shutting down worker...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Ops server shutdown error: %v", err)
	}
	if err := bus.Wait(shutdownCtx); err != nil {
		log.Printf("Timed out waiting for in-flight invites: %v", err)
	}
	if err := bus.Close(); err != nil {
		log.Printf("Event bus close error: %v", err)
	}

	log.Println("Worker stopped")
}

func newSender(ctx context.Context, cfg *config.Config) (sending.Sender, error) {
	switch cfg.Mail.Provider {
	case "ses":
		accessKey, secretKey := cfg.SESCredentials()
		return esp.NewSESSender(ctx, accessKey, secretKey, cfg.Mail.SES.Region)
	default:
		return esp.NewResendSender(cfg.Mail.ResendBaseURL, func() string {
			return cfg.MailSettings().APIKey
		}, nil, cfg.Mail.Timeout()), nil
	}
}

func openDatabase(ctx context.Context, c config.DatabaseConfig) *sql.DB {
	if c.URL == "" {
		log.Fatalf("DATABASE_URL is not set; the invite record service needs it")
	}
	db, err := sql.Open("postgres", c.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(3)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		log.Printf("Warning: database ping failed: %v (invites will fail until it recovers)", err)
	} else {
		log.Println("Connected to database")
	}
	return db
}
