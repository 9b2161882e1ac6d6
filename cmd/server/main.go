package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/getAlby/evmhub.go/chain"
	"github.com/getAlby/evmhub.go/db"
	"github.com/getAlby/evmhub.go/db/migrations"
	"github.com/getAlby/evmhub.go/lib"
	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/getAlby/evmhub.go/lib/tokens"
	"github.com/getAlby/evmhub.go/lib/transport"
	"github.com/getAlby/evmhub.go/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun/migrate"
	ddEcho "gopkg.in/DataDog/dd-trace-go.v1/contrib/labstack/echo.v4"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func main() {

	c := &service.Config{}

	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	if err != nil {
		log.Fatalf("Error loading environment variables: %v", err)
	}

	// Setup logging to STDOUT or a configured log file
	logger := lib.Logger(c.LogFilePath)

	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	defer cancelStartup()
	if err = db.Ping(startupCtx, dbConn, 10*time.Second); err != nil {
		logger.Fatalf("Error connecting to database: %v", err)
	}
	migrator := migrate.NewMigrator(dbConn, migrations.Migrations)
	err = migrator.Init(startupCtx)
	if err != nil {
		logger.Fatalf("Error initializing db migrator: %v", err)
	}
	group, err := migrator.Migrate(startupCtx)
	if err != nil {
		logger.Fatalf("Error migrating database: %v", err)
	}
	if !group.IsZero() {
		logger.Infof("Migrated database to %s", group)
	}

	// sentry init needs to happen before the echo middlewares are added
	if c.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			IgnoreErrors:     []string{"401"},
			EnableTracing:    c.SentryTracesSampleRate > 0,
			TracesSampleRate: c.SentryTracesSampleRate,
		}); err != nil {
			logger.Errorf("sentry init error: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	chainCfg, err := chain.LoadConfig()
	if err != nil {
		logger.Fatalf("Error loading chain config: %v", err)
	}
	chainClient, err := chain.Dial(startupCtx, chainCfg, logger)
	if err != nil {
		logger.Fatalf("Error connecting to %s: %v", chainCfg.RPCUrl, err)
	}
	defer chainClient.Close()
	chainID, err := chainClient.ChainID(startupCtx)
	if err != nil {
		logger.Fatalf("Error reading chain id: %v", err)
	}
	logger.Infof("Connected to chain %s", chainID)

	// If no RABBITMQ_URI was provided we will not attempt to create a client
	var rabbitmqClient rabbitmq.Client
	if c.RabbitMQUri != "" {
		amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri, rabbitmq.WithAmqpLogger(logger))
		if err != nil {
			logger.Fatal(err)
		}

		rabbitmqClient, err = rabbitmq.NewClient(amqpClient,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithInvoiceExchange(c.RabbitMQInvoiceExchange),
		)
		if err != nil {
			logger.Fatal(err)
		}

		// close the connection gently at the end of the runtime
		defer rabbitmqClient.Close()
	}

	svc := service.NewInvoiceService(c, service.NewBunInvoiceStore(dbConn, logger), chainClient, logger)
	if c.EnablePrometheus {
		svc.Metrics = service.NewMetrics(prometheus.DefaultRegisterer)
	}

	//init echo server
	e := transport.InitEcho(c, logger)
	//if Datadog is configured, add datadog middleware
	if c.DatadogAgentUrl != "" {
		tracer.Start(tracer.WithAgentAddr(c.DatadogAgentUrl))
		defer tracer.Stop()
		e.Use(ddEcho.Middleware(ddEcho.WithServiceName("evmhub.go")))
	}

	//Start Prometheus server if necessary
	var echoPrometheus *echo.Echo
	if c.EnablePrometheus {
		echoPrometheus = transport.StartPrometheusEcho(logger, c, e)
	}

	logMw := transport.CreateLoggingMiddleware(logger)
	// strict rate limit for requests that create invoices or touch the chain
	strictRateLimitMiddleware := transport.CreateRateLimitMiddleware(c.StrictRateLimit, c.BurstRateLimit)
	transport.RegisterEndpoints(svc, dbConn, e, strictRateLimitMiddleware, tokens.AdminTokenMiddleware(c.AdminToken), logMw)

	var backgroundWg sync.WaitGroup
	backGroundCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backgroundWg.Add(1)
	go func() {
		defer backgroundWg.Done()
		err := svc.StartReconciliationLoop(backGroundCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			sentry.CaptureException(err)
			svc.Logger.Error(err)
		}
		svc.Logger.Info("Reconciliation routine done")
	}()

	//Start webhook subscription
	if c.WebhookUrl != "" {
		backgroundWg.Add(1)
		go func() {
			defer backgroundWg.Done()
			svc.StartWebhookSubscription(backGroundCtx, c.WebhookUrl)
			svc.Logger.Info("Webhook routine done")
		}()
	}
	//Start rabbit publisher
	if rabbitmqClient != nil {
		backgroundWg.Add(1)
		go func() {
			defer backgroundWg.Done()
			err := rabbitmqClient.StartPublishInvoices(backGroundCtx,
				svc.SubscribeInvoiceEvents,
				svc.EncodeInvoiceEvent,
			)
			if err != nil && !errors.Is(err, context.Canceled) {
				svc.Logger.Error(err)
				sentry.CaptureException(err)
			}
			svc.Logger.Info("Rabbit invoice publisher done")
		}()
	}

	// Start server
	go func() {
		if err := e.Start(fmt.Sprintf(":%v", c.Port)); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-backGroundCtx.Done()
	svc.StopReconciliationLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
	if echoPrometheus != nil {
		if err := echoPrometheus.Shutdown(ctx); err != nil {
			e.Logger.Fatal(err)
		}
	}
	//Wait for graceful shutdown of background routines
	backgroundWg.Wait()
	svc.Logger.Info("evmhub exiting gracefully. Goodbye.")
}
