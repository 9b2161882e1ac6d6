package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/getAlby/evmhub.go/chain"
	"github.com/getAlby/evmhub.go/common"
	"github.com/getAlby/evmhub.go/db"
	"github.com/getAlby/evmhub.go/lib"
	"github.com/getAlby/evmhub.go/lib/service"
	"github.com/getAlby/evmhub.go/rabbitmq"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Re-emits the current state of stored invoices to the rabbitmq invoice exchange,
// e.g. after a consumer lost messages.
// STATE selects invoices by state code, DRY_RUN=true only logs.
func main() {

	c := &service.Config{}
	// Load configruation from environment variables
	err := godotenv.Load(".env")
	if err != nil {
		fmt.Println("Failed to load .env file")
	}
	err = envconfig.Process("", c)
	logger := lib.Logger(c.LogFilePath)
	if err != nil {
		logger.Fatalf("Error loading environment variables: %v", err)
	}
	stateCode, err := loadStateFromEnv()
	if err != nil {
		logger.Fatalf("Could not load STATE from env %v", err)
	}
	// Open a DB connection based on the configured DATABASE_URI
	dbConn, err := db.Open(c)
	if err != nil {
		logger.Fatalf("Error initializing db connection: %v", err)
	}
	defer dbConn.Close()

	amqpClient, err := rabbitmq.DialAMQP(c.RabbitMQUri, rabbitmq.WithAmqpLogger(logger))
	if err != nil {
		logger.Fatal(err)
	}
	rabbitmqClient, err := rabbitmq.NewClient(amqpClient,
		rabbitmq.WithLogger(logger),
		rabbitmq.WithInvoiceExchange(c.RabbitMQInvoiceExchange),
	)
	if err != nil {
		logger.Fatal(err)
	}
	// close the connection gently at the end of the runtime
	defer rabbitmqClient.Close()

	// no chain access is needed to read and publish
	var chainClient chain.Client
	svc := service.NewInvoiceService(c, service.NewBunInvoiceStore(dbConn, logger), chainClient, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	invoices, err := svc.GetByState(ctx, stateCode)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infof("Found %d invoices", len(invoices))

	published := make(chan struct{})
	go func() {
		defer close(published)
		err := rabbitmqClient.StartPublishInvoices(ctx,
			svc.SubscribeInvoiceEvents,
			svc.EncodeInvoiceEvent,
		)
		if err != nil && err != context.Canceled {
			logger.Error(err)
			sentry.CaptureException(err)
		}
		logger.Info("Rabbit invoice publisher done")
	}()

	dryRun := os.Getenv("DRY_RUN") == "true"
	for svc.InvoicePubSub.SubscriberCount(common.EventInvoiceUpdated) == 0 && !dryRun {
		time.Sleep(10 * time.Millisecond)
	}
	for _, inv := range invoices {
		logger.Infof("Publishing invoice %s in state %s", inv.Address.Hex(), inv.State)
		if dryRun {
			continue
		}
		svc.PublishInvoice(inv)
		// the subscription buffer is bounded
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(time.Second)
	cancel()
	<-published
	logger.Infof("Published %d invoices", len(invoices))
}

func loadStateFromEnv() (uint32, error) {
	code, err := strconv.ParseUint(os.Getenv("STATE"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(code), nil
}
