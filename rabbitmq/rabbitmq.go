package rabbitmq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/getAlby/evmhub.go/common"
	"github.com/getsentry/sentry-go"
	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/ziflex/lecho/v3"
)

// bufPool reuses encoding buffers between published events.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

const (
	contentTypeJSON = "application/json"
)

type (
	SubscribeToInvoicesFunc = func() (created chan common.InvoiceEvent, updated chan common.InvoiceEvent, unsubscribe func(), err error)
	EncodeInvoiceEventFunc  = func(ctx context.Context, w io.Writer, event common.InvoiceEvent) error
)

type Client interface {
	// StartPublishInvoices blocks until ctx is done and returns context.Canceled.
	StartPublishInvoices(context.Context, SubscribeToInvoicesFunc, EncodeInvoiceEventFunc) error
	// Close will close all connections to rabbitmq
	Close() error
}

type DefaultClient struct {
	amqpClient AMQPClient

	logger *lecho.Logger

	invoiceExchange string
}

type ClientOption = func(client *DefaultClient)

func WithInvoiceExchange(exchange string) ClientOption {
	return func(client *DefaultClient) {
		client.invoiceExchange = exchange
	}
}

func WithLogger(logger *lecho.Logger) ClientOption {
	return func(client *DefaultClient) {
		client.logger = logger
	}
}

func NewClient(amqpClient AMQPClient, options ...ClientOption) (Client, error) {
	client := &DefaultClient{
		amqpClient: amqpClient,

		logger: lecho.New(
			os.Stdout,
			lecho.WithLevel(log.DEBUG),
			lecho.WithTimestamp(),
		),

		invoiceExchange: "evmhub_invoice",
	}

	for _, opt := range options {
		opt(client)
	}

	return client, nil
}

func (client *DefaultClient) Close() error { return client.amqpClient.Close() }

// RoutingKey is invoice.<state>, e.g. invoice.complete.
func RoutingKey(event common.InvoiceEvent) string {
	return fmt.Sprintf("invoice.%s", event.State)
}

func (client *DefaultClient) StartPublishInvoices(ctx context.Context, invoicesSubscribeFunc SubscribeToInvoicesFunc, payloadFunc EncodeInvoiceEventFunc) error {
	err := client.amqpClient.ExchangeDeclare(
		client.invoiceExchange,
		// topic is a type of exchange that allows routing messages to different queue's bases on a routing key
		"topic",
		// Durable and Non-Auto-Deleted exchanges will survive server restarts and remain
		// declared when there are no remaining bindings.
		true,
		false,
		// Non-Internal exchange's accept direct publishing
		false,
		// Nowait: We set this to false as we want to wait for a server response
		// to check whether the exchange was created succesfully
		false,
		nil,
	)
	if err != nil {
		return err
	}

	client.logger.Info("Starting rabbitmq publisher")

	created, updated, unsubscribe, err := invoicesSubscribeFunc()
	if err != nil {
		return err
	}
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return context.Canceled
		case event := <-created:
			if err := client.publishToInvoiceExchange(ctx, event, payloadFunc); err != nil {
				captureErr(client.logger, err)
			}
		case event := <-updated:
			if err := client.publishToInvoiceExchange(ctx, event, payloadFunc); err != nil {
				captureErr(client.logger, err)
			}
		}
	}
}

func (client *DefaultClient) publishToInvoiceExchange(ctx context.Context, event common.InvoiceEvent, payloadFunc EncodeInvoiceEventFunc) error {
	payload := bufPool.Get().(*bytes.Buffer)
	payload.Reset()
	defer bufPool.Put(payload)

	if err := payloadFunc(ctx, payload, event); err != nil {
		return err
	}

	key := RoutingKey(event)
	err := client.amqpClient.PublishWithContext(ctx,
		client.invoiceExchange,
		key,
		false,
		false,
		amqp.Publishing{
			ContentType: contentTypeJSON,
			Body:        payload.Bytes(),
		},
	)
	if err != nil {
		return err
	}

	client.logger.Debugf("Successfully published invoice %s with key %s", event.Address, key)

	return nil
}

func captureErr(logger *lecho.Logger, err error) {
	logger.Error(err)
	sentry.CaptureException(err)
}
