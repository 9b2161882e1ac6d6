package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/getAlby/evmhub.go/common"
)

var webhookClient = &http.Client{Timeout: 10 * time.Second}

func (svc *InvoiceService) StartWebhookSubscription(ctx context.Context, url string) {
	svc.Logger.Infof("Starting webhook subscription with webhook url %s", url)
	created, updated, unsubscribe, err := svc.SubscribeInvoiceEvents()
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-created:
			svc.postToWebhook(ctx, url, event)
		case event := <-updated:
			svc.postToWebhook(ctx, url, event)
		}
	}
}

func (svc *InvoiceService) postToWebhook(ctx context.Context, url string, event common.InvoiceEvent) {
	payload := new(bytes.Buffer)
	err := json.NewEncoder(payload).Encode(event)
	if err != nil {
		svc.Logger.Error(err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, payload)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := webhookClient.Do(req)
	if err != nil {
		svc.Logger.Error(err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			svc.Logger.Error(err)
		}
		svc.Logger.Errorf("Webhook status code was %d, body: %s", resp.StatusCode, msg)
	}
}
