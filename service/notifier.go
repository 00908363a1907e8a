package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/henrymedina447/sbs-suptech-etl-v2/config"
	"github.com/henrymedina447/sbs-suptech-etl-v2/model"
)

// WebhookNotifier posts notification events to a downstream endpoint.
type WebhookNotifier struct {
	config     *config.NotificationConfig
	httpClient *http.Client
}

// NotificationPayload is the body sent to the webhook
type NotificationPayload struct {
	Events []model.NotificationEvent `json:"events"`
}

func NewWebhookNotifier(cfg *config.NotificationConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Notify sends all events in one request.
func (n *WebhookNotifier) Notify(ctx context.Context, events []model.NotificationEvent) error {
	jsonData, err := json.Marshal(NotificationPayload{Events: events})
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.config.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.config.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.config.APIToken)
	}

	return doJSON(n.httpClient, req, "notify", nil)
}
