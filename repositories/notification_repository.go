package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
)

// NotificationRepository posts session lifecycle notifications to the
// operator's webhook. Delivery is best effort: callers log failures and move
// on, a gate never stays closed because a webhook is down.
type NotificationRepository struct {
	client     *http.Client
	webhookUrl string
}

func NewNotificationRepository(client *http.Client, webhookUrl string) NotificationRepository {
	return NotificationRepository{
		client:     client,
		webhookUrl: webhookUrl,
	}
}

func (repo NotificationRepository) Notify(ctx context.Context, eventType string, payload any) error {
	if repo.webhookUrl == "" {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"type": eventType,
		"data": payload,
	})
	if err != nil {
		return errors.Wrap(err, "can't encode notification")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, repo.webhookUrl, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := repo.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "notification delivery failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Newf("notification endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
