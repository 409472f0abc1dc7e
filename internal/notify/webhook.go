package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mayurbt12/reminder-service/internal/circuitbreaker"
)

// WebhookNotifier posts notifications to a configured endpoint as JSON,
// signed with HMAC-SHA256 so the receiver can verify origin. A circuit
// breaker keyed by destination sheds deliveries to endpoints that keep
// failing.
type WebhookNotifier struct {
	client  *http.Client
	url     string
	secret  string
	breaker *circuitbreaker.CircuitBreaker
}

func NewWebhookNotifier(url, secret string, breaker *circuitbreaker.CircuitBreaker) *WebhookNotifier {
	return &WebhookNotifier{
		client:  &http.Client{},
		url:     url,
		secret:  secret,
		breaker: breaker,
	}
}

// Notify posts the notification payload with HMAC signature.
// Headers: X-Reminder-ID, X-Reminder-Destination, X-Reminder-Signature
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	if w.breaker != nil {
		if err := w.breaker.Allow(n.DestinationID); err != nil {
			return fmt.Errorf("destination %s: %w", n.DestinationID, err)
		}
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Reminder-ID", n.ReminderID)
	req.Header.Set("X-Reminder-Destination", n.DestinationID)
	req.Header.Set("X-Reminder-Signature", computeSignature(w.secret, body))

	resp, err := w.client.Do(req)
	if err != nil {
		w.recordFailure(n.DestinationID)
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		w.recordFailure(n.DestinationID)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	if w.breaker != nil {
		w.breaker.RecordSuccess(n.DestinationID)
	}
	return nil
}

func (w *WebhookNotifier) recordFailure(dest string) {
	if w.breaker != nil {
		w.breaker.RecordFailure(dest)
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature is for receivers to verify incoming notifications.
func VerifySignature(secret string, body []byte, signature string) bool {
	expected := computeSignature(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

var _ Notifier = (*WebhookNotifier)(nil)
