package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/alejandrodnm/accapool/internal/domain"
	"golang.org/x/time/rate"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// webhookPayload es el cuerpo JSON que recibe el endpoint.
type webhookPayload struct {
	Type          domain.EventType `json:"type"`
	PoolID        string           `json:"pool_id"`
	SeasonID      string           `json:"season_id,omitempty"`
	ParticipantID string           `json:"participant_id,omitempty"`
	OccurredAt    time.Time        `json:"occurred_at"`
	Data          map[string]any   `json:"data,omitempty"`
}

// Webhook implementa ports.Notifier con un POST JSON por evento,
// con rate limiting y retries con backoff exponencial.
type Webhook struct {
	http     *http.Client
	url      string
	limiter  *rate.Limiter
	baseWait time.Duration
}

// NewWebhook crea un notificador HTTP. ratePerSec <= 0 usa 5/s.
func NewWebhook(url string, ratePerSec float64, timeout time.Duration) *Webhook {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Webhook{
		http:     &http.Client{Timeout: timeout},
		url:      url,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSec), int(math.Max(1, ratePerSec))),
		baseWait: baseRetryWait,
	}
}

// WithRetryWait reemplaza la espera base entre reintentos (tests).
func (w *Webhook) WithRetryWait(d time.Duration) *Webhook {
	w.baseWait = d
	return w
}

// Publish envía el evento al webhook.
func (w *Webhook) Publish(ctx context.Context, e domain.Event) error {
	body, err := json.Marshal(webhookPayload{
		Type:          e.Type,
		PoolID:        e.PoolID,
		SeasonID:      e.SeasonID,
		ParticipantID: e.ParticipantID,
		OccurredAt:    e.OccurredAt,
		Data:          e.Data,
	})
	if err != nil {
		return fmt.Errorf("notify.Webhook: marshal: %w", err)
	}

	if err := w.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return w.http.Do(req)
	}); err != nil {
		return fmt.Errorf("notify.Webhook: %s: %w", e.Type, err)
	}
	return nil
}

// doWithRetry ejecuta la función con backoff exponencial.
func (w *Webhook) doWithRetry(ctx context.Context, fn func() (*http.Response, error)) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			w.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("webhook rate limited", "attempt", attempt+1)
			w.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			w.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (w *Webhook) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * w.baseWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
