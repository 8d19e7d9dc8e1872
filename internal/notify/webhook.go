package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/events"
	"github.com/noah-isme/invoice-manager/internal/obs"
	"github.com/noah-isme/invoice-manager/internal/resilience"
	"github.com/noah-isme/invoice-manager/internal/store"
)

const userAgent = "invoice-manager-webhooks/1.0"

// SettingsReader loads the settings row holding the webhook configuration.
type SettingsReader interface {
	GetSettings(ctx context.Context) (store.Settings, error)
}

// Dispatcher posts subscribed domain events to the outbound webhook URL held
// in settings. Each delivery is a single attempt made on its own goroutine;
// failures are logged and counted, never returned to the emitter.
type Dispatcher struct {
	Settings SettingsReader
	HTTP     *resilience.HTTPClient
	Timeout  time.Duration
	Logger   zerolog.Logger
	Now      func() time.Time

	wg sync.WaitGroup
}

// Envelope is the JSON body posted to the webhook URL.
type Envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	SentAt time.Time       `json:"sent_at"`
}

// Notify implements events.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, ev store.DomainEvent) error {
	if d == nil || d.Settings == nil || d.HTTP == nil {
		return nil
	}
	settings, err := d.Settings.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("notify: load settings: %w", err)
	}
	target := strings.TrimSpace(settings.OutboundWebhookURL)
	if !settings.OutboundWebhookEnabled || target == "" {
		return nil
	}
	if !events.Subscribed(settings.OutboundWebhookEvents, ev.Topic) {
		return nil
	}
	if err := ValidateURL(target); err != nil {
		d.record(ev.Topic, "invalid_url", 0)
		d.Logger.Warn().Err(err).Str("event", ev.Topic).Msg("webhook_url_invalid")
		return nil
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	data := ev.Payload
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	body, err := json.Marshal(Envelope{Event: ev.Topic, Data: data, SentAt: now().UTC()})
	if err != nil {
		return fmt.Errorf("notify: encode envelope: %w", err)
	}
	eventID := eventIDOf(ev)
	secret := settings.OutboundWebhookSecret
	ts := now().Unix()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		timeout := d.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		d.deliver(sendCtx, target, ev.Topic, eventID, secret, ts, body)
	}()
	return nil
}

// Wait blocks until in-flight deliveries finish. Used at shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, target, topic, eventID, secret string, ts int64, body []byte) {
	ctx, span := otel.Tracer("notify.Dispatcher").Start(ctx, "Dispatcher.deliver")
	defer span.End()
	span.SetAttributes(attribute.String("webhook.event", topic), attribute.String("webhook.event_id", eventID))

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		span.RecordError(err)
		d.fail(topic, eventID, "failed", start, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-Event-ID", eventID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	if secret != "" {
		req.Header.Set("X-Signature", ComputeSignature(secret, ts, eventID, body))
	}

	resp, err := d.HTTP.Do(ctx, req)
	if resp != nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		d.fail(topic, eventID, "skipped", start, err)
	case err != nil:
		span.RecordError(err)
		d.fail(topic, eventID, "failed", start, err)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		d.fail(topic, eventID, "rejected", start, fmt.Errorf("unexpected status %d", resp.StatusCode))
	default:
		d.record(topic, "delivered", time.Since(start))
		d.Logger.Debug().Str("event", topic).Str("event_id", eventID).Int("status", resp.StatusCode).Msg("webhook_delivered")
	}
}

func (d *Dispatcher) fail(topic, eventID, result string, start time.Time, err error) {
	d.record(topic, result, time.Since(start))
	d.Logger.Warn().Err(err).Str("event", topic).Str("event_id", eventID).Str("result", result).Msg("webhook_delivery_failed")
}

func (d *Dispatcher) record(topic, result string, elapsed time.Duration) {
	if obs.WebhookDeliveriesTotal != nil {
		obs.WebhookDeliveriesTotal.WithLabelValues(topic, result).Inc()
	}
	if elapsed > 0 && obs.WebhookAttemptLatency != nil {
		obs.WebhookAttemptLatency.WithLabelValues(result).Observe(obs.DurationMillis(elapsed))
	}
}

func eventIDOf(ev store.DomainEvent) string {
	if ev.ID.Valid {
		return uuid.UUID(ev.ID.Bytes).String()
	}
	return uuid.NewString()
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	return nil
}

// ComputeSignature returns hex HMAC-SHA256 over "<ts>.<eventID>.<body>".
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	msg := make([]byte, 0, len(body)+len(eventID)+24)
	msg = strconv.AppendInt(msg, ts, 10)
	msg = append(msg, '.')
	msg = append(msg, eventID...)
	msg = append(msg, '.')
	msg = append(msg, body...)
	return common.HMACSHA256Hex([]byte(secret), msg)
}

// NewHTTPClient returns the traced client used for webhook delivery.
func NewHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(transport),
	}
}
