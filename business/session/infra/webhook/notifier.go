// Package webhook posts operator notifications to an HTTP endpoint.
package webhook

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/internal/apperror"
	"github.com/fd1az/arbguard/internal/httpclient"
	"github.com/fd1az/arbguard/internal/logger"
)

const meterName = "session"

// Config configures the webhook sink.
type Config struct {
	URL       string
	Timeout   time.Duration
	QueueSize int
}

// payload is compatible with Slack-style incoming webhooks.
type payload struct {
	Text string `json:"text"`
	domain.Notification
}

// Notifier delivers notifications from a bounded queue on one goroutine.
// Notify never blocks; when the queue is full the notification is dropped.
type Notifier struct {
	cfg    Config
	client httpclient.Client
	logger logger.LoggerInterface

	mu     sync.RWMutex
	closed bool
	queue  chan domain.Notification
	done   chan struct{}

	dropped  atomic.Int64
	outcomes metric.Int64Counter
}

func New(cfg Config, log logger.LoggerInterface) (*Notifier, error) {
	if cfg.URL == "" {
		return nil, apperror.Validation(apperror.CodeConfigurationError, "notifier.webhook_url is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("webhook"),
		httpclient.WithRequestTimeout(cfg.Timeout),
		httpclient.WithHeaders(map[string]string{"Content-Type": "application/json"}),
	)
	if err != nil {
		return nil, err
	}
	outcomes, err := otel.Meter(meterName).Int64Counter("notifications_total",
		metric.WithDescription("Webhook notifications by outcome"))
	if err != nil {
		return nil, err
	}

	n := &Notifier{
		cfg:      cfg,
		client:   client,
		logger:   log,
		queue:    make(chan domain.Notification, cfg.QueueSize),
		done:     make(chan struct{}),
		outcomes: outcomes,
	}
	go n.run()
	return n, nil
}

// Notify enqueues note.
func (n *Notifier) Notify(ctx context.Context, note domain.Notification) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	select {
	case n.queue <- note:
	default:
		n.dropped.Add(1)
		n.count(ctx, "dropped")
		n.logger.Warn(ctx, "notification dropped, queue full", "kind", note.Kind, "user", note.UserID)
	}
}

// Dropped is the number of notifications lost to a full queue.
func (n *Notifier) Dropped() int64 { return n.dropped.Load() }

// Close stops accepting notifications and waits for the queue to drain.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()
	<-n.done
	return nil
}

func (n *Notifier) run() {
	defer close(n.done)
	for note := range n.queue {
		n.deliver(note)
	}
}

func (n *Notifier) deliver(note domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()

	body := payload{Text: "[" + note.Severity + "] " + note.Title + ": " + note.Message, Notification: note}
	_, err := n.client.NewRequest(
		httpclient.WithLabels(httpclient.NewLabel("kind", note.Kind)),
	).SetBody(body).Post(ctx, n.cfg.URL)
	if err != nil {
		n.count(ctx, "failed")
		n.logger.Warn(ctx, "notification failed", "kind", note.Kind, "user", note.UserID, "error", err)
		return
	}
	n.count(ctx, "sent")
}

func (n *Notifier) count(ctx context.Context, outcome string) {
	n.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
