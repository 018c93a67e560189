package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	nativeairdrop "github.com/dan-merlea/sc-krogan-public/native/airdrop"
)

// ErrQueueFull is returned when a settlement cannot be queued without waiting
// for the receiver.
var ErrQueueFull = errors.New("webhook: queue full")

// EventType represents the logical webhook topic.
type EventType string

const (
	// EventSettlementCommitted is sent once per committed claim batch.
	EventSettlementCommitted EventType = "airdrop.settlement.committed"

	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultQueueSize   = 64
)

// TransferPayload is one payment inside a settlement webhook.
type TransferPayload struct {
	Asset  string `json:"asset"`
	Nonce  uint64 `json:"nonce"`
	Amount string `json:"amount"`
}

// SettlementPayload describes the webhook body for committed settlements.
type SettlementPayload struct {
	Type         EventType         `json:"type"`
	Settlement   string            `json:"settlement"`
	Claimant     string            `json:"claimant"`
	Entries      int               `json:"entries"`
	Transfers    []TransferPayload `json:"transfers"`
	TransferRoot string            `json:"transferRoot"`
	SettledAt    time.Time         `json:"settledAt"`
	DeliveryID   string            `json:"deliveryId"`
}

// Dispatcher orchestrates webhook deliveries with retry and exponential backoff.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	queueSize int
	queue     chan delivery
	wg        sync.WaitGroup
}

type delivery struct {
	eventType EventType
	id        string
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithQueueSize overrides the number of deliveries buffered ahead of the worker.
func WithQueueSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher and spawns the worker goroutine.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = string(bytes.TrimSpace([]byte(endpoint)))
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		ctx:         ctx,
		cancel:      cancel,
		queueSize:   defaultQueueSize,
	}
	for _, opt := range opts {
		opt(dispatcher)
	}
	dispatcher.queue = make(chan delivery, dispatcher.queueSize)
	dispatcher.wg.Add(1)
	go dispatcher.worker()
	return dispatcher, nil
}

// Close stops the worker, aborting the delivery in flight. Deliveries still
// queued are discarded and their count is logged.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	if dropped := len(d.queue); dropped > 0 {
		d.logger.Warn("webhook deliveries discarded on close", slog.Int("dropped", dropped))
	}
}

// RecordSettlement queues a committed settlement for delivery. It satisfies
// the airdrop engine's settlement sink and never waits on the receiver: a full
// queue fails with ErrQueueFull.
func (d *Dispatcher) RecordSettlement(ctx context.Context, settlement *nativeairdrop.Settlement) error {
	if settlement == nil {
		return errors.New("webhook: nil settlement")
	}
	payload := SettlementPayload{
		Type:         EventSettlementCommitted,
		Settlement:   "0x" + hex.EncodeToString(settlement.ID[:]),
		Claimant:     settlement.Claimant.String(),
		Entries:      len(settlement.Rewards),
		TransferRoot: settlement.TransferRoot.Hex(),
		SettledAt:    time.Unix(settlement.SettledAt, 0).UTC(),
		DeliveryID:   uuid.NewString(),
	}
	for _, p := range settlement.Payments() {
		payload.Transfers = append(payload.Transfers, TransferPayload{Asset: p.Asset, Nonce: p.Nonce, Amount: p.Amount.String()})
	}
	return d.enqueue(ctx, payload.Type, payload.DeliveryID, payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, eventType EventType, id string, body interface{}) error {
	if d == nil {
		return errors.New("webhook: dispatcher not initialised")
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.ctx.Err() != nil {
		return errors.New("webhook: dispatcher closed")
	}
	select {
	case d.queue <- delivery{eventType: eventType, id: id, body: data}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		ctx, cancel := context.WithTimeout(d.ctx, d.client.Timeout)
		err := d.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Error("webhook delivery abandoned",
				slog.String("delivery", job.id),
				slog.Int("attempts", attempt),
				slog.Any("error", err))
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-NHB-Event", string(job.eventType))
	req.Header.Set("X-NHB-Delivery", job.id)
	req.Header.Set("X-NHB-Signature", Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the X-NHB-Signature value receivers recompute to authenticate
// a delivery.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	sum := mac.Sum(nil)
	return "sha256=" + hex.EncodeToString(sum)
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	if next < current {
		return max
	}
	return next
}
