// Package events carries threat classifications from the upstream
// classifier boundary to the console's responder. The bus is a bounded
// in-process queue: publishing never blocks the classifier, and a full
// buffer is reported to the caller instead of being silently dropped.
package events

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/lucid-vigil/warden/pkg/evidence"
	"github.com/lucid-vigil/warden/pkg/metrics"
	"github.com/rs/zerolog"
)

// ThreatEvent is one classification emitted upstream: a category and
// severity for content captured on a child's device. Confidence is the
// classifier's 0-100 score; nil means not reported.
type ThreatEvent struct {
	ID         string            `json:"id"`
	AccountID  string            `json:"accountId"`
	IncidentID string            `json:"incidentId,omitempty"`
	EvidenceID string            `json:"evidenceId"`
	ChildID    string            `json:"childId"`
	DeviceID   string            `json:"deviceId"`
	Category   evidence.Category `json:"category"`
	Severity   evidence.Severity `json:"severity"`
	Confidence *float64          `json:"confidence,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// Handler consumes threat events off the bus.
type Handler interface {
	Handle(ctx context.Context, event ThreatEvent) error
}

// Bus distributes threat events to subscribed handlers in order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	buffer   chan ThreatEvent
	logger   zerolog.Logger
	wg       sync.WaitGroup
	running  bool
}

// NewBus creates a bus with the given buffer size.
func NewBus(logger zerolog.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Bus{
		buffer: make(chan ThreatEvent, bufferSize),
		logger: logger.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler. Handlers run sequentially per event.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish enqueues an event. An empty ID is filled in. Publishing into a
// full buffer fails fast so the caller can surface the backpressure.
func (b *Bus) Publish(event ThreatEvent) error {
	if event.ID == "" {
		event.ID = newEventID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	metrics.ThreatEvents.WithLabelValues(string(event.Category), event.Severity.String()).Inc()

	select {
	case b.buffer <- event:
		return nil
	default:
		return fmt.Errorf("events: buffer full, dropping event %s", event.ID)
	}
}

// Start launches the delivery loop. It runs until ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for {
			select {
			case event := <-b.buffer:
				b.deliver(ctx, event)
			case <-ctx.Done():
				return
			}
		}
	}()
	b.logger.Info().Msg("Event bus started.")
}

// Wait blocks until the delivery loop has exited.
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) deliver(ctx context.Context, event ThreatEvent) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			b.logger.Error().Err(err).Str("event_id", event.ID).
				Str("category", string(event.Category)).Msg("Handler failed.")
		}
	}
}

func newEventID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "evt-" + time.Now().UTC().Format("20060102150405.000000000")
	}
	return "evt-" + hex.EncodeToString(buf)
}
