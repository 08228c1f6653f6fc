// Package publisher fronts an audit.Store with enrichment and optional async delivery.
//
// Emit stamps the event with an id, a timestamp and the request id from ctx.
// In async mode events are queued on a bounded buffer and a single worker
// appends them; a full buffer drops the event and logs it rather than blocking
// the caller. Events emitted after Close are rejected with ErrClosed.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	audit "badguys/pkg/platform/audit"
	"badguys/pkg/requestcontext"
)

var (
	ErrBufferFull = errors.New("audit buffer full")
	ErrClosed     = errors.New("audit publisher closed")
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	queue chan audit.Event
	done  chan struct{}

	// mu guards closed and the send on queue against Close.
	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer switches the publisher to async mode with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan audit.Event, n)
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queue != nil {
		go p.run()
	} else {
		close(p.done)
	}
	return p
}

// Emit enriches event from ctx and hands it to the store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = enrich(ctx, event)
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.WarnContext(ctx, "audit publisher closed, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return ErrClosed
	}
	if p.queue == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.queue <- event:
		return nil
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"request_id", event.RequestID,
		)
		return ErrBufferFull
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil {
			p.logger.Error("failed to append audit event",
				"action", event.Action,
				"request_id", event.RequestID,
				"error", err,
			)
		}
		cancel()
	}
}

// Close drains the async buffer. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		if p.queue != nil {
			close(p.queue)
		}
	}
	p.mu.Unlock()
	<-p.done
	return nil
}

func enrich(ctx context.Context, event audit.Event) audit.Event {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.ClientFamily == "" {
		event.ClientFamily = ClientFamily(requestcontext.UserAgent(ctx))
	}
	return event
}

// ClientFamily reduces a User-Agent header to a coarse client name such as
// "Firefox" or "curl". Bots are reported as "bot:<name>".
func ClientFamily(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	name, _ := ua.Browser()
	if ua.Bot() {
		return "bot:" + name
	}
	if name == "" {
		return "unknown"
	}
	return name
}
