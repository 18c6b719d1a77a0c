// Package queue publishes committed rental events to RabbitMQ.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"movierental/internal/model"
)

const (
	DefaultQueue          = "rental.events"
	DefaultBuffer         = 256
	DefaultDialTimeout    = 3 * time.Second
	DefaultPublishTimeout = 2 * time.Second
)

var (
	ErrClosed     = errors.New("queue: publisher closed")
	ErrBufferFull = errors.New("queue: publish buffer full")
)

// Publisher sends each event as a persistent JSON message on a durable
// queue. Publish only enqueues; a single goroutine owns the connection,
// dials lazily and redials after a failure. Delivery is best effort.
type Publisher struct {
	url            string
	queue          string
	logger         *slog.Logger
	dialTimeout    time.Duration
	publishTimeout time.Duration

	events    chan model.Event
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

type Option func(*Publisher)

// WithBuffer sets how many events may wait for delivery.
func WithBuffer(n int) Option { return func(p *Publisher) { p.events = make(chan model.Event, n) } }

func WithDialTimeout(d time.Duration) Option { return func(p *Publisher) { p.dialTimeout = d } }

func WithPublishTimeout(d time.Duration) Option { return func(p *Publisher) { p.publishTimeout = d } }

func NewPublisher(url, queue string, logger *slog.Logger, opts ...Option) *Publisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		url:            url,
		queue:          queue,
		logger:         logger.With("component", "queue"),
		dialTimeout:    DefaultDialTimeout,
		publishTimeout: DefaultPublishTimeout,
		events:         make(chan model.Event, DefaultBuffer),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Publish enqueues event without waiting for the broker.
func (p *Publisher) Publish(_ context.Context, event model.Event) error {
	select {
	case <-p.stop:
		return ErrClosed
	default:
	}
	select {
	case p.events <- event:
		return nil
	case <-p.stop:
		return ErrClosed
	default:
		return fmt.Errorf("%w: dropping %s for rental %d", ErrBufferFull, event.Type, event.AggregateID)
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.reset()
	for {
		select {
		case <-p.stop:
			p.flush()
			return
		case event := <-p.events:
			p.deliver(event)
		}
	}
}

// flush delivers what is still buffered and gives up at the first failure.
func (p *Publisher) flush() {
	for {
		select {
		case event := <-p.events:
			if !p.deliver(event) {
				p.logger.Warn("dropping undelivered rental events", "count", len(p.events))
				return
			}
		default:
			return
		}
	}
}

func (p *Publisher) deliver(event model.Event) bool {
	if err := p.send(event); err != nil {
		p.logger.Warn("publish rental event failed",
			"rental_id", event.AggregateID, "event_type", event.Type, "error", err)
		return false
	}
	return true
}

func (p *Publisher) send(event model.Event) error {
	msg, err := message(event)
	if err != nil {
		return err
	}
	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// message builds the AMQP publishing for an event.
func message(event model.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Type:         event.Type,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}, nil
}

// channel returns an open channel, dialing if needed. The dial timeout also
// bounds the AMQP handshake.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	p.logger.Info("connected to broker", "queue", p.queue)
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close stops accepting events, attempts the buffered ones and waits for
// the delivery goroutine to exit.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() { close(p.stop) })
	<-p.done
	return nil
}
