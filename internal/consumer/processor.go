// Package consumer reads exercise events from Kafka and keeps derived state current.
package consumer

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/events"
)

// Reader is the part of *kafka.Reader the processor uses.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler applies one decoded event.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is an outbox event as read back from Kafka.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	EventType string
	// Username is the record key the outbox partitions by.
	Username      string
	SchemaSubject string
	SchemaID      int
	Payload       json.RawMessage
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithRetry sets how many times a failing event is handled before it is committed anyway,
// and the delay before the first retry. The delay grows linearly per attempt.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(p *Processor) {
		if attempts > 0 {
			p.attempts = attempts
		}
		p.backoff = backoff
	}
}

// Processor fetches, decodes and handles messages one at a time, committing each after it is settled.
type Processor struct {
	reader   Reader
	handler  Handler
	logger   *zap.Logger
	attempts int
	backoff  time.Duration
}

// NewProcessor constructs a Processor.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:   reader,
		handler:  handler,
		logger:   zap.NewNop(),
		attempts: 3,
		backoff:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run processes messages until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		raw, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Warn("fetch failed", zap.Error(err))
			continue
		}

		msg, err := decodeMessage(raw)
		if err != nil {
			// Undecodable records can never succeed, so they are committed and dropped.
			p.logger.Warn("dropping undecodable record",
				zap.String("topic", raw.Topic),
				zap.Int("partition", raw.Partition),
				zap.Int64("offset", raw.Offset),
				zap.Error(err),
			)
			recordDecodeFailure(raw.Topic)
			p.commit(ctx, raw)
			continue
		}

		if err := p.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("abandoning event after retries",
				zap.String("event_type", msg.EventType),
				zap.String("username", msg.Username),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			recordHandled(msg, outcomeAbandoned)
		} else {
			recordHandled(msg, outcomeApplied)
		}
		p.commit(ctx, raw)
	}
}

func (p *Processor) handle(ctx context.Context, msg Message) error {
	var err error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if err = p.handler.Handle(ctx, msg); err == nil {
			return nil
		}
		if attempt == p.attempts {
			break
		}
		handlerRetries.Inc()
		p.logger.Warn("handler failed, retrying", zap.String("event_type", msg.EventType), zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * p.backoff):
		}
	}
	return err
}

func (p *Processor) commit(ctx context.Context, raw kafka.Message) {
	if err := p.reader.CommitMessages(ctx, raw); err != nil {
		p.logger.Error("commit failed", zap.Int64("offset", raw.Offset), zap.Error(err))
	}
}

func decodeMessage(raw kafka.Message) (Message, error) {
	if len(raw.Value) < 5 || raw.Value[0] != 0 {
		return Message{}, fmt.Errorf("value is not schema-registry framed (%d bytes)", len(raw.Value))
	}

	msg := Message{
		Topic:     raw.Topic,
		Partition: raw.Partition,
		Offset:    raw.Offset,
		Timestamp: raw.Time,
		Username:  string(raw.Key),
		SchemaID:  int(binary.BigEndian.Uint32(raw.Value[1:5])),
		Payload:   json.RawMessage(append([]byte(nil), raw.Value[5:]...)),
	}
	for _, header := range raw.Headers {
		switch header.Key {
		case events.HeaderEventType:
			msg.EventType = string(header.Value)
		case events.HeaderSchemaSubject:
			msg.SchemaSubject = string(header.Value)
		}
	}
	if msg.EventType == "" {
		return Message{}, errors.New("missing event_type header")
	}
	return msg, nil
}
