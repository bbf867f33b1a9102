// Package outbox delivers exercise events written alongside repository changes to Kafka.
package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"example.com/exercisetracker/internal/events"
)

// schemas maps each event type to the JSON schema registered for its subject.
var schemas = map[string]string{
	events.TypeExerciseLogged:  exerciseLoggedSchema,
	events.TypeExerciseDeleted: exerciseDeletedSchema,
}

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

type schemaRegistrar interface {
	EnsureSchema(context.Context, string, string) (int, error)
}

// Message is one pending outbox row.
type Message struct {
	EventID       int64
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
}

// record frames the payload for Kafka. The username key keeps one user's events on one partition.
func (m Message) record(schemaID int, now time.Time) kafka.Message {
	return kafka.Message{
		Key:   []byte(m.PartitionKey),
		Value: encodeWireFormat(schemaID, m.Payload),
		Time:  now,
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(m.EventType)},
			{Key: events.HeaderSchemaSubject, Value: []byte(m.SchemaSubject)},
		},
	}
}

// Dispatcher polls the outbox and publishes pending rows.
// A batch is locked, published and marked inside one transaction, so a row is either
// still pending or already handed to Kafka or the DLQ.
type Dispatcher struct {
	pool         *pgxpool.Pool
	producer     messageWriter
	registry     schemaRegistrar
	pollInterval time.Duration
	batchSize    int
	logger       *zap.Logger
	done         chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(pool *pgxpool.Pool, producer messageWriter, registry schemaRegistrar, pollInterval time.Duration, batchSize int, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	return &Dispatcher{
		pool:         pool,
		producer:     producer,
		registry:     registry,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start runs the polling loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := d.dispatchBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("outbox batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Wait blocks until Start has returned.
func (d *Dispatcher) Wait() {
	<-d.done
}

// dispatchBatch publishes one batch and reports how many rows reached Kafka.
// Schema registry failures leave the batch pending for the next poll.
func (d *Dispatcher) dispatchBatch(ctx context.Context) (int, error) {
	start := time.Now()

	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	pending, err := lockPending(ctx, tx, d.batchSize)
	if err != nil || len(pending) == 0 {
		return 0, err
	}
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	byTopic, rejected, err := d.encode(ctx, pending)
	if err != nil {
		return 0, err
	}
	for _, msg := range rejected {
		if err := parkInDLQ(ctx, tx, msg, fmt.Sprintf("no schema metadata for event_type=%s", msg.EventType)); err != nil {
			return 0, err
		}
	}

	parked := rejected
	var delivered []Message
	for topic, batch := range byTopic {
		if writeErr := d.producer.WriteMessages(ctx, topic, batch.records...); writeErr != nil {
			d.logger.Warn("kafka write failed, parking batch",
				zap.String("topic", topic),
				zap.Int("events", len(batch.rows)),
				zap.Error(writeErr),
			)
			for _, msg := range batch.rows {
				if err := parkInDLQ(ctx, tx, msg, fmt.Sprintf("%s (topic=%s)", writeErr, topic)); err != nil {
					return 0, err
				}
			}
			parked = append(parked, batch.rows...)
			continue
		}
		delivered = append(delivered, batch.rows...)
	}

	ids := make([]int64, 0, len(pending))
	for _, msg := range pending {
		ids = append(ids, msg.EventID)
	}
	if _, err := tx.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	recordSettled(delivered, outcomeDelivered)
	recordSettled(parked, outcomeDeadLettered)
	return len(delivered), nil
}

type topicBatch struct {
	rows    []Message
	records []kafka.Message
}

// encode groups rows by topic, resolving each subject's schema id once per batch.
// Rows whose event type has no schema are returned separately.
func (d *Dispatcher) encode(ctx context.Context, pending []Message) (map[string]*topicBatch, []Message, error) {
	now := time.Now().UTC()
	schemaIDs := make(map[string]int)
	byTopic := make(map[string]*topicBatch)
	var rejected []Message

	for _, msg := range pending {
		schema, ok := schemas[msg.EventType]
		if !ok {
			rejected = append(rejected, msg)
			continue
		}
		id, ok := schemaIDs[msg.SchemaSubject]
		if !ok {
			var err error
			if id, err = d.registry.EnsureSchema(ctx, msg.SchemaSubject, schema); err != nil {
				return nil, nil, fmt.Errorf("resolve schema %s: %w", msg.SchemaSubject, err)
			}
			schemaIDs[msg.SchemaSubject] = id
		}

		batch := byTopic[msg.Topic]
		if batch == nil {
			batch = &topicBatch{}
			byTopic[msg.Topic] = batch
		}
		batch.rows = append(batch.rows, msg)
		batch.records = append(batch.records, msg.record(id, now))
	}
	return byTopic, rejected, nil
}

func lockPending(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error) {
	rows, err := tx.Query(ctx,
		`SELECT event_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload
           FROM outbox
          WHERE published_at IS NULL
          ORDER BY event_id
          LIMIT $1
          FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Topic, &msg.SchemaSubject, &msg.PartitionKey, &msg.Payload); err != nil {
			return nil, err
		}
		pending = append(pending, msg)
	}
	return pending, rows.Err()
}

// encodeWireFormat prefixes the payload with the Confluent magic byte and schema id.
func encodeWireFormat(schemaID int, payload []byte) []byte {
	frame := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(frame[1:5], uint32(schemaID))
	copy(frame[5:], payload)
	return frame
}
