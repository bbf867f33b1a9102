package outbox

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// parkInDLQ copies an undeliverable row into outbox_dlq, due for its first retry immediately.
func parkInDLQ(ctx context.Context, tx pgx.Tx, msg Message, reason string) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_dlq (event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, next_retry_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, NOW())`,
		msg.EventID, msg.EventType, msg.Topic, msg.Payload, reason, msg.AggregateType, msg.AggregateID, msg.SchemaSubject, msg.PartitionKey,
	)
	return err
}
