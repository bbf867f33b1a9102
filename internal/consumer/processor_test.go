package consumer

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestProcessorCommitsOnSuccess(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"exercise_id":"abc","username":"alice"}`)
	value := make([]byte, 5+len(payload))
	value[0] = 0
	binary.BigEndian.PutUint32(value[1:5], uint32(42))
	copy(value[5:], payload)

	msg := kafka.Message{
		Topic:     "exercise_events",
		Partition: 0,
		Offset:    10,
		Key:       []byte("alice"),
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("exercise.logged")},
			{Key: "schema_subject", Value: []byte("exercise_logged-value")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{}

	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 1, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, "exercise.logged", handler.last.EventType)
	require.Equal(t, "alice", handler.last.Username)
	require.Equal(t, "exercise_logged-value", handler.last.SchemaSubject)
	require.Equal(t, 42, handler.last.SchemaID)
	require.JSONEq(t, string(payload), string(handler.last.Payload))
}

func TestProcessorRetriesThenAbandonsFailingEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := []byte(`{"exercise_id":"def","username":"bob"}`)
	value := make([]byte, 5+len(payload))
	binary.BigEndian.PutUint32(value[1:5], uint32(99))
	copy(value[5:], payload)

	msg := kafka.Message{
		Topic:     "exercise_events",
		Partition: 0,
		Offset:    20,
		Key:       []byte("bob"),
		Time:      time.Now().UTC(),
		Value:     value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte("exercise.deleted")},
			{Key: "schema_subject", Value: []byte("exercise_deleted-value")},
		},
	}

	reader := &stubReader{
		messages: []kafka.Message{msg},
		after:    contextCanceled,
	}
	handler := &stubHandler{err: errors.New("boom")}

	retriesBefore := testutil.ToFloat64(handlerRetries)
	abandonedBefore := testutil.ToFloat64(handledEvents.WithLabelValues("exercise.deleted", outcomeAbandoned))

	processor := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)), WithRetry(3, time.Millisecond))

	err := processor.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 3, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.InDelta(t, retriesBefore+2, testutil.ToFloat64(handlerRetries), 0.0001)
	require.InDelta(t, abandonedBefore+1, testutil.ToFloat64(handledEvents.WithLabelValues("exercise.deleted", outcomeAbandoned)), 0.0001)
}

func TestProcessorRecoversOnRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	value := append([]byte{0, 0, 0, 0, 7}, []byte(`{"username":"cy"}`)...)
	reader := &stubReader{
		messages: []kafka.Message{{
			Topic:   "exercise_events",
			Key:     []byte("cy"),
			Value:   value,
			Headers: []kafka.Header{{Key: "event_type", Value: []byte("exercise.logged")}},
		}},
		after: contextCanceled,
	}
	handler := &stubHandler{err: errors.New("transient"), failures: 1}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t)), WithRetry(3, time.Millisecond)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, 2, handler.calls)
	require.Equal(t, 1, reader.commitCalls)
	require.Equal(t, 7, handler.last.SchemaID)
}

func TestProcessorCommitsMalformedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &stubReader{
		messages: []kafka.Message{
			{Topic: "exercise_events", Value: []byte{0, 1}},
			{Topic: "exercise_events", Value: []byte{0, 0, 0, 0, 1, '{', '}'}},
		},
		after: contextCanceled,
	}
	handler := &stubHandler{}

	err := NewProcessor(reader, handler, WithLogger(zaptest.NewLogger(t))).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	require.Zero(t, handler.calls)
	require.Equal(t, 2, reader.commitCalls)
}

type stubReader struct {
	messages    []kafka.Message
	index       int
	commitCalls int
	after       func() error
}

func (r *stubReader) FetchMessage(context.Context) (kafka.Message, error) {
	if r.index >= len(r.messages) {
		if r.after != nil {
			return kafka.Message{}, r.after()
		}
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[r.index]
	r.index++
	return msg, nil
}

func (r *stubReader) CommitMessages(_ context.Context, _ ...kafka.Message) error {
	r.commitCalls++
	return nil
}

func (r *stubReader) Close() error { return nil }

func contextCanceled() error { return context.Canceled }

// stubHandler fails with err on every call, or only on the first failures calls when failures is set.
type stubHandler struct {
	calls    int
	err      error
	failures int
	last     Message
}

func (h *stubHandler) Handle(_ context.Context, msg Message) error {
	h.calls++
	h.last = msg
	if h.failures > 0 && h.calls > h.failures {
		return nil
	}
	return h.err
}
