package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubProducer struct {
	written map[string][]kafka.Message
	err     error
}

func (p *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	if p.written == nil {
		p.written = make(map[string][]kafka.Message)
	}
	p.written[topic] = append(p.written[topic], msgs...)
	return nil
}

type stubRegistry struct {
	calls int
	id    int
	err   error
}

func (r *stubRegistry) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	r.calls++
	if r.err != nil {
		return 0, r.err
	}
	return r.id, nil
}

func message(eventID int64, eventType, topic, key string) Message {
	return Message{
		EventID:       eventID,
		AggregateType: "workout_session",
		AggregateID:   key,
		EventType:     eventType,
		Topic:         topic,
		SchemaSubject: topic + "-value",
		PartitionKey:  key,
		Payload:       json.RawMessage(`{"session_id":"` + key + `"}`),
	}
}

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"a":1}`)
	frame := encodeWireFormat(7, payload)

	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(7), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, payload, frame[5:])
}

func TestDeliverFramesAndBatchesByTopic(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	msgs := []Message{
		message(1, "workout_session.ingested", "workout_session_events", "s1"),
		message(2, "workout_session.ingested", "workout_session_events", "s2"),
		message(3, "workout_session.corrected", "workout_session_corrected", "s1"),
	}
	require.NoError(t, d.deliver(context.Background(), msgs))

	require.Len(t, producer.written["workout_session_events"], 2)
	require.Len(t, producer.written["workout_session_corrected"], 1)

	first := producer.written["workout_session_events"][0]
	require.Equal(t, []byte("s1"), first.Key)
	require.Equal(t, byte(0), first.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(first.Value[1:5]))
	require.JSONEq(t, `{"session_id":"s1"}`, string(first.Value[5:]))
}

func TestDeliverCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	msgs := []Message{
		message(1, "workout_session.ingested", "workout_session_events", "s1"),
		message(2, "workout_session.ingested", "workout_session_events", "s2"),
	}
	require.NoError(t, d.deliver(context.Background(), msgs))
	require.NoError(t, d.deliver(context.Background(), msgs))

	require.Equal(t, 1, registry.calls, "schema id should be resolved once per subject")
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	d := NewDispatcher(nil, &stubProducer{}, &stubRegistry{id: 1}, time.Second, 10)

	err := d.deliver(context.Background(), []Message{
		message(1, "workout_session.exploded", "workout_session_events", "s1"),
	})
	require.Error(t, err)
}

func TestDeliverPropagatesProducerFailure(t *testing.T) {
	wantErr := errors.New("kafka down")
	d := NewDispatcher(nil, &stubProducer{err: wantErr}, &stubRegistry{id: 1}, time.Second, 10)

	err := d.deliver(context.Background(), []Message{
		message(1, "workout_session.ingested", "workout_session_events", "s1"),
	})
	require.ErrorIs(t, err, wantErr)
}

func TestSchemaCatalogCoversEventCatalog(t *testing.T) {
	for _, eventType := range []string{"workout_session.ingested", "workout_session.corrected"} {
		if _, ok := schemaCatalog[eventType]; !ok {
			t.Fatalf("missing schema for %s", eventType)
		}
	}
}
