package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func headerValue(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "gallery.image.uploaded", Topic("image", "uploaded"))
	assert.Equal(t, "gallery.user.password_changed", Topic("user", "password_changed"))
}

func TestNewEvent_Fields(t *testing.T) {
	type uploaded struct {
		ImageID string `json:"image_id"`
		Order   int    `json:"order"`
	}

	data := uploaded{ImageID: "img-1", Order: 3}
	event, err := NewEvent("image.uploaded", "img-1", "image", "gallery", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "image.uploaded", event.EventType)
	assert.Equal(t, "img-1", event.AggregateID)
	assert.Equal(t, "image", event.AggregateType)
	assert.Equal(t, "gallery", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got uploaded
	require.NoError(t, json.Unmarshal(event.Data, &got))
	assert.Equal(t, data, got)
}

func TestNewEvent_UnserializablePayload(t *testing.T) {
	_, err := NewEvent("user.registered", "u-1", "user", "gallery", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user.registered")
}

func TestEvent_WithMetadata_NilMap(t *testing.T) {
	e := &Event{}
	e.WithMetadata("k", "v").WithCorrelationID("corr-1")
	assert.Equal(t, "v", e.Metadata["k"])
	assert.Equal(t, "corr-1", e.CorrelationID)
}

func TestProducer_Publish_WritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, []string{"localhost:9092"}, nil)

	event, err := NewEvent("user.registered", "u-42", "user", "gallery", map[string]string{"email": "a@b.co"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-xyz")

	require.NoError(t, p.Publish(context.Background(), "gallery.user.registered", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "gallery.user.registered", msg.Topic)
	assert.Equal(t, []byte("u-42"), msg.Key)
	assert.Equal(t, "user.registered", headerValue(msg, "event_type"))
	assert.Equal(t, "gallery", headerValue(msg, "source"))
	assert.Equal(t, "corr-xyz", headerValue(msg, "correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_Publish_NoCorrelationHeaderWhenEmpty(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, nil)

	event, err := NewEvent("image.deleted", "img-9", "image", "gallery", struct{}{})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), "gallery.image.deleted", event))

	assert.Empty(t, headerValue(w.msgs[0], "correlation_id"))
}

func TestProducer_Publish_InjectsTraceParent(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	w := &fakeWriter{}
	p := newProducer(w, nil, nil)
	event, err := NewEvent("image.uploaded", "img-1", "image", "gallery", struct{}{})
	require.NoError(t, err)
	require.NoError(t, p.Publish(ctx, "gallery.image.uploaded", event))

	traceparent := headerValue(w.msgs[0], "traceparent")
	require.NotEmpty(t, traceparent)
	assert.Contains(t, traceparent, span.SpanContext().TraceID().String())
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := newProducer(w, nil, nil)

	event, err := NewEvent("image.uploaded", "img-1", "image", "gallery", struct{}{})
	require.NoError(t, err)

	err = p.Publish(context.Background(), "gallery.image.uploaded", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gallery.image.uploaded")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestProducer_Publish_NilEvent(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, nil)
	require.Error(t, p.Publish(context.Background(), "gallery.image.uploaded", nil))
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, nil)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestNewProducer_DoesNotConnect(t *testing.T) {
	p := NewProducer(DefaultProducerConfig([]string{"localhost:19092"}), nil)
	require.NotNil(t, p)
	assert.Equal(t, []string{"localhost:19092"}, p.brokers)
	assert.NoError(t, p.Close())
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"broker1:9092"})
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.False(t, cfg.Async)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
