package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func TestKafkaPublisherWritesKeyedSummary(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{Writer: w}

	err := p.Publish(context.Background(), Summary{
		InvocationID: "inv-1",
		Trigger:      "scheduled",
		Recipients:   3,
		Succeeded:    2,
		Failed:       1,
		Outcome:      OutcomeFailed,
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "inv-1", string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, "failed", decoded["outcome"])
	assert.Equal(t, float64(3), decoded["recipients"])
	assert.NotEmpty(t, decoded["emitted_at"])
	assert.NotContains(t, decoded, "tokens")
}

func TestKafkaPublisherPropagatesWriteError(t *testing.T) {
	p := &KafkaPublisher{Writer: &recordingWriter{err: errors.New("broker down")}}
	err := p.Publish(context.Background(), Summary{InvocationID: "inv-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "push.dispatch")
	defer w.Close()
	assert.Equal(t, "push.dispatch", w.Topic)
}
