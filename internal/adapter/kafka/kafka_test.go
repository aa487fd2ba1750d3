package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/storm-nowcast/internal/domain"
)

func TestMapMessageToRawEvent(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("storm-1"),
		Value:     []byte(`{"storm_id":"storm-1"}`),
		Topic:     "storm-objects",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("segmotion")},
		},
	}

	raw := mapMessageToRawEvent(msg)

	assert.Equal(t, []byte("storm-1"), raw.Key)
	assert.JSONEq(t, `{"storm_id":"storm-1"}`, string(raw.Value))
	assert.Equal(t, "storm-objects", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "segmotion", raw.Headers["source"])
	assert.Nil(t, raw.Commit)
}

func TestMapOutputEventToMessage(t *testing.T) {
	event := domain.OutputEvent{
		Key:   []byte("2018-01-23T23:23:45Z"),
		Value: []byte(`{"spc_date":"20180123"}`),
		Headers: map[string]string{
			"content_type": "application/json",
		},
	}

	msg := mapOutputEventToMessage(event)

	assert.Equal(t, []byte("2018-01-23T23:23:45Z"), msg.Key)
	assert.JSONEq(t, `{"spc_date":"20180123"}`, string(msg.Value))
	assert.Len(t, msg.Headers, 1)
	assert.Equal(t, "content_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("application/json"), msg.Headers[0].Value)
}
