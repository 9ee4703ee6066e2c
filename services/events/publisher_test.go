package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/models"
	"go.uber.org/zap"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   int
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed++
	return nil
}

func completedRecord() *models.AnswerRecord {
	rec := models.NewAnswerRecord("req-1", "How do I enroll?")
	eval := models.NewDefaultEvaluation(8)
	eval.OverallConfidence = 8
	eval.Verdict = models.VerdictAccept
	rec.MarkAsCompleted("Fill the form.", []string{"https://faq.example/enroll"}, eval, 120)
	return rec
}

func TestKafkaPublisher_PublishAnswer(t *testing.T) {
	writer := &recordingWriter{}
	pub := newKafkaPublisher(writer, "faq.answers", zap.NewNop())

	require.NoError(t, pub.PublishAnswer(context.Background(), completedRecord()))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, []byte("req-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)

	var ev AnswerEvent
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, EventTypeAnswerCompleted, ev.Type)
	assert.Equal(t, models.AnswerStateComplete, ev.State)
	assert.Equal(t, "accept", ev.Verdict)
	assert.Equal(t, 8.0, ev.OverallConfidence)
	assert.Equal(t, []string{"https://faq.example/enroll"}, ev.References)
	assert.Empty(t, ev.ErrorCode)
}

func TestKafkaPublisher_FailedRecordCarriesErrorCode(t *testing.T) {
	writer := &recordingWriter{}
	pub := newKafkaPublisher(writer, "faq.answers", zap.NewNop())

	rec := models.NewAnswerRecord("req-2", "q")
	rec.MarkAsFailed("generation_failed", "sorry", 10)
	require.NoError(t, pub.PublishAnswer(context.Background(), rec))

	var ev AnswerEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &ev))
	assert.Equal(t, "generation_failed", ev.ErrorCode)
	assert.Equal(t, models.AnswerStateFailed, ev.State)
	assert.Empty(t, ev.References)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	writer := &recordingWriter{err: errors.New("broker not available")}
	pub := newKafkaPublisher(writer, "faq.answers", zap.NewNop())

	err := pub.PublishAnswer(context.Background(), completedRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "faq.answers")
}

func TestKafkaPublisher_Close(t *testing.T) {
	writer := &recordingWriter{}
	pub := newKafkaPublisher(writer, "t", zap.NewNop())

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())
	assert.Equal(t, 1, writer.closed)

	err := pub.PublishAnswer(context.Background(), completedRecord())
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestNewPublisher(t *testing.T) {
	pub := NewPublisher(config.EventsConfig{}, zap.NewNop())
	assert.IsType(t, NopPublisher{}, pub)
	assert.NoError(t, pub.PublishAnswer(context.Background(), completedRecord()))

	pub = NewPublisher(config.EventsConfig{KafkaBrokers: []string{"localhost:9092"}, Topic: "faq.answers"}, zap.NewNop())
	kp, ok := pub.(*KafkaPublisher)
	require.True(t, ok)
	assert.Equal(t, "faq.answers", kp.topic)
	assert.NoError(t, kp.Close())
}
