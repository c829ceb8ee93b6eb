package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/portfolio-ai/concierge/internal/model"
)

const (
	// StreamName is the name of the question event stream.
	StreamName = "QUESTIONS"

	// SubjectPrefix is the prefix for all question subjects.
	SubjectPrefix = "questions"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the question stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      90 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		DenyDelete:  true,
		Description: "Question log and unanswered triage events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// EventSubject returns the subject for a question event.
func EventSubject(eventType model.EventType) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, eventType)
}

// FilterSubject returns the subject matching eventType, or every question
// event when eventType is empty.
func FilterSubject(eventType model.EventType) string {
	if eventType == "" {
		return SubjectPrefix + ".>"
	}
	return EventSubject(eventType)
}

// PublishQuestionEvent publishes an event to JetStream. The event id is used
// as the message id so a retried publish is deduplicated by the server.
func (m *StreamManager) PublishQuestionEvent(ctx context.Context, event *model.QuestionEvent) error {
	_, err := m.Publish(ctx, event)
	return err
}

// Publish publishes an event and returns its stream sequence.
func (m *StreamManager) Publish(ctx context.Context, event *model.QuestionEvent) (uint64, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, EventSubject(event.Type), data, jetstream.WithMsgID(event.ID))
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}

// ReadEvents returns up to limit events after sequence afterSequence,
// filtered by eventType when non-empty. It also returns the last sequence
// read so callers can page.
func (m *StreamManager) ReadEvents(ctx context.Context, eventType model.EventType, afterSequence uint64, limit int) ([]model.QuestionEvent, uint64, error) {
	js := m.client.JetStream()

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{FilterSubject(eventType)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.OrderedConsumer(ctx, StreamName, cfg)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
	}

	var (
		events       []model.QuestionEvent
		lastSequence = afterSequence
	)
	for msg := range batch.Messages() {
		var ev model.QuestionEvent
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			lastSequence = meta.Sequence.Stream
		}
		events = append(events, ev)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, jetstream.ErrNoMessages) {
		return nil, 0, fmt.Errorf("batch error: %w", err)
	}

	return events, lastSequence, nil
}
