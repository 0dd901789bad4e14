package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/core-platform/M04-user-service/internal/ports"
)

type fakeOutbox struct {
	mu           sync.Mutex
	records      []ports.OutboxRecord
	published    map[uuid.UUID]bool
	failed       map[uuid.UUID]int
	deadLettered map[uuid.UUID]string
}

func newFakeOutbox(records ...ports.OutboxRecord) *fakeOutbox {
	return &fakeOutbox{
		records:      records,
		published:    map[uuid.UUID]bool{},
		failed:       map[uuid.UUID]int{},
		deadLettered: map[uuid.UUID]string{},
	}
}

func (f *fakeOutbox) Enqueue(context.Context, ports.OutboxEvent) error { return nil }

func (f *fakeOutbox) ClaimUnpublished(_ context.Context, limit int, claimToken string, _ time.Time) ([]ports.OutboxRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.OutboxRecord, 0, limit)
	for _, rec := range f.records {
		if len(out) == limit {
			break
		}
		if f.published[rec.OutboxID] {
			continue
		}
		if _, dead := f.deadLettered[rec.OutboxID]; dead {
			continue
		}
		rec.RetryCount += f.failed[rec.OutboxID]
		token := claimToken
		rec.ClaimToken = &token
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, id uuid.UUID, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[id] = true
	return nil
}

func (f *fakeOutbox) MarkFailed(_ context.Context, id uuid.UUID, _, _ string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id]++
	return nil
}

func (f *fakeOutbox) MarkDeadLettered(_ context.Context, id uuid.UUID, _, errMsg string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered[id] = errMsg
	return nil
}

type publishedMessage struct {
	eventType    string
	partitionKey string
}

type fakePublisher struct {
	mu       sync.Mutex
	failFor  map[string]bool
	messages []publishedMessage
}

func (p *fakePublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[eventType] {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, publishedMessage{eventType: eventType, partitionKey: partitionKey})
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func record(eventType, key string, retries int) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:     uuid.New(),
		EventType:    eventType,
		PartitionKey: key,
		Payload:      []byte(`{}`),
		RetryCount:   retries,
	}
}

func TestOutboxWorkerPublishesWithPartitionKey(t *testing.T) {
	t.Parallel()

	rec := record("verification.session.created", "user-1", 0)
	outbox := newFakeOutbox(rec)
	publisher := &fakePublisher{}
	worker := NewOutboxWorker(quietLogger(), outbox, publisher, OutboxWorkerConfig{MaxRetries: 3})

	result, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Published != 1 || !outbox.published[rec.OutboxID] {
		t.Fatalf("expected record published, got %+v", result)
	}
	if len(publisher.messages) != 1 || publisher.messages[0].partitionKey != "user-1" {
		t.Fatalf("unexpected messages: %+v", publisher.messages)
	}
}

func TestOutboxWorkerRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()

	rec := record("user.registered", "user-2", 0)
	outbox := newFakeOutbox(rec)
	publisher := &fakePublisher{failFor: map[string]bool{"user.registered": true}}
	worker := NewOutboxWorker(quietLogger(), outbox, publisher, OutboxWorkerConfig{MaxRetries: 2})

	first, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if first.Failed != 1 || first.DeadLettered != 0 || outbox.failed[rec.OutboxID] != 1 {
		t.Fatalf("expected retry scheduled, got %+v", first)
	}

	second, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if second.DeadLettered != 1 {
		t.Fatalf("expected dead letter, got %+v", second)
	}
	if msg := outbox.deadLettered[rec.OutboxID]; msg != "broker unavailable" {
		t.Fatalf("unexpected dead letter reason %q", msg)
	}
}

func TestOutboxWorkerDeadLettersExhaustedRecordWithoutPublishing(t *testing.T) {
	t.Parallel()

	rec := record("user.info.connected", "user-3", 5)
	outbox := newFakeOutbox(rec)
	publisher := &fakePublisher{}
	worker := NewOutboxWorker(quietLogger(), outbox, publisher, OutboxWorkerConfig{MaxRetries: 5})

	result, err := worker.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.DeadLettered != 1 || len(publisher.messages) != 0 {
		t.Fatalf("expected dead letter without publish, got %+v / %+v", result, publisher.messages)
	}
}

func TestOutboxWorkerRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	worker := NewOutboxWorker(quietLogger(), newFakeOutbox(), &fakePublisher{}, OutboxWorkerConfig{Interval: 10 * time.Millisecond})
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestKafkaPublisherTopicMapping(t *testing.T) {
	t.Parallel()

	if _, err := NewKafkaPublisher(nil, nil); err == nil {
		t.Fatal("expected error without brokers")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, map[string]string{
		"verification.decision.recorded": "user.verification.v1",
	})
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	if got := p.topicFor("verification.decision.recorded"); got != "user.verification.v1" {
		t.Fatalf("unexpected topic %q", got)
	}
	if got := p.topicFor("user.registered"); got != "user.registered" {
		t.Fatalf("unexpected fallback topic %q", got)
	}
}
