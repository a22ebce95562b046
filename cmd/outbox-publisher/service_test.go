package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/config"
	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	"github.com/dcastellon/staybook-backend/pkg/logger"
	"github.com/dcastellon/staybook-backend/pkg/outbox"
)

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

type fakePubSub struct{}

func (fakePubSub) Ping(context.Context) error            { return nil }
func (fakePubSub) Publisher(string) *gcppubsub.Publisher { return nil }

type fakeRepo struct {
	events  []models.OutboxEvent
	deletes [][]int64
}

func (f *fakeRepo) FetchBatch(limit int) ([]models.OutboxEvent, error) {
	if limit > len(f.events) {
		limit = len(f.events)
	}
	batch := make([]models.OutboxEvent, limit)
	copy(batch, f.events[:limit])
	return batch, nil
}

func (f *fakeRepo) DeleteBatch(_ *gorm.DB, ids []int64) error {
	f.deletes = append(f.deletes, ids)
	remaining := f.events[:0]
	for _, event := range f.events {
		keep := true
		for _, id := range ids {
			if event.ID == id {
				keep = false
				break
			}
		}
		if keep {
			remaining = append(remaining, event)
		}
	}
	f.events = remaining
	return nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakeLock struct {
	held     bool
	acquired int
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquired++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Renew(context.Context) (bool, error) { return f.held, nil }

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakePublishResult{err: f.err}
}

func newTestService(t *testing.T, repo *fakeRepo, dlq *fakeDLQRepo, lock *fakeLock, publishers map[string]*fakePublisher) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 50
	cfg.Outbox.PollInterval = 10 * time.Millisecond
	cfg.Outbox.PublishTimeout = time.Second

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logger.New(logger.Options{ServiceName: "outbox-test"}),
		DB:            fakeDB{},
		PubSub:        fakePubSub{},
		Repository:    repo,
		DLQRepository: dlq,
		Lock:          lock,
		PublisherFactory: func(topic string) publisher {
			pub, ok := publishers[topic]
			if !ok {
				return nil
			}
			return pub
		},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func envelopePayload(t *testing.T, eventType enums.OutboxEventType) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		SchemaVersion: 1,
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		Data:          json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

func strPtr(s string) *string { return &s }

func TestProcessBatchGroupsByTopicAndDeletesAfterAllSends(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{ID: 1, Topic: "booking.events", EventKey: strPtr("b-1"), Payload: envelopePayload(t, enums.EventBookingHeld)},
			{ID: 2, Topic: "inventory.events", EventKey: strPtr("p-1"), Payload: envelopePayload(t, enums.EventReservationReleased)},
			{ID: 3, Topic: "booking.events", EventKey: strPtr("b-2"), Payload: envelopePayload(t, enums.EventBookingExpired)},
		},
	}
	booking := &fakePublisher{}
	inventory := &fakePublisher{}
	service := newTestService(t, repo, &fakeDLQRepo{}, &fakeLock{}, map[string]*fakePublisher{
		"booking.events":   booking,
		"inventory.events": inventory,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected processed batch")
	}
	if len(booking.messages) != 2 {
		t.Fatalf("booking topic got %d messages", len(booking.messages))
	}
	if len(inventory.messages) != 1 {
		t.Fatalf("inventory topic got %d messages", len(inventory.messages))
	}
	if booking.messages[0].OrderingKey != "b-1" || booking.messages[1].OrderingKey != "b-2" {
		t.Fatalf("ordering keys out of order: %q, %q", booking.messages[0].OrderingKey, booking.messages[1].OrderingKey)
	}
	if booking.messages[0].Attributes["event-id"] == "" {
		t.Fatal("event-id attribute missing")
	}
	if len(repo.deletes) != 1 {
		t.Fatalf("expected one delete call, got %d", len(repo.deletes))
	}
	if got := repo.deletes[0]; len(got) != 3 {
		t.Fatalf("expected all three rows deleted together, got %v", got)
	}
	if len(repo.events) != 0 {
		t.Fatalf("expected empty table, %d rows left", len(repo.events))
	}
}

func TestProcessBatchKeepsEveryRowWhenOneTopicFails(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{ID: 1, Topic: "booking.events", Payload: envelopePayload(t, enums.EventBookingHeld)},
			{ID: 2, Topic: "inventory.events", Payload: envelopePayload(t, enums.EventReservationReleased)},
		},
	}
	booking := &fakePublisher{}
	inventory := &fakePublisher{err: errors.New("broker unavailable")}
	service := newTestService(t, repo, &fakeDLQRepo{}, &fakeLock{}, map[string]*fakePublisher{
		"booking.events":   booking,
		"inventory.events": inventory,
	})

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatal("expected the failed send to surface")
	}
	if len(repo.deletes) != 0 {
		t.Fatalf("no rows may be deleted after a failed send, got %v", repo.deletes)
	}
	if len(repo.events) != 2 {
		t.Fatalf("expected both rows retained, got %d", len(repo.events))
	}
}

func TestProcessBatchMovesPoisonRowsToDeadLetter(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{ID: 1, Topic: "booking.events", Payload: json.RawMessage(`{not json`)},
			{ID: 2, Topic: "booking.events", Payload: envelopePayload(t, enums.EventBookingHeld)},
			{ID: 3, Topic: "", Payload: envelopePayload(t, enums.EventBookingPaid)},
		},
	}
	booking := &fakePublisher{}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, dlq, &fakeLock{}, map[string]*fakePublisher{
		"booking.events": booking,
	})

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected processed batch")
	}
	if len(dlq.entries) != 2 {
		t.Fatalf("expected 2 dead-letter entries, got %d", len(dlq.entries))
	}
	if dlq.entries[0].ErrorReason != enums.OutboxDLQReasonBadEnvelope {
		t.Fatalf("unexpected reason %s", dlq.entries[0].ErrorReason)
	}
	if dlq.entries[1].ErrorReason != enums.OutboxDLQReasonNoTopic {
		t.Fatalf("unexpected reason %s", dlq.entries[1].ErrorReason)
	}
	if len(booking.messages) != 1 {
		t.Fatalf("deliverable row should still publish, got %d messages", len(booking.messages))
	}
	if len(repo.events) != 0 {
		t.Fatalf("expected all rows removed, %d left", len(repo.events))
	}
}

func TestRunCycleSkipsWithoutLock(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{ID: 1, Topic: "booking.events", Payload: envelopePayload(t, enums.EventBookingHeld)},
		},
	}
	lock := &fakeLock{held: true}
	service := newTestService(t, repo, &fakeDLQRepo{}, lock, map[string]*fakePublisher{})

	drained, err := service.runCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if drained {
		t.Fatal("cycle must not drain without the lock")
	}
	if len(repo.events) != 1 {
		t.Fatalf("rows must be untouched, got %d", len(repo.events))
	}
}

func TestRunCycleDrainsUntilEmptyAndReleasesLock(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			{ID: 1, Topic: "booking.events", Payload: envelopePayload(t, enums.EventBookingHeld)},
			{ID: 2, Topic: "booking.events", Payload: envelopePayload(t, enums.EventBookingPaid)},
		},
	}
	lock := &fakeLock{}
	booking := &fakePublisher{}
	service := newTestService(t, repo, &fakeDLQRepo{}, lock, map[string]*fakePublisher{
		"booking.events": booking,
	})
	service.batchSize = 1

	drained, err := service.runCycle(context.Background())
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if !drained {
		t.Fatal("expected a drained cycle")
	}
	if len(repo.events) != 0 {
		t.Fatalf("expected empty table, %d rows left", len(repo.events))
	}
	if len(booking.messages) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(booking.messages))
	}
	if lock.releases != 1 {
		t.Fatalf("lock must be released once, got %d", lock.releases)
	}
}
