package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/internal/cron"
	"github.com/dcastellon/staybook-backend/pkg/config"
	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	"github.com/dcastellon/staybook-backend/pkg/logger"
	"github.com/dcastellon/staybook-backend/pkg/outbox"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 5 * time.Second
	defaultPublishTimeout = 15 * time.Second
	maxBackoff            = time.Minute
	jitterWindow          = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchBatch(limit int) ([]models.OutboxEvent, error)
	DeleteBatch(tx *gorm.DB, ids []int64) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// ServiceParams wire the publisher dependencies.
type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	DLQRepository    dlqRepository
	Lock             cron.Lock
	PublisherFactory publisherFactory
}

// Service drains committed outbox rows to the broker. Rows are deleted only
// after every send in the cycle succeeds, so a crash or a broker failure can
// duplicate deliveries but never lose one.
type Service struct {
	cfg              *config.Config
	logg             *logger.Logger
	db               dbClient
	pubsub           pubSubClient
	repo             outboxRepository
	dlq              dlqRepository
	lock             cron.Lock
	publisherFactory publisherFactory
	publishers       map[string]publisher
	batchSize        int
	pollInterval     time.Duration
	publishTimeout   time.Duration
	renewInterval    time.Duration
}

// NewService validates dependencies and returns the publisher service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.DLQRepository == nil {
		return nil, errors.New("dlq repository is required")
	}
	if params.Lock == nil {
		return nil, errors.New("publisher lock is required")
	}

	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return newGCPPublisher(params.PubSub.Publisher(topic))
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.Outbox.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	publishTimeout := params.Config.Outbox.PublishTimeout
	if publishTimeout <= 0 {
		publishTimeout = defaultPublishTimeout
	}

	return &Service{
		cfg:              params.Config,
		logg:             params.Logger,
		db:               params.DB,
		pubsub:           params.PubSub,
		repo:             params.Repository,
		dlq:              params.DLQRepository,
		lock:             params.Lock,
		publisherFactory: factory,
		publishers:       map[string]publisher{},
		batchSize:        batch,
		pollInterval:     poll,
		publishTimeout:   publishTimeout,
		renewInterval:    params.Config.Outbox.LockRenewInterval,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run polls until the context is canceled. Each cycle takes the distributed
// lock so only one instance drains at a time.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox publisher context canceled")
			return ctx.Err()
		default:
		}

		drained, err := s.runCycle(ctx)
		if err != nil {
			s.logg.Error(ctx, "outbox publish cycle failed", err)
			backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
			if err := s.sleep(ctx, withJitter(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = s.pollInterval
		if drained {
			// More rows may already be waiting.
			continue
		}
		if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
			return err
		}
	}
}

// runCycle acquires the lock, drains batches until the table is empty, and
// releases the lock. It reports whether anything was published.
func (s *Service) runCycle(ctx context.Context) (bool, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		return false, nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release publisher lock", relErr)
		}
	}()

	drainedAny := false
	lastRenew := time.Now()
	for {
		processed, err := s.processBatch(ctx)
		if err != nil {
			return drainedAny, err
		}
		if !processed {
			return drainedAny, nil
		}
		drainedAny = true

		if s.renewInterval > 0 && time.Since(lastRenew) >= s.renewInterval {
			ok, err := s.lock.Renew(ctx)
			if err != nil {
				return drainedAny, fmt.Errorf("lock renew: %w", err)
			}
			if !ok {
				s.logg.Warn(ctx, "publisher lock lost mid-drain; stopping this cycle")
				return drainedAny, nil
			}
			lastRenew = time.Now()
		}
	}
}

// processBatch publishes one batch. Undecodable or unroutable rows move to
// the dead-letter table in their own transaction; deliverable rows are sent
// grouped by topic and deleted together only after every send succeeded.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	rows, err := s.repo.FetchBatch(s.batchSize)
	if err != nil {
		return false, fmt.Errorf("fetch batch: %w", err)
	}
	if len(rows) == 0 {
		return false, nil
	}

	type pendingMessage struct {
		row      models.OutboxEvent
		envelope outbox.PayloadEnvelope
	}
	byTopic := map[string][]pendingMessage{}
	topicOrder := []string{}
	publishable := []int64{}

	for _, row := range rows {
		var envelope outbox.PayloadEnvelope
		if err := json.Unmarshal(row.Payload, &envelope); err != nil {
			if dlqErr := s.moveToDLQ(ctx, row, enums.OutboxDLQReasonBadEnvelope, err); dlqErr != nil {
				return false, dlqErr
			}
			continue
		}
		if row.Topic == "" {
			if dlqErr := s.moveToDLQ(ctx, row, enums.OutboxDLQReasonNoTopic, errors.New("row has no topic")); dlqErr != nil {
				return false, dlqErr
			}
			continue
		}
		if _, seen := byTopic[row.Topic]; !seen {
			topicOrder = append(topicOrder, row.Topic)
		}
		byTopic[row.Topic] = append(byTopic[row.Topic], pendingMessage{row: row, envelope: envelope})
		publishable = append(publishable, row.ID)
	}

	if len(publishable) == 0 {
		return true, nil
	}

	// One send per topic per cycle keeps within-topic creation order for the
	// rows of this batch. A failure anywhere aborts the cycle before any
	// delete, so every row is retried next time.
	for _, topic := range topicOrder {
		pending := byTopic[topic]
		pub := s.publishers[topic]
		if pub == nil {
			pub = s.publisherFactory(topic)
			if pub == nil {
				row := pending[0].row
				if dlqErr := s.moveToDLQ(ctx, row, enums.OutboxDLQReasonNoTopic, fmt.Errorf("publisher not configured for topic %s", topic)); dlqErr != nil {
					return false, dlqErr
				}
				return false, fmt.Errorf("publisher not configured for topic %s", topic)
			}
			s.publishers[topic] = pub
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		results := make([]publishResult, len(pending))
		for i, msg := range pending {
			message := &gcppubsub.Message{
				Data: msg.row.Payload,
				Attributes: map[string]string{
					"event-id":       msg.envelope.EventID,
					"event-type":     string(msg.envelope.EventType),
					"topic":          topic,
					"created-at":     msg.row.CreatedAt.Format(time.RFC3339Nano),
					"schema-version": fmt.Sprintf("%d", msg.envelope.SchemaVersion),
				},
			}
			if msg.row.EventKey != nil {
				message.OrderingKey = *msg.row.EventKey
			}
			results[i] = pub.Publish(publishCtx, message)
		}
		for i, result := range results {
			if result == nil {
				cancel()
				return false, fmt.Errorf("publish %s to %s: nil result", pending[i].envelope.EventID, topic)
			}
			if _, err := result.Get(publishCtx); err != nil {
				cancel()
				return false, fmt.Errorf("publish %s to %s: %w", pending[i].envelope.EventID, topic, err)
			}
		}
		cancel()

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"topic": topic,
			"count": len(pending),
		})
		s.logg.Info(logCtx, "outbox batch published")
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.DeleteBatch(tx, publishable)
	})
	if err != nil {
		// Sends succeeded but the delete did not; the rows will be sent again.
		// Consumers dedupe on the event-id attribute.
		return false, fmt.Errorf("delete published rows: %w", err)
	}
	return true, nil
}

// moveToDLQ removes an undeliverable row and records it, atomically, so the
// batch loop never sees it again.
func (s *Service) moveToDLQ(ctx context.Context, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"outbox_id":    row.ID,
		"topic":        row.Topic,
		"error_reason": reason,
		"error":        cause.Error(),
	})
	s.logg.Warn(logCtx, "outbox row moved to dead letter")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:      row.ID,
		Topic:        row.Topic,
		Payload:      row.Payload,
		ErrorReason:  reason,
		ErrorMessage: &message,
		FailedAt:     time.Now().UTC(),
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %d: %w", row.ID, err)
		}
		if err := s.repo.DeleteBatch(tx, []int64{row.ID}); err != nil {
			return fmt.Errorf("delete dlq source %d: %w", row.ID, err)
		}
		return nil
	})
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	p.EnableMessageOrdering = true
	return &gcpPublisher{Publisher: p}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}
