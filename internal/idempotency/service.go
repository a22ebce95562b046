package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/config"
	"github.com/dcastellon/staybook-backend/pkg/db"
	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	pkgerrors "github.com/dcastellon/staybook-backend/pkg/errors"
	"github.com/dcastellon/staybook-backend/pkg/logger"
)

// Scope identifies one logical request: the same user retrying the same
// endpoint with the same client key lands on the same record.
type Scope struct {
	UserID   uuid.UUID
	Endpoint string
	Key      string
}

// Outcome tells the caller what to do with the request.
type Outcome int

const (
	// OutcomeProceed means the caller owns the record and must run the operation.
	OutcomeProceed Outcome = iota
	// OutcomeReplay means a completed record exists; return its stored response.
	OutcomeReplay
)

// Decision is the result of BeginOrReuse.
type Decision struct {
	Outcome    Outcome
	RecordID   uuid.UUID
	Response   json.RawMessage
	ResourceID *uuid.UUID
}

// ServiceParams wires the idempotency gate dependencies.
type ServiceParams struct {
	DB     *gorm.DB
	Config config.IdempotencyConfig
	Logger *logger.Logger
	Now    func() time.Time
}

// Service is the database-backed idempotency gate for mutating operations.
type Service struct {
	db   *gorm.DB
	cfg  config.IdempotencyConfig
	logg *logger.Logger
	now  func() time.Time
}

// NewService validates dependencies and returns the gate.
func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("idempotency: db is required")
	}
	if params.Config.TTL <= 0 {
		return nil, fmt.Errorf("idempotency: ttl must be positive")
	}
	if params.Config.StaleAfter <= 0 {
		return nil, fmt.Errorf("idempotency: stale-after must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{db: params.DB, cfg: params.Config, logg: params.Logger, now: now}, nil
}

// HashPayload fingerprints a request body for conflict detection.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// BeginOrReuse claims the record for this scope or replays a finished one.
//
// A live record with a different payload hash is a client error: the key was
// reused for a different request. A live in_progress record that is younger
// than StaleAfter means another worker still owns it; the caller should back
// off. Everything else (failed, expired, stale in_progress) is reclaimed so
// the retry can run.
func (s *Service) BeginOrReuse(ctx context.Context, scope Scope, payloadHash string) (Decision, error) {
	if scope.Key == "" {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	now := s.now()

	var record models.IdempotencyRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ? AND key = ?", scope.UserID, scope.Endpoint, scope.Key).
		First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.create(ctx, scope, payloadHash, now)
	case err != nil:
		return Decision{}, fmt.Errorf("load idempotency record: %w", err)
	}

	expired := !record.ExpiresAt.After(now)
	if !expired && record.PayloadHash != payloadHash {
		return Decision{}, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body")
	}

	if !expired {
		switch record.Status {
		case enums.IdempotencyOK:
			return Decision{
				Outcome:    OutcomeReplay,
				RecordID:   record.ID,
				Response:   record.Response,
				ResourceID: record.ResourceID,
			}, nil
		case enums.IdempotencyInProgress:
			if now.Sub(record.CreatedAt) < s.cfg.StaleAfter {
				return Decision{}, pkgerrors.New(pkgerrors.CodeInProgress, "request is already being processed")
			}
		}
	}

	return s.reclaim(ctx, record, payloadHash, now)
}

func (s *Service) create(ctx context.Context, scope Scope, payloadHash string, now time.Time) (Decision, error) {
	record := models.IdempotencyRecord{
		ID:          uuid.New(),
		UserID:      scope.UserID,
		Endpoint:    scope.Endpoint,
		Key:         scope.Key,
		PayloadHash: payloadHash,
		Status:      enums.IdempotencyInProgress,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if db.IsUniqueViolation(err, "ux_idempotency_scope") {
			// Lost the insert race; the winner owns the record.
			return Decision{}, pkgerrors.New(pkgerrors.CodeInProgress, "request is already being processed")
		}
		return Decision{}, fmt.Errorf("create idempotency record: %w", err)
	}
	return Decision{Outcome: OutcomeProceed, RecordID: record.ID}, nil
}

// reclaim takes over a failed, expired, or stale record. The conditional
// update arbitrates concurrent claimants: only one retry flips the row.
func (s *Service) reclaim(ctx context.Context, record models.IdempotencyRecord, payloadHash string, now time.Time) (Decision, error) {
	result := s.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("id = ? AND status = ? AND created_at = ?", record.ID, record.Status, record.CreatedAt).
		Updates(map[string]any{
			"status":       enums.IdempotencyInProgress,
			"payload_hash": payloadHash,
			"response":     nil,
			"resource_id":  nil,
			"last_error":   nil,
			"created_at":   now,
			"expires_at":   now.Add(s.cfg.TTL),
		})
	if result.Error != nil {
		return Decision{}, fmt.Errorf("reclaim idempotency record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return Decision{}, pkgerrors.New(pkgerrors.CodeInProgress, "request is already being processed")
	}
	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "record_id", record.ID.String())
		s.logg.Info(logCtx, "idempotency record reclaimed")
	}
	return Decision{Outcome: OutcomeProceed, RecordID: record.ID}, nil
}

// CompleteOK stores the canonical response inside the caller's transaction so
// the result and its replay record commit together.
func (s *Service) CompleteOK(ctx context.Context, tx *gorm.DB, recordID uuid.UUID, response json.RawMessage, resourceID *uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "idempotency: complete requires a transaction")
	}
	result := tx.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("id = ? AND status = ?", recordID, enums.IdempotencyInProgress).
		Updates(map[string]any{
			"status":      enums.IdempotencyOK,
			"response":    response,
			"resource_id": resourceID,
		})
	if result.Error != nil {
		return fmt.Errorf("complete idempotency record: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "idempotency record is no longer in progress")
	}
	return nil
}

// CompleteFailed marks the record failed so a later retry can reclaim it.
// Runs outside the business transaction, which has already rolled back.
func (s *Service) CompleteFailed(ctx context.Context, recordID uuid.UUID, cause error) error {
	var message *string
	if cause != nil {
		text := cause.Error()
		message = &text
	}
	result := s.db.WithContext(ctx).
		Model(&models.IdempotencyRecord{}).
		Where("id = ? AND status = ?", recordID, enums.IdempotencyInProgress).
		Updates(map[string]any{
			"status":     enums.IdempotencyFailed,
			"last_error": message,
		})
	if result.Error != nil {
		return fmt.Errorf("fail idempotency record: %w", result.Error)
	}
	return nil
}

// DeleteExpired prunes records whose TTL passed before the cutoff.
func (s *Service) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.IdempotencyRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete expired idempotency records: %w", result.Error)
	}
	return result.RowsAffected, nil
}
