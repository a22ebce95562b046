package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dcastellon/staybook-backend/api/responses"
	"github.com/dcastellon/staybook-backend/api/validators"
	"github.com/dcastellon/staybook-backend/internal/bookings"
	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	pkgerrors "github.com/dcastellon/staybook-backend/pkg/errors"
	"github.com/dcastellon/staybook-backend/pkg/logger"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	dateLayout           = "2006-01-02"
)

// BookingService is the lifecycle surface the booking endpoints delegate to.
type BookingService interface {
	CreateHold(ctx context.Context, input bookings.CreateHoldInput) (*models.Booking, error)
	Find(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	Cancel(ctx context.Context, input bookings.CancelInput) (*models.Booking, error)
	PreviewRefund(ctx context.Context, bookingID uuid.UUID) (bookings.RefundPreview, error)
	Confirm(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	ReviewDecision(ctx context.Context, bookingID uuid.UUID, approve bool) (*models.Booking, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
}

type createBookingRequest struct {
	CustomerID  string `json:"customerId" validate:"required,uuid"`
	PropertyID  string `json:"propertyId" validate:"required,uuid"`
	CheckIn     string `json:"checkIn" validate:"required,datetime=2006-01-02"`
	CheckOut    string `json:"checkOut" validate:"required,datetime=2006-01-02"`
	RiskFlagged bool   `json:"riskFlagged"`
}

type cancelBookingRequest struct {
	CustomerID string `json:"customerId" validate:"required,uuid"`
}

type reviewDecisionRequest struct {
	Approve *bool `json:"approve" validate:"required"`
}

type bookingResponse struct {
	ID            uuid.UUID           `json:"id"`
	PropertyID    uuid.UUID           `json:"propertyId"`
	CustomerID    uuid.UUID           `json:"customerId"`
	CheckIn       string              `json:"checkIn"`
	CheckOut      string              `json:"checkOut"`
	Status        enums.BookingStatus `json:"status"`
	HoldExpiresAt *time.Time          `json:"holdExpiresAt,omitempty"`
	TotalPrice    decimal.Decimal     `json:"totalPrice"`
	RefundAmount  *decimal.Decimal    `json:"refundAmount,omitempty"`
	CancelledAt   *time.Time          `json:"cancelledAt,omitempty"`
	PaidAt        *time.Time          `json:"paidAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func toBookingResponse(b *models.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		PropertyID:    b.PropertyID,
		CustomerID:    b.CustomerID,
		CheckIn:       b.CheckIn.Format(dateLayout),
		CheckOut:      b.CheckOut.Format(dateLayout),
		Status:        b.Status,
		HoldExpiresAt: b.HoldExpiresAt,
		TotalPrice:    b.TotalPrice,
		RefundAmount:  b.RefundAmount,
		CancelledAt:   b.CancelledAt,
		PaidAt:        b.PaidAt,
		CreatedAt:     b.CreatedAt,
	}
}

// CreateBooking places a hold on the requested stay. The Idempotency-Key
// header is mandatory so client retries replay the first outcome.
func CreateBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotencyKeyHeader)
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header is required"))
			return
		}

		var payload createBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, _ := uuid.Parse(payload.CustomerID)
		propertyID, _ := uuid.Parse(payload.PropertyID)
		checkIn, _ := time.Parse(dateLayout, payload.CheckIn)
		checkOut, _ := time.Parse(dateLayout, payload.CheckOut)

		booking, err := svc.CreateHold(r.Context(), bookings.CreateHoldInput{
			CustomerID:     customerID,
			PropertyID:     propertyID,
			CheckIn:        checkIn,
			CheckOut:       checkOut,
			RiskFlagged:    payload.RiskFlagged,
			IdempotencyKey: key,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toBookingResponse(booking))
	}
}

func GetBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := bookingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Find(r.Context(), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

// CancelBooking cancels pre-payment for free or post-payment under the
// property's refund policy.
func CancelBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(idempotencyKeyHeader)
		if key == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header is required"))
			return
		}

		bookingID, err := bookingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelBookingRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, _ := uuid.Parse(payload.CustomerID)

		booking, err := svc.Cancel(r.Context(), bookings.CancelInput{
			BookingID:      bookingID,
			CustomerID:     customerID,
			IdempotencyKey: key,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

func PreviewRefund(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := bookingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		preview, err := svc.PreviewRefund(r.Context(), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

func ConfirmBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := bookingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.Confirm(r.Context(), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

// ReviewBooking resolves a risk-flagged hold: approve confirms, reject
// cancels and returns the inventory.
func ReviewBooking(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := bookingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload reviewDecisionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		booking, err := svc.ReviewDecision(r.Context(), bookingID, *payload.Approve)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

// ConfirmPayment marks a confirmed booking as paid. Normally driven by the
// payment provider callback, exposed here for the payment worker.
func ConfirmPayment(svc BookingService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookingID, err := bookingIDFromPath(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		booking, err := svc.ConfirmPayment(r.Context(), bookingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBookingResponse(booking))
	}
}

func bookingIDFromPath(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "bookingID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid booking id")
	}
	return id, nil
}
