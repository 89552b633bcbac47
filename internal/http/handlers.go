package http

import (
	"context"
	"encoding/json"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/stadium-bookings/internal/booking"
	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
	"github.com/robertarktes/stadium-bookings/internal/payments"
)

// RateLookup resolves the current hourly rate of a stadium.
type RateLookup interface {
	StadiumRate(ctx context.Context, stadiumID string) (decimal.Decimal, error)
}

type ReadyCheck func(ctx context.Context) error

type Handlers struct {
	svc      *booking.Service
	catalog  RateLookup
	payments *payments.Handler
	loc      *time.Location
	logger   observability.Logger
	validate *validator.Validate
	checks   map[string]ReadyCheck
}

// NewHandlers wires the booking service to HTTP. catalog may be nil, in which
// case create requests must carry price_per_hour.
func NewHandlers(svc *booking.Service, catalog RateLookup, paymentsHandler *payments.Handler, loc *time.Location, logger observability.Logger) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &Handlers{
		svc:      svc,
		catalog:  catalog,
		payments: paymentsHandler,
		loc:      loc,
		logger:   logger,
		validate: validate,
		checks:   map[string]ReadyCheck{},
	}
}

func (h *Handlers) AddReadyCheck(name string, check ReadyCheck) {
	h.checks[name] = check
}

type createBookingRequest struct {
	StadiumID     string              `json:"stadium_id" validate:"required,max=64"`
	Date          string              `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime     string              `json:"start_time" validate:"required,datetime=15:04"`
	DurationHours float64             `json:"duration_hours" validate:"required,gt=0"`
	PricePerHour  decimal.NullDecimal `json:"price_per_hour" validate:"-"`
}

type confirmRequest struct {
	Succeeded     *bool  `json:"succeeded" validate:"required"`
	TransactionID string `json:"transaction_id" validate:"max=128"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type bookingResponse struct {
	ID                 string     `json:"id"`
	StadiumID          string     `json:"stadium_id"`
	BookedBy           string     `json:"booked_by,omitempty"`
	Date               string     `json:"date"`
	StartTime          string     `json:"start_time"`
	StartsAt           time.Time  `json:"starts_at"`
	DurationHours      float64    `json:"duration_hours"`
	PricePerHour       string     `json:"price_per_hour"`
	TotalPrice         string     `json:"total_price"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	PaymentReference   string     `json:"payment_reference,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	RefundAmount       *string    `json:"refund_amount,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Version            int64      `json:"version"`
}

func (h *Handlers) toResponse(b domain.Booking) bookingResponse {
	local := b.StartsAt.In(h.loc)
	resp := bookingResponse{
		ID:                 b.ID.String(),
		StadiumID:          b.StadiumID,
		BookedBy:           b.BookedBy,
		Date:               local.Format(domain.DateLayout),
		StartTime:          local.Format(domain.StartTimeLayout),
		StartsAt:           b.StartsAt,
		DurationHours:      b.DurationHours,
		PricePerHour:       b.PricePerHour.String(),
		TotalPrice:         b.TotalPrice.String(),
		Status:             string(b.Status),
		PaymentStatus:      string(b.PaymentStatus),
		PaymentReference:   b.PaymentReference,
		CancellationReason: b.CancellationReason,
		CreatedAt:          b.CreatedAt,
		UpdatedAt:          b.UpdatedAt,
		CancelledAt:        b.CancelledAt,
		CompletedAt:        b.CompletedAt,
		Version:            b.Version,
	}
	if b.RefundAmount.Valid {
		refund := b.RefundAmount.Decimal.String()
		resp.RefundAmount = &refund
	}
	return resp
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	startsAt, err := domain.ParseSchedule(req.Date, req.StartTime, h.loc)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	price := req.PricePerHour.Decimal
	if !req.PricePerHour.Valid {
		if h.catalog == nil {
			h.writeError(w, r, domain.ValidationErrorf("price_per_hour is required"))
			return
		}
		price, err = h.catalog.StadiumRate(r.Context(), req.StadiumID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	b, err := h.svc.CreateBooking(r.Context(), booking.CreateRequest{
		StadiumID:     req.StadiumID,
		BookedBy:      PrincipalFromContext(r.Context()),
		StartsAt:      startsAt,
		DurationHours: req.DurationHours,
		PricePerHour:  price,
	})
	observeTransition("create", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toResponse(b))
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(b))
}

func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req confirmRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.svc.ConfirmPayment(r.Context(), id, domain.PaymentProof{
		Succeeded:     *req.Succeeded,
		TransactionID: req.TransactionID,
	})
	observeTransition("confirm", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toResponse(b))
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	now := h.svc.Now()
	b, err := h.svc.CancelBooking(r.Context(), id, req.Reason, now)
	observeTransition("cancel", err)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if b.RefundAmount.Valid {
		amount, _ := b.RefundAmount.Decimal.Float64()
		observability.RefundAmount.WithLabelValues(string(domain.RefundTierFor(b.StartsAt, now))).Observe(amount)
	}
	writeJSON(w, http.StatusOK, h.toResponse(b))
}

type refundQuoteResponse struct {
	BookingID       string    `json:"booking_id"`
	Tier            string    `json:"tier"`
	Amount          string    `json:"amount"`
	TotalPrice      string    `json:"total_price"`
	HoursUntilStart float64   `json:"hours_until_start"`
	At              time.Time `json:"at"`
}

func (h *Handlers) QuoteRefund(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bookingID(w, r)
	if !ok {
		return
	}
	at := h.svc.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, domain.ValidationErrorf("at must be RFC3339: %v", err))
			return
		}
		at = parsed
	}
	q, err := h.svc.QuoteRefund(r.Context(), id, at)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refundQuoteResponse{
		BookingID:       q.BookingID,
		Tier:            string(q.Tier),
		Amount:          q.Amount.String(),
		TotalPrice:      q.TotalPrice.String(),
		HoursUntilStart: q.HoursUntilStart,
		At:              q.At,
	})
}

// PaymentCallback takes the provider's verdict. Results that cannot be
// applied are acknowledged with 200 so the provider stops retrying.
func (h *Handlers) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req payments.Result
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.payments.Handle(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			result[name] = err.Error()
			continue
		}
		result[name] = "ok"
	}
	writeJSON(w, status, result)
}

func (h *Handlers) bookingID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, domain.ValidationErrorf("invalid booking id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handlers) decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.ValidationErrorf("invalid request body: %v", err)
	}
	if err := h.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.ValidationErrorf("field %s failed %s validation", fe.Field(), fe.Tag())
		}
		return domain.ValidationErrorf("invalid request: %v", err)
	}
	return nil
}

func observeTransition(op string, err error) {
	observability.BookingTransitions.WithLabelValues(op, errorKind(err)).Inc()
}
