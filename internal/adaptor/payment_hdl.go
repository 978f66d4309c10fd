package adaptor

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"hostel-booking/internal/dto/request"
	"hostel-booking/internal/gateway"
	"hostel-booking/internal/usecase"
	"hostel-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxCallbackBody = 1 << 20

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// Initiate handles POST /api/reservations/{id}/payment
func (h *PaymentHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	var req request.InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	payment, err := h.service.InitiatePayment(r.Context(), actor, chi.URLParam(r, "id"), &req)
	if err != nil {
		handleServiceError(w, h.log, err, "initiate payment")
		return
	}

	utils.ResponseAccepted(w, "payment request sent to phone", payment)
}

// ListByReservation handles GET /api/reservations/{id}/payments
func (h *PaymentHandler) ListByReservation(w http.ResponseWriter, r *http.Request) {
	actor, ok := utils.GetActorFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return
	}

	payments, err := h.service.ListByReservation(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.log, err, "list payments")
		return
	}

	utils.ResponseSuccess(w, "success", payments)
}

type callbackAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var accepted = callbackAck{ResultCode: 0, ResultDesc: "Accepted"}

// Callback handles POST /api/payments/mpesa/callback. The gateway always
// gets a 200 ack; problems are logged, never surfaced, or it would retry.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		h.log.Warn("Unreadable gateway callback", zap.Error(err))
		utils.WriteJSON(w, http.StatusOK, accepted)
		return
	}

	cb, err := gateway.ParseCallback(body)
	if err != nil {
		h.log.Warn("Malformed gateway callback", zap.Error(err), zap.ByteString("body", body))
		utils.WriteJSON(w, http.StatusOK, accepted)
		return
	}

	if err := h.service.ReconcileCallback(r.Context(), cb); err != nil {
		h.log.Error("Failed to reconcile gateway callback",
			zap.Error(err),
			zap.String("checkout_id", cb.CheckoutID),
		)
	}

	utils.WriteJSON(w, http.StatusOK, accepted)
}

// Sweep handles POST /api/admin/payments/sweep: one timeout sweep, now.
func (h *PaymentHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.TimeoutSweep(r.Context(), time.Now())
	if err != nil {
		handleServiceError(w, h.log, err, "timeout sweep")
		return
	}

	utils.ResponseSuccess(w, "success", result)
}
