package adaptor

import (
	"errors"
	"net/http"

	"hostel-booking/internal/usecase"
	"hostel-booking/pkg/utils"

	"go.uber.org/zap"
)

// errorKinds maps each usecase error to its status and a stable kind name
// clients can switch on.
var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{usecase.ErrValidation, http.StatusBadRequest, "Validation"},
	{usecase.ErrNotFound, http.StatusNotFound, "NotFound"},
	{usecase.ErrNotAStudent, http.StatusForbidden, "NotAStudent"},
	{usecase.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{usecase.ErrRoomUnavailable, http.StatusConflict, "RoomUnavailable"},
	{usecase.ErrAlreadyTerminal, http.StatusConflict, "AlreadyTerminal"},
	{usecase.ErrInvalidTransition, http.StatusConflict, "InvalidTransition"},
	{usecase.ErrReservationNotPending, http.StatusConflict, "ReservationNotPending"},
	{usecase.ErrPaymentAlreadyInFlight, http.StatusConflict, "PaymentAlreadyInFlight"},
	{usecase.ErrPaymentAttemptsExhausted, http.StatusConflict, "PaymentAttemptsExhausted"},
	{usecase.ErrGatewayUnavailable, http.StatusBadGateway, "GatewayUnavailable"},
	{usecase.ErrGatewayRejected, http.StatusBadGateway, "GatewayRejected"},
}

type errorBody struct {
	Kind string `json:"kind"`
}

func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	for _, k := range errorKinds {
		if !errors.Is(err, k.err) {
			continue
		}
		if k.status >= http.StatusInternalServerError {
			log.Warn(operation+" failed", zap.Error(err), zap.String("kind", k.kind))
		} else {
			log.Info(operation+" rejected", zap.Error(err), zap.String("kind", k.kind))
		}
		utils.ResponseJSON(w, k.status, false, err.Error(), nil, errorBody{Kind: k.kind})
		return
	}

	log.Error(operation+" failed", zap.Error(err))
	utils.ResponseInternalError(w, "Internal server error")
}
