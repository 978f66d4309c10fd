package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hostel-booking/internal/data/entity"
	"hostel-booking/internal/data/repository"
	"hostel-booking/internal/dto/request"
	"hostel-booking/internal/dto/response"
	"hostel-booking/internal/gateway"
	"hostel-booking/pkg/metrics"
	"hostel-booking/pkg/utils"

	"go.uber.org/zap"
)

const (
	paymentDescription = "Booking Payment"
	sweepBatchSize     = 100
)

type PaymentService interface {
	InitiatePayment(ctx context.Context, actor entity.Actor, reservationID string, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error)
	// ReconcileCallback applies a gateway outcome. Unknown checkout ids and
	// callbacks for settled payments are ignored; only store failures are
	// returned.
	ReconcileCallback(ctx context.Context, cb *gateway.Callback) error
	TimeoutSweep(ctx context.Context, now time.Time) (SweepResult, error)
	ListByReservation(ctx context.Context, actor entity.Actor, reservationID string) ([]response.PaymentResponse, error)
}

type SweepResult struct {
	Scanned  int `json:"scanned"`
	Expired  int `json:"expired"`
	Released int `json:"released"`
}

type paymentService struct {
	repo         *repository.Repository
	reservations ReservationService
	gateway      gateway.Client
	config       utils.PaymentConfig
	metrics      *metrics.Metrics
	log          *zap.Logger
	now          clock
}

func NewPaymentService(
	repo *repository.Repository,
	reservations ReservationService,
	gw gateway.Client,
	config utils.PaymentConfig,
	m *metrics.Metrics,
	log *zap.Logger,
) PaymentService {
	return &paymentService{
		repo:         repo,
		reservations: reservations,
		gateway:      gw,
		config:       config,
		metrics:      m,
		log:          log.With(zap.String("service", "payment")),
		now:          time.Now,
	}
}

func (s *paymentService) InitiatePayment(ctx context.Context, actor entity.Actor, reservationID string, req *request.InitiatePaymentRequest) (*response.PaymentResponse, error) {
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Initiate payment validation failed", zap.Any("errors", errs))
		return nil, fmt.Errorf("%w: %s", ErrValidation, utils.FormatValidationErrors(errs))
	}

	reservation, level, err := loadReadable(ctx, s.repo, actor, reservationID)
	if err != nil {
		return nil, err
	}
	if level != accessOwner {
		return nil, fmt.Errorf("only the requester pays for a reservation: %w", ErrForbidden)
	}
	if reservation.Status != entity.ReservationStatusPending {
		return nil, ErrReservationNotPending
	}

	payment, err := s.claimPaymentSlot(ctx, reservation, actor, req)
	if err != nil {
		s.metrics.PaymentsStarted.WithLabelValues(resultLabel(err)).Inc()
		return nil, err
	}

	phone := reservation.Contact.Phone
	if req.Phone != nil {
		phone = *req.Phone
	}

	// No transaction is held across the network call. The submission lease
	// makes this caller the only one pushing for the row.
	result, err := s.gateway.Push(ctx, gateway.PushRequest{
		Amount:           req.Amount,
		Phone:            phone,
		AccountReference: reservation.ShortRef(),
		Description:      paymentDescription,
	})
	if err != nil {
		mapped := ErrGatewayUnavailable
		if errors.Is(err, gateway.ErrRejected) {
			mapped = ErrGatewayRejected
		}
		s.metrics.PaymentsStarted.WithLabelValues(resultLabel(mapped)).Inc()
		s.log.Warn("Push payment failed, payment left NOT_PAID",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
			zap.String("reservation_id", reservationID),
		)
		if err := s.repo.Payment.ReleaseSubmission(context.WithoutCancel(ctx), payment.ID, s.now()); err != nil {
			s.log.Error("Payment stays leased until the timeout sweep",
				zap.Error(err),
				zap.String("payment_id", payment.ID.String()),
			)
		}
		return nil, fmt.Errorf("%w: %v", mapped, err)
	}

	// The gateway took the push; record it even if the caller went away.
	now := s.now()
	changed, err := s.repo.Payment.MarkPending(context.WithoutCancel(ctx), payment.ID, result.CheckoutID, req.Amount, now)
	if err == nil && !changed {
		// the push outlived the grace period and the sweep failed the row
		err = errors.New("payment no longer awaiting its push")
	}
	if err != nil {
		s.metrics.PaymentsStarted.WithLabelValues("unrecorded").Inc()
		s.log.Error("Gateway accepted a push that was not recorded, the timeout sweep will fail it",
			zap.Error(err),
			zap.String("payment_id", payment.ID.String()),
			zap.String("reservation_id", reservationID),
			zap.String("checkout_id", result.CheckoutID),
			zap.String("merchant_request_id", result.MerchantRequestID),
		)
		return nil, fmt.Errorf("record checkout %s: %w", result.CheckoutID, err)
	}

	payment.Status = entity.PaymentStatusPending
	payment.Amount = req.Amount
	payment.CheckoutID = &result.CheckoutID
	payment.UpdatedAt = now

	s.metrics.PaymentsStarted.WithLabelValues("accepted").Inc()
	s.log.Info("Payment initiated",
		zap.String("payment_id", payment.ID.String()),
		zap.String("reservation_id", reservationID),
		zap.String("checkout_id", result.CheckoutID),
		zap.Int64("amount", req.Amount),
	)

	out := response.NewPaymentResponse(payment)
	out.CustomerMessage = result.CustomerMessage
	return out, nil
}

// claimPaymentSlot reuses the reservation's NOT_PAID payment or inserts one,
// then takes its submission lease. A payment whose lease is held by another
// caller, or that already went out, is ErrPaymentAlreadyInFlight.
func (s *paymentService) claimPaymentSlot(ctx context.Context, reservation *entity.Reservation, actor entity.Actor, req *request.InitiatePaymentRequest) (*entity.Payment, error) {
	payment, err := s.findOrCreateSlot(ctx, reservation, actor, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	claimed, err := s.repo.Payment.ClaimSubmission(ctx, payment.ID, now)
	if err != nil {
		return nil, fmt.Errorf("claim payment submission: %w", err)
	}
	if !claimed {
		return nil, ErrPaymentAlreadyInFlight
	}
	payment.SubmittedAt = &now
	payment.UpdatedAt = now

	return payment, nil
}

func (s *paymentService) findOrCreateSlot(ctx context.Context, reservation *entity.Reservation, actor entity.Actor, req *request.InitiatePaymentRequest) (*entity.Payment, error) {
	live, err := s.repo.Payment.FindLiveByReservation(ctx, reservation.ID)
	if err != nil {
		return nil, fmt.Errorf("find live payment: %w", err)
	}
	if live != nil {
		if live.Status != entity.PaymentStatusNotPaid || live.SubmittedAt != nil {
			return nil, ErrPaymentAlreadyInFlight
		}
		return live, nil
	}

	if s.config.MaxAttempts > 0 {
		failed, err := s.repo.Payment.CountFailedByReservation(ctx, reservation.ID)
		if err != nil {
			return nil, fmt.Errorf("count failed payments: %w", err)
		}
		if failed >= s.config.MaxAttempts {
			return nil, ErrPaymentAttemptsExhausted
		}
	}

	now := s.now()
	payment := &entity.Payment{
		Base:          entity.NewBase(now),
		ReservationID: reservation.ID,
		PayerID:       actor.ID,
		Amount:        req.Amount,
		Method:        entity.PaymentMethod(req.Method),
		Status:        entity.PaymentStatusNotPaid,
	}
	if err := s.repo.Payment.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrLivePaymentExists) {
			return nil, ErrPaymentAlreadyInFlight
		}
		return nil, fmt.Errorf("create payment: %w", err)
	}

	return payment, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(err, ErrPaymentAlreadyInFlight):
		return "in_flight"
	case errors.Is(err, ErrPaymentAttemptsExhausted):
		return "exhausted"
	default:
		return "error"
	}
}

func (s *paymentService) ReconcileCallback(ctx context.Context, cb *gateway.Callback) error {
	log := s.log.With(
		zap.String("checkout_id", cb.CheckoutID),
		zap.String("outcome", string(cb.Outcome)),
		zap.Int("result_code", cb.ResultCode),
	)

	payment, err := s.repo.Payment.FindByCheckoutID(ctx, cb.CheckoutID)
	if err != nil {
		return fmt.Errorf("find payment by checkout id: %w", err)
	}
	if payment == nil {
		log.Info("Callback for unknown checkout id ignored")
		s.metrics.Callbacks.WithLabelValues(string(cb.Outcome), "false").Inc()
		return nil
	}
	log = log.With(
		zap.String("payment_id", payment.ID.String()),
		zap.String("reservation_id", payment.ReservationID.String()),
	)

	applied := false
	if payment.Status == entity.PaymentStatusPending {
		settlement := repository.Settlement{Status: entity.PaymentStatusFailed}
		if cb.Outcome == gateway.OutcomeSuccess {
			settlement.Status = entity.PaymentStatusPaid
		}
		if cb.ReceiptNumber != "" {
			settlement.ReceiptNumber = &cb.ReceiptNumber
		}
		if cb.ResultDesc != "" {
			settlement.ResultDesc = &cb.ResultDesc
		}

		applied, err = s.repo.Payment.Settle(ctx, payment.ID, settlement, s.now())
		if err != nil {
			return fmt.Errorf("settle payment: %w", err)
		}
		if !applied {
			// the sweep or a duplicate delivery settled it first
			payment, err = s.repo.Payment.FindByID(ctx, payment.ID)
			if err != nil {
				return fmt.Errorf("reload payment: %w", err)
			}
			if payment == nil {
				return fmt.Errorf("payment vanished while settling")
			}
		} else {
			payment.Status = settlement.Status
		}
	}
	s.metrics.Callbacks.WithLabelValues(string(cb.Outcome), fmt.Sprint(applied)).Inc()

	switch {
	case payment.Status == entity.PaymentStatusPaid && cb.Outcome == gateway.OutcomeSuccess:
		// Re-run on duplicates too, so a crash between PAID and CONFIRMED
		// heals when the gateway redelivers.
		if err := s.reservations.Confirm(ctx, payment.ReservationID); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				log.Error("Payment succeeded for a cancelled reservation, needs refund handling", zap.Error(err))
				return nil
			}
			return err
		}
		if applied {
			log.Info("Payment succeeded")
		} else {
			log.Info("Duplicate success callback, confirmation re-applied")
		}
	case applied:
		log.Info("Payment failed, reservation stays pending for a retry",
			zap.String("result_desc", cb.ResultDesc))
	default:
		log.Info("Callback for settled payment ignored", zap.String("status", string(payment.Status)))
	}

	return nil
}

// TimeoutSweep fails every payment PENDING for longer than the grace period,
// and every push lease older than it, and releases the reservation when no
// newer payment exists. Each payment is handled in its own transaction, so a
// second run changes nothing.
func (s *paymentService) TimeoutSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult
	start := time.Now()
	defer func() { s.metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	cutoff := now.Add(-s.config.GracePeriod)
	for {
		stale, err := s.repo.Payment.ListStale(ctx, cutoff, sweepBatchSize)
		if err != nil {
			return result, fmt.Errorf("list stale payments: %w", err)
		}

		progress := 0
		for _, p := range stale {
			result.Scanned++
			expired, err := s.repo.Payment.ExpireStale(ctx, p.ID, cutoff, now)
			if err != nil {
				s.log.Error("Failed to expire payment", zap.Error(err), zap.String("payment_id", p.ID.String()))
				continue
			}
			if !expired.Expired {
				continue
			}
			progress++
			result.Expired++
			s.metrics.SweepExpired.Inc()
			if expired.Released {
				result.Released++
				s.metrics.SweepReleased.Inc()
			}
			fields := []zap.Field{
				zap.String("payment_id", p.ID.String()),
				zap.String("reservation_id", expired.ReservationID.String()),
				zap.Bool("reservation_released", expired.Released),
			}
			if expired.Unrecorded {
				// the gateway may hold a checkout this service cannot match
				s.log.Error("Payment submitted without a recorded checkout id timed out", fields...)
			} else {
				s.log.Info("Payment timed out", fields...)
			}
		}

		if len(stale) < sweepBatchSize || progress == 0 {
			break
		}
	}

	if result.Expired > 0 {
		s.log.Info("Timeout sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("expired", result.Expired),
			zap.Int("released", result.Released),
		)
	}
	return result, nil
}

func (s *paymentService) ListByReservation(ctx context.Context, actor entity.Actor, reservationID string) ([]response.PaymentResponse, error) {
	reservation, _, err := loadReadable(ctx, s.repo, actor, reservationID)
	if err != nil {
		return nil, err
	}

	payments, err := s.repo.Payment.ListByReservation(ctx, reservation.ID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	out := make([]response.PaymentResponse, len(payments))
	for i, p := range payments {
		out[i] = *response.NewPaymentResponse(p)
	}
	return out, nil
}
