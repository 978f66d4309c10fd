package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"hostel-booking/internal/data/entity"
	"hostel-booking/internal/data/repository"
	"hostel-booking/internal/gateway"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for Postgres that enforces the same
// partial unique rules: one active reservation per room and one live
// payment per reservation.
type memStore struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]entity.Reservation
	payments     map[uuid.UUID]entity.Payment
	rooms        map[uuid.UUID]entity.Room

	// beforeExpire runs inside ExpireStale before the conditional update,
	// outside the lock, to stage races against the sweep.
	beforeExpire func(id uuid.UUID)
	// markPendingErr makes MarkPending fail as a lost database would.
	markPendingErr error
}

func newMemStore() *memStore {
	return &memStore{
		reservations: make(map[uuid.UUID]entity.Reservation),
		payments:     make(map[uuid.UUID]entity.Payment),
		rooms:        make(map[uuid.UUID]entity.Room),
	}
}

func (m *memStore) repository() *repository.Repository {
	return &repository.Repository{
		Reservation: &memReservations{m},
		Payment:     &memPayments{m},
		Room:        &memRooms{m},
	}
}

func (m *memStore) addRoom(landlord uuid.UUID) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := entity.Room{ID: uuid.New(), ApartmentID: uuid.New(), LandlordID: landlord, Label: "A1"}
	m.rooms[room.ID] = room
	return room.ID
}

func (m *memStore) reservation(id uuid.UUID) entity.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[id]
}

func (m *memStore) payment(id uuid.UUID) entity.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payments[id]
}

func (m *memStore) paymentsOf(reservationID uuid.UUID) []entity.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Payment
	for _, p := range m.payments {
		if p.ReservationID == reservationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

type memReservations struct{ m *memStore }

func (r *memReservations) Create(_ context.Context, res *entity.Reservation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, other := range r.m.reservations {
		if other.RoomID == res.RoomID && other.Status.Active() {
			return repository.ErrRoomTaken
		}
	}
	r.m.reservations[res.ID] = *res
	return nil
}

func (r *memReservations) FindByID(_ context.Context, id uuid.UUID) (*entity.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	res, ok := r.m.reservations[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r *memReservations) FindActiveByRoom(_ context.Context, roomID uuid.UUID) (*entity.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, res := range r.m.reservations {
		if res.RoomID == roomID && res.Status.Active() {
			return &res, nil
		}
	}
	return nil, nil
}

func (r *memReservations) matching(filter repository.ReservationFilter) []*entity.Reservation {
	var out []*entity.Reservation
	for _, res := range r.m.reservations {
		if filter.RequesterID != nil && res.RequesterID != *filter.RequesterID {
			continue
		}
		if filter.LandlordID != nil && r.m.rooms[res.RoomID].LandlordID != *filter.LandlordID {
			continue
		}
		if filter.Status != nil && res.Status != *filter.Status {
			continue
		}
		res := res
		out = append(out, &res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memReservations) List(_ context.Context, filter repository.ReservationFilter, limit, offset int) ([]*entity.Reservation, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	all := r.matching(filter)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memReservations) Count(_ context.Context, filter repository.ReservationFilter) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *memReservations) UpdateStatus(_ context.Context, id uuid.UUID, from, to entity.ReservationStatus, now time.Time) (bool, error) {
	if !from.CanTransition(to) {
		return false, fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	res, ok := r.m.reservations[id]
	if !ok || res.Status != from {
		return false, nil
	}
	res.Status = to
	res.UpdatedAt = now
	r.m.reservations[id] = res
	return true, nil
}

type memPayments struct{ m *memStore }

func (p *memPayments) Create(_ context.Context, payment *entity.Payment) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	for _, other := range p.m.payments {
		if other.ReservationID == payment.ReservationID && other.Status.Live() {
			return repository.ErrLivePaymentExists
		}
	}
	p.m.payments[payment.ID] = *payment
	return nil
}

func (p *memPayments) find(match func(entity.Payment) bool) *entity.Payment {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	for _, pay := range p.m.payments {
		if match(pay) {
			return &pay
		}
	}
	return nil
}

func (p *memPayments) FindByID(_ context.Context, id uuid.UUID) (*entity.Payment, error) {
	return p.find(func(pay entity.Payment) bool { return pay.ID == id }), nil
}

func (p *memPayments) FindByCheckoutID(_ context.Context, checkoutID string) (*entity.Payment, error) {
	return p.find(func(pay entity.Payment) bool { return pay.CheckoutID != nil && *pay.CheckoutID == checkoutID }), nil
}

func (p *memPayments) FindLiveByReservation(_ context.Context, reservationID uuid.UUID) (*entity.Payment, error) {
	return p.find(func(pay entity.Payment) bool { return pay.ReservationID == reservationID && pay.Status.Live() }), nil
}

func (p *memPayments) ListByReservation(_ context.Context, reservationID uuid.UUID) ([]*entity.Payment, error) {
	var out []*entity.Payment
	for _, pay := range p.m.paymentsOf(reservationID) {
		pay := pay
		out = append(out, &pay)
	}
	return out, nil
}

func (p *memPayments) CountFailedByReservation(_ context.Context, reservationID uuid.UUID) (int, error) {
	n := 0
	for _, pay := range p.m.paymentsOf(reservationID) {
		if pay.Status == entity.PaymentStatusFailed {
			n++
		}
	}
	return n, nil
}

func (p *memPayments) ClaimSubmission(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	pay, ok := p.m.payments[id]
	if !ok || pay.Status != entity.PaymentStatusNotPaid || pay.SubmittedAt != nil {
		return false, nil
	}
	pay.SubmittedAt = &now
	pay.UpdatedAt = now
	p.m.payments[id] = pay
	return true, nil
}

func (p *memPayments) ReleaseSubmission(_ context.Context, id uuid.UUID, now time.Time) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	pay, ok := p.m.payments[id]
	if !ok || pay.Status != entity.PaymentStatusNotPaid {
		return nil
	}
	pay.SubmittedAt = nil
	pay.UpdatedAt = now
	p.m.payments[id] = pay
	return nil
}

func (p *memPayments) MarkPending(_ context.Context, id uuid.UUID, checkoutID string, amount int64, now time.Time) (bool, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	if p.m.markPendingErr != nil {
		return false, p.m.markPendingErr
	}
	pay, ok := p.m.payments[id]
	if !ok || pay.Status != entity.PaymentStatusNotPaid {
		return false, nil
	}
	pay.Status = entity.PaymentStatusPending
	pay.CheckoutID = &checkoutID
	pay.Amount = amount
	pay.UpdatedAt = now
	p.m.payments[id] = pay
	return true, nil
}

func (p *memPayments) Settle(_ context.Context, id uuid.UUID, outcome repository.Settlement, now time.Time) (bool, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	pay, ok := p.m.payments[id]
	if !ok || pay.Status != entity.PaymentStatusPending {
		return false, nil
	}
	pay.Status = outcome.Status
	pay.ReceiptNumber = outcome.ReceiptNumber
	pay.ResultDesc = outcome.ResultDesc
	pay.UpdatedAt = now
	p.m.payments[id] = pay
	return true, nil
}

func isStale(pay entity.Payment, cutoff time.Time) bool {
	switch pay.Status {
	case entity.PaymentStatusPending:
		return pay.UpdatedAt.Before(cutoff)
	case entity.PaymentStatusNotPaid:
		return pay.SubmittedAt != nil && pay.SubmittedAt.Before(cutoff)
	}
	return false
}

func (p *memPayments) ListStale(_ context.Context, cutoff time.Time, limit int) ([]*entity.Payment, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	var out []*entity.Payment
	for _, pay := range p.m.payments {
		if isStale(pay, cutoff) && len(out) < limit {
			pay := pay
			out = append(out, &pay)
		}
	}
	return out, nil
}

func (p *memPayments) ExpireStale(_ context.Context, id uuid.UUID, cutoff, now time.Time) (repository.ExpireResult, error) {
	if p.m.beforeExpire != nil {
		p.m.beforeExpire(id)
	}

	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	var result repository.ExpireResult
	pay, ok := p.m.payments[id]
	if !ok || !isStale(pay, cutoff) {
		return result, nil
	}
	result.Unrecorded = pay.CheckoutID == nil
	pay.Status = entity.PaymentStatusFailed
	pay.UpdatedAt = now
	p.m.payments[id] = pay
	result.Expired = true
	result.ReservationID = pay.ReservationID

	for _, other := range p.m.payments {
		if other.ReservationID == pay.ReservationID && other.ID != pay.ID &&
			other.Status.Live() && !other.CreatedAt.Before(pay.CreatedAt) {
			return result, nil
		}
	}
	res := p.m.reservations[pay.ReservationID]
	if res.Status == entity.ReservationStatusPending {
		res.Status = entity.ReservationStatusCancelled
		res.UpdatedAt = now
		p.m.reservations[res.ID] = res
		result.Released = true
	}
	return result, nil
}

type memRooms struct{ m *memStore }

func (r *memRooms) FindByID(_ context.Context, id uuid.UUID) (*entity.Room, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	room, ok := r.m.rooms[id]
	if !ok {
		return nil, nil
	}
	return &room, nil
}

func (r *memRooms) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	_, ok := r.m.rooms[id]
	return ok, nil
}

func (r *memRooms) LandlordOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	room, _ := r.FindByID(ctx, id)
	if room == nil {
		return uuid.Nil, fmt.Errorf("room %s not found", id)
	}
	return room.LandlordID, nil
}

// stubGateway accepts every push unless err is set. With hold set, each push
// announces itself on entered and then waits for hold to be closed.
type stubGateway struct {
	mu      sync.Mutex
	err     error
	calls   []gateway.PushRequest
	seq     int
	hold    chan struct{}
	entered chan struct{}
}

func (g *stubGateway) Push(_ context.Context, req gateway.PushRequest) (*gateway.PushResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	hold, entered := g.hold, g.entered
	g.mu.Unlock()

	if hold != nil {
		entered <- struct{}{}
		<-hold
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	return &gateway.PushResult{
		CheckoutID:        fmt.Sprintf("ws_CO_%04d", g.seq),
		MerchantRequestID: fmt.Sprintf("mr-%d", g.seq),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (g *stubGateway) pushes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *stubGateway) lastCheckout() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("ws_CO_%04d", g.seq)
}
