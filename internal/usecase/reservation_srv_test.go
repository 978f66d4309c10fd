package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hostel-booking/internal/data/entity"
	"hostel-booking/internal/dto/request"
	"hostel-booking/pkg/metrics"
	"hostel-booking/pkg/utils"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	store        *memStore
	gw           *stubGateway
	metrics      *metrics.Metrics
	reservations ReservationService
	payments     PaymentService
	now          time.Time

	landlord entity.Actor
	admin    entity.Actor
	room     uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		gw:       &stubGateway{},
		metrics:  metrics.New(),
		now:      time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		landlord: entity.Actor{ID: uuid.New(), Capability: entity.CapabilityLandlord},
		admin:    entity.Actor{ID: uuid.New(), Capability: entity.CapabilityAdmin},
	}
	h.room = h.store.addRoom(h.landlord.ID)

	repo := h.store.repository()
	clock := func() time.Time { return h.now }

	rs := NewReservationService(repo, h.metrics, zap.NewNop()).(*reservationService)
	rs.now = clock
	ps := NewPaymentService(repo, rs, h.gw, utils.PaymentConfig{
		GracePeriod: 5 * time.Minute,
		MaxAttempts: 3,
	}, h.metrics, zap.NewNop()).(*paymentService)
	ps.now = clock

	h.reservations = rs
	h.payments = ps
	return h
}

func newStudent() entity.Actor {
	return entity.Actor{ID: uuid.New(), Capability: entity.CapabilityStudent}
}

func (h *harness) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *harness) reserve(actor entity.Actor, room uuid.UUID) (string, error) {
	res, err := h.reservations.Create(context.Background(), actor, &request.CreateReservationRequest{
		RoomID:   room.String(),
		FullName: "Jane Wanjiru",
		Phone:    "+254712345678",
	})
	if err != nil {
		return "", err
	}
	return res.ID, nil
}

func (h *harness) mustReserve(t *testing.T, actor entity.Actor) string {
	t.Helper()
	id, err := h.reserve(actor, h.room)
	require.NoError(t, err)
	return id
}

func (h *harness) status(t *testing.T, id string) entity.ReservationStatus {
	t.Helper()
	return h.store.reservation(uuid.MustParse(id)).Status
}

func TestCreateIsMutuallyExclusivePerRoom(t *testing.T) {
	for _, n := range []int{1, 2, 50} {
		h := newHarness(t)

		var (
			wg          sync.WaitGroup
			mu          sync.Mutex
			created     int
			unavailable int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := h.reserve(newStudent(), h.room)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					created++
				case errors.Is(err, ErrRoomUnavailable):
					unavailable++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, created, "n=%d", n)
		assert.Equal(t, n-1, unavailable, "n=%d", n)
		assert.Equal(t, float64(n-1), testutil.ToFloat64(h.metrics.Reservations.WithLabelValues("conflict")))
	}
}

func TestCreateOnDifferentRoomsDoesNotConflict(t *testing.T) {
	h := newHarness(t)
	other := h.store.addRoom(h.landlord.ID)

	_, err := h.reserve(newStudent(), h.room)
	require.NoError(t, err)
	_, err = h.reserve(newStudent(), other)
	require.NoError(t, err)
}

func TestCreateRejections(t *testing.T) {
	h := newHarness(t)

	_, err := h.reserve(h.landlord, h.room)
	assert.ErrorIs(t, err, ErrNotAStudent)

	_, err = h.reserve(h.admin, h.room)
	assert.ErrorIs(t, err, ErrNotAStudent)

	_, err = h.reserve(newStudent(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = h.reservations.Create(context.Background(), newStudent(), &request.CreateReservationRequest{
		RoomID:   h.room.String(),
		FullName: "Jane",
		Phone:    "not-a-phone",
	})
	assert.ErrorIs(t, err, ErrValidation)

	avail, err := h.reservations.Availability(context.Background(), h.room.String())
	require.NoError(t, err)
	assert.True(t, avail.Available)
}

func TestCancelReleasesRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := newStudent()
	id := h.mustReserve(t, owner)

	avail, err := h.reservations.Availability(ctx, h.room.String())
	require.NoError(t, err)
	assert.False(t, avail.Available)
	require.NotNil(t, avail.ReservationID)
	assert.Equal(t, id, *avail.ReservationID)

	res, err := h.reservations.Cancel(ctx, owner, id)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", res.Status)

	_, err = h.reserve(newStudent(), h.room)
	assert.NoError(t, err)

	_, err = h.reservations.Cancel(ctx, owner, id)
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestCancelPermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := newStudent()

	id := h.mustReserve(t, owner)

	_, err := h.reservations.Cancel(ctx, newStudent(), id)
	assert.ErrorIs(t, err, ErrForbidden)

	strangerLandlord := entity.Actor{ID: uuid.New(), Capability: entity.CapabilityLandlord}
	_, err = h.reservations.Cancel(ctx, strangerLandlord, id)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.reservations.Cancel(ctx, h.landlord, id)
	require.NoError(t, err)

	// confirmed reservations are only cancelled by an admin
	id = h.mustReserve(t, owner)
	require.NoError(t, h.reservations.Confirm(ctx, uuid.MustParse(id)))

	_, err = h.reservations.Cancel(ctx, owner, id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.reservations.Cancel(ctx, h.landlord, id)
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := h.reservations.Cancel(ctx, h.admin, id)
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", res.Status)
}

func TestConfirmIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	owner := newStudent()
	id := uuid.MustParse(h.mustReserve(t, owner))

	require.NoError(t, h.reservations.Confirm(ctx, id))
	require.NoError(t, h.reservations.Confirm(ctx, id))
	assert.Equal(t, entity.ReservationStatusConfirmed, h.store.reservation(id).Status)

	_, err := h.reservations.Cancel(ctx, h.admin, id.String())
	require.NoError(t, err)
	assert.ErrorIs(t, h.reservations.Confirm(ctx, id), ErrInvalidTransition)
	assert.ErrorIs(t, h.reservations.Confirm(ctx, uuid.New()), ErrNotFound)
}

func TestGetAndListAreScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	alice, bob := newStudent(), newStudent()
	otherLandlord := entity.Actor{ID: uuid.New(), Capability: entity.CapabilityLandlord}
	otherRoom := h.store.addRoom(otherLandlord.ID)

	aliceRes := h.mustReserve(t, alice)
	h.advance(time.Second)
	_, err := h.reserve(bob, otherRoom)
	require.NoError(t, err)

	_, err = h.reservations.Get(ctx, alice, aliceRes)
	assert.NoError(t, err)
	_, err = h.reservations.Get(ctx, h.landlord, aliceRes)
	assert.NoError(t, err)
	_, err = h.reservations.Get(ctx, bob, aliceRes)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.reservations.Get(ctx, otherLandlord, aliceRes)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.reservations.Get(ctx, alice, "nope")
	assert.ErrorIs(t, err, ErrValidation)

	page := request.PaginatedRequest{Page: 1, PerPage: 10}
	tests := []struct {
		actor entity.Actor
		total int64
	}{
		{alice, 1},
		{bob, 1},
		{h.landlord, 1},
		{otherLandlord, 1},
		{h.admin, 2},
	}
	for _, tt := range tests {
		list, err := h.reservations.List(ctx, tt.actor, &request.ListReservationsRequest{PaginatedRequest: page})
		require.NoError(t, err)
		assert.Equal(t, tt.total, list.Pagination.Total, string(tt.actor.Capability))
	}

	list, err := h.reservations.List(ctx, h.admin, &request.ListReservationsRequest{PaginatedRequest: page, Status: "CANCELLED"})
	require.NoError(t, err)
	assert.Zero(t, list.Pagination.Total)

	_, err = h.reservations.List(ctx, h.admin, &request.ListReservationsRequest{PaginatedRequest: page, Status: "LOST"})
	assert.ErrorIs(t, err, ErrValidation)
}
