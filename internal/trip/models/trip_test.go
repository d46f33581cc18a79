package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "rihla/pkg/domain"
	dErrors "rihla/pkg/domain-errors"
)

func validTripParams() NewTripParams {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return NewTripParams{
		OrgID:         id.NewOrgID(),
		Code:          "ur2026",
		Name:          "Spring Umrah Group",
		Capacity:      10,
		Price:         500_000,
		DepositAmount: 100_000,
		Currency:      "USD",
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, 14),
	}
}

func TestNewTrip(t *testing.T) {
	now := time.Now().UTC()

	t.Run("opens with every spot available", func(t *testing.T) {
		trip, err := NewTrip(id.NewTripID(), validTripParams(), now)
		require.NoError(t, err)
		assert.Equal(t, TripStatusOpen, trip.Status)
		assert.Equal(t, 10, trip.AvailableSpots)
		assert.Equal(t, "UR2026", trip.Code, "code is normalized to upper case")
		assert.Equal(t, DefaultWaitlistCapacity, trip.WaitlistCapacity)
	})

	t.Run("zero capacity trip starts full", func(t *testing.T) {
		p := validTripParams()
		p.Capacity = 0
		trip, err := NewTrip(id.NewTripID(), p, now)
		require.NoError(t, err)
		assert.Equal(t, TripStatusFull, trip.Status)
		assert.Equal(t, 0, trip.AvailableSpots)
	})

	t.Run("rejects deposit above price", func(t *testing.T) {
		p := validTripParams()
		p.DepositAmount = p.Price + 1
		_, err := NewTrip(id.NewTripID(), p, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects end date before start date", func(t *testing.T) {
		p := validTripParams()
		p.EndDate = p.StartDate.AddDate(0, 0, -1)
		_, err := NewTrip(id.NewTripID(), p, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects malformed currency", func(t *testing.T) {
		p := validTripParams()
		p.Currency = "usd"
		_, err := NewTrip(id.NewTripID(), p, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects negative capacity", func(t *testing.T) {
		p := validTripParams()
		p.Capacity = -1
		_, err := NewTrip(id.NewTripID(), p, now)
		require.Error(t, err)
	})
}

func TestTripCapacityTransitions(t *testing.T) {
	now := time.Now().UTC()
	p := validTripParams()
	p.Capacity = 2
	trip, err := NewTrip(id.NewTripID(), p, now)
	require.NoError(t, err)

	require.NoError(t, trip.CanReserveSpot())
	trip.ApplyReserveSpot(now)
	assert.Equal(t, 1, trip.AvailableSpots)
	assert.Equal(t, TripStatusOpen, trip.Status)

	require.NoError(t, trip.CanReserveSpot())
	trip.ApplyReserveSpot(now)
	assert.Equal(t, 0, trip.AvailableSpots)
	assert.Equal(t, TripStatusFull, trip.Status, "reserving the last spot flips the trip to full")

	err = trip.CanReserveSpot()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCapacityExhausted))

	trip.ApplyReleaseSpot(now)
	assert.Equal(t, 1, trip.AvailableSpots)
	assert.Equal(t, TripStatusOpen, trip.Status, "a freed spot reopens a full trip")

	// Release never exceeds capacity even if called against an uncounted booking.
	trip.ApplyReleaseSpot(now)
	trip.ApplyReleaseSpot(now)
	assert.Equal(t, trip.Capacity, trip.AvailableSpots)
}

func TestTripRejectsRegistrationsOutsideOpen(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []TripStatus{TripStatusDraft, TripStatusClosed, TripStatusInProgress, TripStatusCompleted, TripStatusCancelled} {
		trip, err := NewTrip(id.NewTripID(), validTripParams(), now)
		require.NoError(t, err)
		trip.Status = status

		err = trip.CanReserveSpot()
		require.Error(t, err, "status %s must not accept registrations", status)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	}
}

func TestSequencePrefix(t *testing.T) {
	now := time.Now().UTC()
	trip, err := NewTrip(id.NewTripID(), validTripParams(), now)
	require.NoError(t, err)
	assert.Equal(t, "UR2026", trip.SequencePrefix())

	p := validTripParams()
	p.Code = ""
	trip, err = NewTrip(id.NewTripID(), p, now)
	require.NoError(t, err)
	assert.Equal(t, "REG", trip.SequencePrefix())
}
