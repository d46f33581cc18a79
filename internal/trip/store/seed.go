package store

import (
	"context"
	"time"

	"rihla/internal/trip/models"
	id "rihla/pkg/domain"
)

// SeedDemoTrip loads one organization with a demo trip so dev mode boots
// with bookable data. Errors are ignored; this never runs in production.
func SeedDemoTrip(trips TripStore) (id.OrgID, id.TripID) {
	now := time.Now().UTC()
	orgID := id.NewOrgID()
	trip, err := models.NewTrip(id.NewTripID(), models.NewTripParams{
		OrgID:         orgID,
		Code:          "DEMO",
		Name:          "Demo Trip",
		Capacity:      25,
		Price:         250_000,
		DepositAmount: 50_000,
		Currency:      "USD",
		StartDate:     now.AddDate(0, 2, 0),
		EndDate:       now.AddDate(0, 2, 10),
	}, now)
	if err != nil {
		return orgID, id.TripID{}
	}
	_ = trips.Create(context.Background(), trip)
	return orgID, trip.ID
}
