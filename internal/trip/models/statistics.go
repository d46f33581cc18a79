package models

import id "rihla/pkg/domain"

// TripCounts is the trip side of the organization rollup.
type TripCounts struct {
	ActiveTrips    int `json:"active_trips"`
	UpcomingTrips  int `json:"upcoming_trips"`
	CompletedTrips int `json:"completed_trips"`
}

// RegistrationTotals is the registration side of the organization rollup.
// Revenue sums cover all registrations, cancelled included, so the audit and
// revenue history stays intact.
type RegistrationTotals struct {
	ConfirmedRegistrations int      `json:"confirmed_registrations"`
	TotalRevenue           id.Money `json:"total_revenue"`
	CollectedRevenue       id.Money `json:"collected_revenue"`
	PendingRevenue         id.Money `json:"pending_revenue"`
}

// Statistics is the read-only rollup returned by getStatistics. Empty result
// sets yield the zero value.
type Statistics struct {
	TripCounts
	RegistrationTotals
}
