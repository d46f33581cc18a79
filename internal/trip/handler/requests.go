package handler

import (
	"time"

	"rihla/internal/trip/models"
	id "rihla/pkg/domain"
)

// Amounts arrive as integer minor units, matching domain.Money.

type createTripRequest struct {
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Capacity         int       `json:"capacity"`
	WaitlistCapacity int       `json:"waitlist_capacity"`
	Price            int64     `json:"price"`
	DepositAmount    int64     `json:"deposit_amount"`
	Currency         string    `json:"currency"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Draft            bool      `json:"draft"`
}

func (r createTripRequest) toParams(orgID id.OrgID) models.NewTripParams {
	return models.NewTripParams{
		OrgID:            orgID,
		Code:             r.Code,
		Name:             r.Name,
		Capacity:         r.Capacity,
		WaitlistCapacity: r.WaitlistCapacity,
		Price:            id.Money(r.Price),
		DepositAmount:    id.Money(r.DepositAmount),
		Currency:         r.Currency,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		Draft:            r.Draft,
	}
}

type createRegistrationRequest struct {
	MemberID    string `json:"member_id"`
	RoomType    string `json:"room_type"`
	TotalAmount *int64 `json:"total_amount"`
}

type recordPaymentRequest struct {
	Amount int64 `json:"amount"`
}

type updateVisaRequest struct {
	Status     string     `json:"status"`
	Number     string     `json:"number"`
	IssueDate  *time.Time `json:"issue_date"`
	ExpiryDate *time.Time `json:"expiry_date"`
	Notes      string     `json:"notes"`
}

func (r updateVisaRequest) toVisaInfo() models.VisaInfo {
	return models.VisaInfo{
		Status:     models.VisaStatus(r.Status),
		Number:     r.Number,
		IssueDate:  r.IssueDate,
		ExpiryDate: r.ExpiryDate,
		Notes:      r.Notes,
	}
}

type cancelRegistrationRequest struct {
	Reason       string `json:"reason"`
	RefundAmount *int64 `json:"refund_amount"`
}

type tripListResponse struct {
	Trips []*models.Trip `json:"trips"`
}

type registrationListResponse struct {
	Registrations []*models.Registration `json:"registrations"`
}
