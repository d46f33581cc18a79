// Package domain holds the typed identifiers and value objects shared across
// modules. Typed IDs prevent cross-entity assignment at compile time; Parse
// functions enforce the trust-boundary invariant that IDs are valid, non-nil
// UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "rihla/pkg/domain-errors"
)

type (
	// OrgID identifies an organization (tenant).
	OrgID uuid.UUID
	// TripID identifies one bookable trip offering.
	TripID uuid.UUID
	// RegistrationID identifies one member's booking against a trip.
	RegistrationID uuid.UUID
	// MemberID references a member record owned by the membership module.
	MemberID uuid.UUID
)

func (id OrgID) String() string          { return uuid.UUID(id).String() }
func (id TripID) String() string         { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id MemberID) String() string       { return uuid.UUID(id).String() }

func (id OrgID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id TripID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id MemberID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }

// NewOrgID generates a fresh organization ID.
func NewOrgID() OrgID { return OrgID(uuid.New()) }

// NewTripID generates a fresh trip ID.
func NewTripID() TripID { return TripID(uuid.New()) }

// NewRegistrationID generates a fresh registration ID.
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

// NewMemberID generates a fresh member ID.
func NewMemberID() MemberID { return MemberID(uuid.New()) }

// ParseOrgID parses and validates an organization ID from its string form.
func ParseOrgID(s string) (OrgID, error) {
	u, err := parseUUID(s, "organization id")
	return OrgID(u), err
}

// ParseTripID parses and validates a trip ID from its string form.
func ParseTripID(s string) (TripID, error) {
	u, err := parseUUID(s, "trip id")
	return TripID(u), err
}

// ParseRegistrationID parses and validates a registration ID from its string form.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration id")
	return RegistrationID(u), err
}

// ParseMemberID parses and validates a member ID from its string form.
func ParseMemberID(s string) (MemberID, error) {
	u, err := parseUUID(s, "member id")
	return MemberID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be the nil UUID")
	}
	return u, nil
}

// MarshalText / UnmarshalText keep typed IDs JSON-friendly as UUID strings.

func (id OrgID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *OrgID) UnmarshalText(b []byte) error {
	parsed, err := ParseOrgID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id TripID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *TripID) UnmarshalText(b []byte) error {
	parsed, err := ParseTripID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id RegistrationID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *RegistrationID) UnmarshalText(b []byte) error {
	parsed, err := ParseRegistrationID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id MemberID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id *MemberID) UnmarshalText(b []byte) error {
	parsed, err := ParseMemberID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
