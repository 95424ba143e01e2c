package model

import (
	"time"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Reservation occupies the half-open interval [StartTime, EndTime) of one
// resource (a barber). EndTime is derived from DurationMinutes at creation
// and stored alongside so overlap queries stay index-friendly.
type Reservation struct {
	ID              string         `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ResourceID      string         `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=64"`
	OwnerID         string         `json:"owner_id" bson:"owner_id" validate:"required,min=1,max=64"`
	StartTime       time.Time      `json:"start_time" bson:"start_time" validate:"required"`
	DurationMinutes int            `json:"duration_minutes" bson:"duration_minutes" validate:"required,min=1,max=1440"`
	EndTime         time.Time      `json:"end_time,omitempty" bson:"end_time"`
	Status          string         `json:"status,omitempty" bson:"status" validate:"omitempty,oneof=pending confirmed cancelled completed"`
	Payload         map[string]any `json:"payload,omitempty" bson:"payload,omitempty"`
	CreatedAt       time.Time      `json:"created_at,omitempty" bson:"created_at"`

	// ConfirmationCode is minted per response and never stored; see pkg/sealer.
	ConfirmationCode string `json:"confirmation_code,omitempty" bson:"-"`
}

// ConflictParticipating reports whether a reservation in the given status
// counts toward overlap checks. Cancelled and completed reservations hold
// no claim on the resource's timeline.
func ConflictParticipating(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// ConflictStatuses lists the statuses that participate in overlap checks,
// for use in store-level filters.
func ConflictStatuses() []string {
	return []string{StatusPending, StatusConfirmed}
}

var statusTransitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCancelled, StatusCompleted},
}

// CanTransition reports whether the status state machine allows from -> to.
// Cancelled and completed are terminal.
func CanTransition(from, to string) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a member of the status enum.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Overlaps applies the half-open interval test: two reservations conflict
// when start1 < end2 && end1 > start2. Back-to-back intervals (end == start)
// do not conflict.
func Overlaps(start1, end1, start2, end2 time.Time) bool {
	return start1.Before(end2) && end1.After(start2)
}
