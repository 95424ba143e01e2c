package model

import "time"

const (
	EventReservationCreated       = "reservation.created"
	EventReservationStatusChanged = "reservation.status_changed"
)

// ReservationEvent is the payload published to Kafka after a reservation
// commits or changes status. Keyed by ResourceID so events for one barber
// stay ordered within a partition.
type ReservationEvent struct {
	EventID       string    `json:"event_id"`
	Type          string    `json:"type"`
	ReservationID string    `json:"reservation_id"`
	ResourceID    string    `json:"resource_id"`
	OwnerID       string    `json:"owner_id"`
	Status        string    `json:"status"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	OccurredAt    time.Time `json:"occurred_at"`
}
