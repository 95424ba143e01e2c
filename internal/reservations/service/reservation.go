package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	reservationserrors "trimly/internal/reservations/errors"
	"trimly/internal/reservations/repository"
	"trimly/internal/reservations/validator"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/kafka"
	"trimly/pkg/model"
	"trimly/pkg/sanitizer"
	"trimly/pkg/sealer"
)

type ReservationService interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	UpdateStatus(ctx context.Context, id string, status string) (*model.Reservation, error)
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	GetByConfirmationCode(ctx context.Context, code string) (*model.Reservation, error)
	GetByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	GetByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.Reservation, int64, error)
}

// EventPublisher is satisfied by kafka.Producer. A nil publisher disables
// events without touching the booking path.
type EventPublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type reservationService struct {
	repo      repository.ReservationRepository
	validator *validator.ReservationValidator
	publisher EventPublisher
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	validator *validator.ReservationValidator,
	publisher EventPublisher,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Create books the interval or fails with a conflict. The claim write, the
// overlap check and the insert share one transaction. Snapshot isolation
// alone cannot serialize two creators that only insert distinct documents,
// so the transaction first bumps the resource's claim document: concurrent
// creators then conflict on that document, the loser aborts with a
// transient error and re-runs against a snapshot containing the winner's
// reservation, where the overlap check catches the collision.
func (s *reservationService) Create(ctx context.Context, reservation *model.Reservation) error {
	s.applyDefaults(reservation)
	s.sanitize(reservation)
	if err := s.validate(reservation); err != nil {
		return err
	}
	s.normalizeInterval(reservation)

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		// An aborted attempt must not leak its id into the re-run: a
		// pre-set ID would be marshalled as a string _id and the committed
		// document would never match ObjectID lookups.
		reservation.ID = ""
		reservation.CreatedAt = time.Time{}

		if err := s.repo.ClaimResource(txCtx, reservation.ResourceID); err != nil {
			return apperrors.Internal("Failed to claim resource schedule", err)
		}
		if err := s.checkOverlap(txCtx, reservation); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, reservation); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, mongotx.ErrRetriesExhausted) {
			s.cfg.Log.Warn("Reservation creation retries exhausted",
				"resource_id", reservation.ResourceID,
				"start_time", reservation.StartTime,
			)
			return apperrors.TransientConflict(
				"The resource's schedule is under contention. Please retry.", err)
		}
		s.cfg.Log.Error("Failed to create reservation", "error", err)
		return err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"resource_id", reservation.ResourceID,
		"owner_id", reservation.OwnerID,
		"start_time", reservation.StartTime,
	)
	if code, err := sealer.CreateConfirmationCode(reservation.ID, reservation.OwnerID); err != nil {
		s.cfg.Log.Warn("Failed to mint confirmation code", "id", reservation.ID, "error", err)
	} else {
		reservation.ConfirmationCode = code
	}

	s.publishEvent(ctx, model.EventReservationCreated, reservation)
	return nil
}

// GetByConfirmationCode resolves a code minted at creation. The embedded
// owner id must match the stored reservation, so a forged or stale code
// cannot expose someone else's booking.
func (s *reservationService) GetByConfirmationCode(ctx context.Context, code string) (*model.Reservation, error) {
	if code == "" {
		return nil, apperrors.InvalidInput("Confirmation code cannot be empty")
	}

	reservationID, ownerID, err := sealer.ParseConfirmationCode(code)
	if err != nil {
		return nil, apperrors.InvalidInput("Invalid confirmation code")
	}

	reservation, err := s.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if reservation.OwnerID != ownerID {
		return nil, apperrors.NotFoundWithID("Reservation", reservationID)
	}

	return reservation, nil
}

// UpdateStatus moves a reservation through its lifecycle. The read and write
// share a transaction so a concurrent transition cannot slip between the
// state check and the update. No overlap re-check happens here: transitions
// only ever release capacity, never claim new time.
func (s *reservationService) UpdateStatus(ctx context.Context, id string, status string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}
	if !model.ValidStatus(status) {
		return nil, apperrors.InvalidInput("Unknown status: " + status)
	}

	var updated *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			if errors.Is(err, reservationserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Reservation", id)
			}
			if errors.Is(err, reservationserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid reservation ID format")
			}
			return apperrors.Internal("Failed to load reservation", err)
		}

		if !model.CanTransition(existing.Status, status) {
			return apperrors.InvalidTransition(existing.Status, status)
		}

		if err := s.repo.UpdateStatus(txCtx, id, status); err != nil {
			return apperrors.Internal("Failed to update reservation status", err)
		}

		copied := *existing
		copied.Status = status
		updated = &copied
		return nil
	})
	if err != nil {
		if errors.Is(err, mongotx.ErrRetriesExhausted) {
			return nil, apperrors.TransientConflict(
				"Reservation is under contention. Please retry.", err)
		}
		return nil, err
	}

	s.cfg.Log.Info("Reservation status updated", "id", id, "status", status)
	s.publishEvent(ctx, model.EventReservationStatusChanged, updated)
	return updated, nil
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	reservation, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}

	return reservation, nil
}

func (s *reservationService) GetByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if ownerID == "" {
		return nil, 0, apperrors.InvalidInput("Owner ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindByOwner(ctx, ownerID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByOwner(ctx, ownerID)
		},
	)
}

func (s *reservationService) GetByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if resourceID == "" {
		return nil, 0, apperrors.InvalidInput("Resource ID cannot be empty")
	}
	return s.list(ctx,
		func(ctx context.Context) ([]*model.Reservation, error) {
			return s.repo.FindByResource(ctx, resourceID, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByResource(ctx, resourceID)
		},
	)
}

func (s *reservationService) list(
	ctx context.Context,
	find func(context.Context) ([]*model.Reservation, error),
	count func(context.Context) (int64, error),
) ([]*model.Reservation, int64, error) {
	var total int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reservations", "error", errCount)
			errCount = apperrors.Internal("Failed to count reservations", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reservations, errFind = find(ctx)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reservations", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reservations", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reservations, total, nil
}

// --- Helpers ---

func (s *reservationService) applyDefaults(r *model.Reservation) {
	if r.Status == "" {
		r.Status = model.StatusPending
	}
}

func (s *reservationService) sanitize(r *model.Reservation) {
	r.ResourceID = sanitizer.TrimAndNormalize(r.ResourceID)
	r.OwnerID = sanitizer.TrimAndNormalize(r.OwnerID)
}

func (s *reservationService) validate(r *model.Reservation) error {
	if err := s.validator.Validate(r); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// normalizeInterval stamps times in UTC at millisecond precision, matching
// BSON date resolution, and derives the exclusive end of the interval.
func (s *reservationService) normalizeInterval(r *model.Reservation) {
	r.StartTime = r.StartTime.UTC().Truncate(time.Millisecond)
	r.EndTime = r.StartTime.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

func (s *reservationService) checkOverlap(ctx context.Context, reservation *model.Reservation) error {
	existing, err := s.repo.FindActiveByResource(ctx, reservation.ResourceID)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}

	for _, other := range existing {
		if other.ID == reservation.ID {
			continue
		}
		if model.Overlaps(other.StartTime, other.EndTime, reservation.StartTime, reservation.EndTime) {
			return apperrors.ReservationConflict(other.ID, other.StartTime, other.EndTime)
		}
	}
	return nil
}

// publishEvent is best-effort: booking state is already committed, so a
// broker outage only costs the notification, never the reservation.
func (s *reservationService) publishEvent(ctx context.Context, eventType string, r *model.Reservation) {
	if s.publisher == nil {
		return
	}

	event := model.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          eventType,
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		OwnerID:       r.OwnerID,
		Status:        r.Status,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		OccurredAt:    time.Now().UTC(),
	}

	msg, err := kafka.NewMessage().
		WithKey(r.ResourceID).
		WithValue(event).
		WithEventType(eventType).
		WithSource("reservations").
		Build()
	if err != nil {
		s.cfg.Log.Error("Failed to build reservation event", "error", err)
		return
	}

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.cfg.Log.Error("Failed to publish reservation event",
			"event_type", eventType,
			"reservation_id", r.ID,
			"error", err,
		)
	}
}
