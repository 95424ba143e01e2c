package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"sync"

	salonserrors "trimly/internal/salons/errors"
	"trimly/internal/salons/repository"
	"trimly/internal/salons/validator"
	"trimly/pkg/client"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/geo"
	"trimly/pkg/locale"
	"trimly/pkg/model"
	"trimly/pkg/sanitizer"

	"github.com/google/uuid"
)

type SalonService interface {
	Create(ctx context.Context, salon *model.Salon) error
	GetByID(ctx context.Context, id string) (*model.Salon, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Salon, int64, error)
	Update(ctx context.Context, id string, updates *model.SalonUpdate) (*model.Salon, error)
	Nearby(ctx context.Context, center geo.Point, radiusKm float64) ([]*NearbySalon, error)
	AttachPhoto(ctx context.Context, id string, filename string, file io.Reader) (string, error)
	AddReview(ctx context.Context, review *model.Review) error
	ListReviews(ctx context.Context, salonID string, limit int, offset int64) ([]*model.Review, int64, error)
}

// NearbySalon pairs a salon with its exact distance from the search center.
type NearbySalon struct {
	Salon      *model.Salon `json:"salon"`
	DistanceKm float64      `json:"distance_km"`
}

type salonService struct {
	repo      repository.SalonRepository
	validator *validator.SalonValidator
	media     client.MediaUploader
	cfg       *config.Config
}

func NewSalonService(
	repo repository.SalonRepository,
	validator *validator.SalonValidator,
	media client.MediaUploader,
	cfg *config.Config,
) SalonService {
	return &salonService{
		repo:      repo,
		validator: validator,
		media:     media,
		cfg:       cfg,
	}
}

func (s *salonService) Create(ctx context.Context, salon *model.Salon) error {
	s.sanitize(salon)
	s.applyDefaults(salon)
	if err := s.validate(salon); err != nil {
		return err
	}

	salon.Rating = 0
	salon.RatingCount = 0
	if err := s.repo.Create(ctx, salon); err != nil {
		s.cfg.Log.Error("Failed to create salon", "error", err)
		return apperrors.Internal("Failed to create salon", err)
	}

	s.cfg.Log.Info("Salon created successfully", "id", salon.ID, "name", salon.Name, "city", salon.City)
	return nil
}

func (s *salonService) GetByID(ctx context.Context, id string) (*model.Salon, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Salon ID cannot be empty")
	}

	salon, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve salon")
	}
	return salon, nil
}

func (s *salonService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Salon, int64, error) {
	var count int64
	var salons []*model.Salon
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count salons", "error", errCount)
			errCount = apperrors.Internal("Failed to count salons", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		salons, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list salons", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve salons", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return salons, count, nil
}

func (s *salonService) Update(ctx context.Context, id string, updates *model.SalonUpdate) (*model.Salon, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Salon ID cannot be empty")
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Salon update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to check salon existence")
	}

	merged := s.mergeSalonUpdates(existing, updates)
	s.sanitize(merged)
	if err := s.validate(merged); err != nil {
		return nil, err
	}

	if _, err := s.repo.Update(ctx, id, merged); err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update salon")
	}

	s.cfg.Log.Info("Salon updated successfully", "id", id)
	return merged, nil
}

// Nearby finds salons within radiusKm of center, nearest first. The repo
// query uses a bounding box so the lat/lng indexes apply; the haversine pass
// here trims the box corners and produces exact distances.
func (s *salonService) Nearby(ctx context.Context, center geo.Point, radiusKm float64) ([]*NearbySalon, error) {
	if center.Latitude < -90 || center.Latitude > 90 {
		return nil, apperrors.InvalidInput("Latitude must be between -90 and 90")
	}
	if center.Longitude < -180 || center.Longitude > 180 {
		return nil, apperrors.InvalidInput("Longitude must be between -180 and 180")
	}
	if radiusKm <= 0 {
		return nil, apperrors.InvalidInput("Radius must be positive")
	}
	radiusKm = math.Min(radiusKm, s.cfg.NearbyMaxRadiusKm)

	box := geo.BoxAround(center, radiusKm)
	candidates, err := s.repo.FindInBox(ctx, box)
	if err != nil {
		s.cfg.Log.Error("Failed to query nearby salons", "error", err)
		return nil, apperrors.Internal("Failed to search nearby salons", err)
	}

	results := []*NearbySalon{}
	for _, salon := range candidates {
		distance := geo.HaversineKm(center, geo.Point{
			Latitude:  salon.Latitude,
			Longitude: salon.Longitude,
		})
		if distance <= radiusKm {
			results = append(results, &NearbySalon{Salon: salon, DistanceKm: distance})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].DistanceKm < results[j].DistanceKm
	})

	s.cfg.Log.Debug("Nearby search completed",
		"candidates", len(candidates),
		"matches", len(results),
		"radius_km", radiusKm,
	)
	return results, nil
}

// AttachPhoto uploads the image to the media host first; only a successful
// upload touches the salon document, so there are never dangling URLs.
func (s *salonService) AttachPhoto(ctx context.Context, id string, filename string, file io.Reader) (string, error) {
	if id == "" {
		return "", apperrors.InvalidInput("Salon ID cannot be empty")
	}

	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return "", s.mapRepoError(err, id, "Failed to check salon existence")
	}

	storedName := fmt.Sprintf("salons/%s/%s%s", id, uuid.NewString(), filepath.Ext(filename))
	url, err := s.media.Upload(ctx, storedName, file)
	if err != nil {
		s.cfg.Log.Error("Photo upload failed", "salon_id", id, "error", err)
		return "", apperrors.Unavailable("media storage")
	}

	if err := s.repo.AddPhotoURL(ctx, id, url); err != nil {
		return "", s.mapRepoError(err, id, "Failed to attach photo")
	}

	s.cfg.Log.Info("Photo attached to salon", "salon_id", id, "url", url)
	return url, nil
}

// AddReview inserts the review and recomputes the salon's rating aggregate
// in one transaction, so concurrent reviews cannot lose counts.
func (s *salonService) AddReview(ctx context.Context, review *model.Review) error {
	review.Comment = sanitizer.NormalizeComment(review.Comment)
	review.OwnerID = sanitizer.TrimAndNormalize(review.OwnerID)
	if err := s.validator.ValidateReview(review); err != nil {
		s.cfg.Log.Warn("Review validation failed", "error", err)
		return apperrors.Validation("Review validation failed", map[string]any{"error": err.Error()})
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		salon, err := s.repo.FindByID(txCtx, review.SalonID)
		if err != nil {
			return s.mapRepoError(err, review.SalonID, "Failed to load salon")
		}

		if err := s.repo.CreateReview(txCtx, review); err != nil {
			return apperrors.Internal("Failed to create review", err)
		}

		newCount := salon.RatingCount + 1
		newRating := (salon.Rating*float64(salon.RatingCount) + float64(review.Rating)) / float64(newCount)
		if err := s.repo.UpdateRating(txCtx, review.SalonID, newRating, newCount); err != nil {
			return apperrors.Internal("Failed to update salon rating", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, mongotx.ErrRetriesExhausted) {
			return apperrors.TransientConflict("Salon rating is under contention. Please retry.", err)
		}
		s.cfg.Log.Error("Failed to add review", "salon_id", review.SalonID, "error", err)
		return err
	}

	s.cfg.Log.Info("Review added", "salon_id", review.SalonID, "rating", review.Rating)
	return nil
}

func (s *salonService) ListReviews(ctx context.Context, salonID string, limit int, offset int64) ([]*model.Review, int64, error) {
	if salonID == "" {
		return nil, 0, apperrors.InvalidInput("Salon ID cannot be empty")
	}

	var count int64
	var reviews []*model.Review
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.CountReviewsBySalon(ctx, salonID)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count reviews", "salon_id", salonID, "error", errCount)
			errCount = apperrors.Internal("Failed to count reviews", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		reviews, errFind = s.repo.FindReviewsBySalon(ctx, salonID, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list reviews", "salon_id", salonID, "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve reviews", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return reviews, count, nil
}

// --- Helpers ---

func (s *salonService) sanitize(salon *model.Salon) {
	salon.Name = sanitizer.NormalizeName(salon.Name)
	salon.Address = sanitizer.NormalizeAddress(salon.Address)
	salon.City = sanitizer.NormalizeCity(salon.City)
	salon.Phone = sanitizer.NormalizePhone(salon.Phone)
	for i := range salon.Barbers {
		salon.Barbers[i].Name = sanitizer.NormalizeName(salon.Barbers[i].Name)
		salon.Barbers[i].ID = sanitizer.TrimAndNormalize(salon.Barbers[i].ID)
	}
}

func (s *salonService) applyDefaults(salon *model.Salon) {
	if salon.Timezone == "" {
		salon.Timezone = locale.InferTimezoneFromPhone(salon.Phone)
	}
	for i := range salon.Barbers {
		if salon.Barbers[i].ID == "" {
			salon.Barbers[i].ID = uuid.NewString()
		}
	}
}

func (s *salonService) validate(salon *model.Salon) error {
	if err := s.validator.Validate(salon); err != nil {
		s.cfg.Log.Warn("Salon validation failed", "error", err)
		return apperrors.Validation("Salon validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *salonService) mergeSalonUpdates(existing *model.Salon, updates *model.SalonUpdate) *model.Salon {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Address != "" {
		merged.Address = updates.Address
	}
	if updates.City != "" {
		merged.City = updates.City
	}
	if updates.Phone != "" {
		merged.Phone = updates.Phone
	}
	if updates.Latitude != nil {
		merged.Latitude = *updates.Latitude
	}
	if updates.Longitude != nil {
		merged.Longitude = *updates.Longitude
	}
	if updates.Barbers != nil {
		merged.Barbers = *updates.Barbers
	}

	return &merged
}

func (s *salonService) mapRepoError(err error, id string, internalMsg string) error {
	if errors.Is(err, salonserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Salon", id)
	}
	if errors.Is(err, salonserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid salon ID format")
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal(internalMsg, err)
}
