package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	salonserrors "trimly/internal/salons/errors"
	"trimly/internal/salons/validator"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/geo"
	"trimly/pkg/logger"
	"trimly/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type mockSalonRepository struct {
	createFunc       func(ctx context.Context, s *model.Salon) error
	findByIDFunc     func(ctx context.Context, id string) (*model.Salon, error)
	findAllFunc      func(ctx context.Context, limit int, offset int64) ([]*model.Salon, error)
	findInBoxFunc    func(ctx context.Context, box geo.BoundingBox) ([]*model.Salon, error)
	updateFunc       func(ctx context.Context, id string, s *model.Salon) (*mongo.UpdateResult, error)
	addPhotoURLFunc  func(ctx context.Context, id string, url string) error
	updateRatingFunc func(ctx context.Context, id string, rating float64, count int) error
	countFunc        func(ctx context.Context) (int64, error)
	createReviewFunc func(ctx context.Context, r *model.Review) error
	findReviewsFunc  func(ctx context.Context, salonID string, limit int, offset int64) ([]*model.Review, error)
	countReviewsFunc func(ctx context.Context, salonID string) (int64, error)
}

func (m *mockSalonRepository) Create(ctx context.Context, s *model.Salon) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, s)
	}
	s.ID = "65f000000000000000000010"
	return nil
}

func (m *mockSalonRepository) FindByID(ctx context.Context, id string) (*model.Salon, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, salonserrors.ErrNotFound
}

func (m *mockSalonRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Salon, error) {
	if m.findAllFunc != nil {
		return m.findAllFunc(ctx, limit, offset)
	}
	return []*model.Salon{}, nil
}

func (m *mockSalonRepository) FindInBox(ctx context.Context, box geo.BoundingBox) ([]*model.Salon, error) {
	if m.findInBoxFunc != nil {
		return m.findInBoxFunc(ctx, box)
	}
	return []*model.Salon{}, nil
}

func (m *mockSalonRepository) Update(ctx context.Context, id string, s *model.Salon) (*mongo.UpdateResult, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, s)
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockSalonRepository) AddPhotoURL(ctx context.Context, id string, url string) error {
	if m.addPhotoURLFunc != nil {
		return m.addPhotoURLFunc(ctx, id, url)
	}
	return nil
}

func (m *mockSalonRepository) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	if m.updateRatingFunc != nil {
		return m.updateRatingFunc(ctx, id, rating, count)
	}
	return nil
}

func (m *mockSalonRepository) Count(ctx context.Context) (int64, error) {
	if m.countFunc != nil {
		return m.countFunc(ctx)
	}
	return 0, nil
}

func (m *mockSalonRepository) CreateReview(ctx context.Context, r *model.Review) error {
	if m.createReviewFunc != nil {
		return m.createReviewFunc(ctx, r)
	}
	r.ID = "65f000000000000000000020"
	return nil
}

func (m *mockSalonRepository) FindReviewsBySalon(ctx context.Context, salonID string, limit int, offset int64) ([]*model.Review, error) {
	if m.findReviewsFunc != nil {
		return m.findReviewsFunc(ctx, salonID, limit, offset)
	}
	return []*model.Review{}, nil
}

func (m *mockSalonRepository) CountReviewsBySalon(ctx context.Context, salonID string) (int64, error) {
	if m.countReviewsFunc != nil {
		return m.countReviewsFunc(ctx, salonID)
	}
	return 0, nil
}

func (m *mockSalonRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type mockUploader struct {
	uploadFunc func(ctx context.Context, filename string, file io.Reader) (string, error)
}

func (m *mockUploader) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(ctx, filename, file)
	}
	return "https://media.example.com/" + filename, nil
}

func newTestService(repo *mockSalonRepository, uploader *mockUploader) *salonService {
	cfg := &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		NearbyMaxRadiusKm: 25,
	}
	if uploader == nil {
		uploader = &mockUploader{}
	}
	return &salonService{
		repo:      repo,
		validator: validator.NewSalonValidator(cfg.Log),
		media:     uploader,
		cfg:       cfg,
	}
}

func baseSalon() *model.Salon {
	return &model.Salon{
		Name:      "Fade Factory",
		Address:   "12 Allenby St",
		City:      "Tel Aviv",
		Phone:     "+972501234567",
		Latitude:  32.0853,
		Longitude: 34.7818,
		Barbers: []model.Barber{
			{ID: "barber-1", Name: "Avi Cohen"},
		},
	}
}

func TestCreateSalon(t *testing.T) {
	svc := newTestService(&mockSalonRepository{}, nil)

	s := baseSalon()
	require.NoError(t, svc.Create(context.Background(), s))

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "tel aviv", s.City)
	assert.Equal(t, "Asia/Jerusalem", s.Timezone)
	assert.Zero(t, s.Rating)
	assert.Zero(t, s.RatingCount)
}

func TestCreateSalon_DuplicateBarberIDs(t *testing.T) {
	svc := newTestService(&mockSalonRepository{}, nil)

	s := baseSalon()
	s.Barbers = append(s.Barbers, model.Barber{ID: "barber-1", Name: "Moshe Levi"})

	err := svc.Create(context.Background(), s)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestNearby(t *testing.T) {
	telAviv := geo.Point{Latitude: 32.0853, Longitude: 34.7818}

	near := baseSalon()
	near.ID = "65f000000000000000000011"
	near.Latitude, near.Longitude = 32.08, 34.78

	farther := baseSalon()
	farther.ID = "65f000000000000000000012"
	farther.Latitude, farther.Longitude = 32.02, 34.75

	// In the box corner but outside the circle.
	corner := baseSalon()
	corner.ID = "65f000000000000000000013"
	corner.Latitude, corner.Longitude = 32.17, 34.89

	repo := &mockSalonRepository{
		findInBoxFunc: func(ctx context.Context, box geo.BoundingBox) ([]*model.Salon, error) {
			return []*model.Salon{farther, corner, near}, nil
		},
	}
	svc := newTestService(repo, nil)

	results, err := svc.Nearby(context.Background(), telAviv, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Nearest first.
	assert.Equal(t, near.ID, results[0].Salon.ID)
	assert.Equal(t, farther.ID, results[1].Salon.ID)
	assert.Less(t, results[0].DistanceKm, results[1].DistanceKm)
}

func TestNearby_InvalidInput(t *testing.T) {
	svc := newTestService(&mockSalonRepository{}, nil)

	_, err := svc.Nearby(context.Background(), geo.Point{Latitude: 91}, 5)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)

	_, err = svc.Nearby(context.Background(), geo.Point{}, -1)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}

func TestNearby_RadiusClamped(t *testing.T) {
	var gotBox geo.BoundingBox
	repo := &mockSalonRepository{
		findInBoxFunc: func(ctx context.Context, box geo.BoundingBox) ([]*model.Salon, error) {
			gotBox = box
			return nil, nil
		},
	}
	svc := newTestService(repo, nil)

	center := geo.Point{Latitude: 32.0853, Longitude: 34.7818}
	_, err := svc.Nearby(context.Background(), center, 500)
	require.NoError(t, err)

	clamped := geo.BoxAround(center, 25)
	assert.InDelta(t, clamped.MaxLat, gotBox.MaxLat, 1e-9)
}

func TestAddReview_UpdatesAggregate(t *testing.T) {
	salon := baseSalon()
	salon.ID = "65f000000000000000000010"
	salon.Rating = 4.0
	salon.RatingCount = 3

	var gotRating float64
	var gotCount int
	repo := &mockSalonRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Salon, error) {
			return salon, nil
		},
		updateRatingFunc: func(ctx context.Context, id string, rating float64, count int) error {
			gotRating, gotCount = rating, count
			return nil
		},
	}
	svc := newTestService(repo, nil)

	review := &model.Review{
		SalonID: salon.ID,
		OwnerID: "customer-1",
		Rating:  5,
		Comment: "  great cut  ",
	}
	require.NoError(t, svc.AddReview(context.Background(), review))

	assert.Equal(t, 4, gotCount)
	assert.InDelta(t, 4.25, gotRating, 1e-9)
	assert.Equal(t, "great cut", review.Comment)
	assert.NotEmpty(t, review.ID)
}

func TestAddReview_InvalidRating(t *testing.T) {
	svc := newTestService(&mockSalonRepository{}, nil)

	err := svc.AddReview(context.Background(), &model.Review{
		SalonID: "65f000000000000000000010",
		OwnerID: "customer-1",
		Rating:  6,
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.AsAppError(err).Code)
}

func TestAttachPhoto(t *testing.T) {
	salon := baseSalon()
	salon.ID = "65f000000000000000000010"

	var pushedURL string
	repo := &mockSalonRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Salon, error) {
			return salon, nil
		},
		addPhotoURLFunc: func(ctx context.Context, id string, url string) error {
			pushedURL = url
			return nil
		},
	}
	uploader := &mockUploader{
		uploadFunc: func(ctx context.Context, filename string, file io.Reader) (string, error) {
			return "https://media.example.com/abc.jpg", nil
		},
	}
	svc := newTestService(repo, uploader)

	url, err := svc.AttachPhoto(context.Background(), salon.ID, "selfie.jpg", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://media.example.com/abc.jpg", url)
	assert.Equal(t, url, pushedURL)
}

func TestAttachPhoto_UploadFails(t *testing.T) {
	salon := baseSalon()
	salon.ID = "65f000000000000000000010"

	repo := &mockSalonRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Salon, error) {
			return salon, nil
		},
	}
	uploader := &mockUploader{
		uploadFunc: func(ctx context.Context, filename string, file io.Reader) (string, error) {
			return "", io.ErrUnexpectedEOF
		},
	}
	svc := newTestService(repo, uploader)

	_, err := svc.AttachPhoto(context.Background(), salon.ID, "selfie.jpg", nil)
	assert.Equal(t, apperrors.CodeUnavailable, apperrors.AsAppError(err).Code)
}

func TestUpdateSalon_NotFound(t *testing.T) {
	svc := newTestService(&mockSalonRepository{}, nil)

	_, err := svc.Update(context.Background(), "65f000000000000000000010", &model.SalonUpdate{Name: "New Name"})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)
}
