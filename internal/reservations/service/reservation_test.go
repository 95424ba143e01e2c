package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	reservationserrors "trimly/internal/reservations/errors"
	resvalidator "trimly/internal/reservations/validator"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/kafka"
	"trimly/pkg/logger"
	"trimly/pkg/model"
)

// Mock repository for testing
type mockReservationRepository struct {
	createFunc               func(ctx context.Context, r *model.Reservation) error
	claimResourceFunc        func(ctx context.Context, resourceID string) error
	findByIDFunc             func(ctx context.Context, id string) (*model.Reservation, error)
	findActiveByResourceFunc func(ctx context.Context, resourceID string) ([]*model.Reservation, error)
	findByResourceFunc       func(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.Reservation, error)
	findByOwnerFunc          func(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error)
	countByResourceFunc      func(ctx context.Context, resourceID string) (int64, error)
	countByOwnerFunc         func(ctx context.Context, ownerID string) (int64, error)
	updateStatusFunc         func(ctx context.Context, id string, status string) error
	executeTransactionFunc   func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func (m *mockReservationRepository) Create(ctx context.Context, r *model.Reservation) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, r)
	}
	r.ID = "65f000000000000000000001"
	return nil
}

func (m *mockReservationRepository) ClaimResource(ctx context.Context, resourceID string) error {
	if m.claimResourceFunc != nil {
		return m.claimResourceFunc(ctx, resourceID)
	}
	return nil
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepository) FindActiveByResource(ctx context.Context, resourceID string) ([]*model.Reservation, error) {
	if m.findActiveByResourceFunc != nil {
		return m.findActiveByResourceFunc(ctx, resourceID)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindByResource(ctx context.Context, resourceID string, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findByResourceFunc != nil {
		return m.findByResourceFunc(ctx, resourceID, limit, offset)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Reservation, error) {
	if m.findByOwnerFunc != nil {
		return m.findByOwnerFunc(ctx, ownerID, limit, offset)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationRepository) CountByResource(ctx context.Context, resourceID string) (int64, error) {
	if m.countByResourceFunc != nil {
		return m.countByResourceFunc(ctx, resourceID)
	}
	return 0, nil
}

func (m *mockReservationRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	if m.countByOwnerFunc != nil {
		return m.countByOwnerFunc(ctx, ownerID)
	}
	return 0, nil
}

func (m *mockReservationRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTransactionFunc != nil {
		return m.executeTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type capturingPublisher struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (p *capturingPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "test",
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func newTestService(repo *mockReservationRepository, publisher EventPublisher) *reservationService {
	cfg := testConfig()
	return &reservationService{
		repo:      repo,
		validator: resvalidator.NewReservationValidator(cfg.Log),
		publisher: publisher,
		cfg:       cfg,
	}
}

func baseReservation() *model.Reservation {
	return &model.Reservation{
		ResourceID:      "barber-1",
		OwnerID:         "customer-1",
		StartTime:       time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 30,
	}
}

func TestCreate_Success(t *testing.T) {
	publisher := &capturingPublisher{}
	repo := &mockReservationRepository{}
	svc := newTestService(repo, publisher)

	r := baseReservation()
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.Status != model.StatusPending {
		t.Errorf("expected default status pending, got %q", r.Status)
	}
	wantEnd := r.StartTime.Add(30 * time.Minute)
	if !r.EndTime.Equal(wantEnd) {
		t.Errorf("expected end time %v, got %v", wantEnd, r.EndTime)
	}
	if r.ID == "" {
		t.Error("expected reservation id to be set")
	}
	if r.ConfirmationCode == "" {
		t.Error("expected confirmation code to be set")
	}
	if len(publisher.messages) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.messages))
	}
	if got := publisher.messages[0].Key; got != "barber-1" {
		t.Errorf("expected event keyed by resource id, got %q", got)
	}
	if got := publisher.messages[0].GetEventType(); got != model.EventReservationCreated {
		t.Errorf("expected event type %q, got %q", model.EventReservationCreated, got)
	}
}

func TestCreate_OverlapConflict(t *testing.T) {
	existing := &model.Reservation{
		ID:         "65f000000000000000000099",
		ResourceID: "barber-1",
		Status:     model.StatusConfirmed,
		StartTime:  time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC),
	}

	cases := []struct {
		name  string
		start time.Time
		want  bool // conflict expected
	}{
		{"identical interval", existing.StartTime, true},
		{"partial overlap at tail", existing.StartTime.Add(45 * time.Minute), true},
		{"contained inside", existing.StartTime.Add(10 * time.Minute), true},
		{"back to back after", existing.EndTime, false},
		{"back to back before", existing.StartTime.Add(-30 * time.Minute), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockReservationRepository{
				findActiveByResourceFunc: func(ctx context.Context, resourceID string) ([]*model.Reservation, error) {
					return []*model.Reservation{existing}, nil
				},
			}
			svc := newTestService(repo, nil)

			r := baseReservation()
			r.StartTime = tc.start
			err := svc.Create(context.Background(), r)

			if !tc.want {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}

			appErr := apperrors.AsAppError(err)
			if appErr == nil {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != apperrors.CodeConflict {
				t.Errorf("expected code %s, got %s", apperrors.CodeConflict, appErr.Code)
			}
			if appErr.HTTPStatus != 409 {
				t.Errorf("expected HTTP 409, got %d", appErr.HTTPStatus)
			}
			if got := appErr.Details["conflicting_id"]; got != existing.ID {
				t.Errorf("expected conflicting_id %q, got %v", existing.ID, got)
			}
		})
	}
}

func TestCreate_CancelledDoesNotBlock(t *testing.T) {
	// The store-level filter excludes cancelled reservations from the
	// active set, so the slot is free again.
	repo := &mockReservationRepository{
		findActiveByResourceFunc: func(ctx context.Context, resourceID string) ([]*model.Reservation, error) {
			return []*model.Reservation{}, nil
		},
	}
	svc := newTestService(repo, nil)

	if err := svc.Create(context.Background(), baseReservation()); err != nil {
		t.Fatalf("expected success on freed slot, got %v", err)
	}
}

func TestCreate_ValidationFailsBeforeStore(t *testing.T) {
	storeTouched := false
	repo := &mockReservationRepository{
		executeTransactionFunc: func(ctx context.Context, fn mongotx.TransactionFunc) error {
			storeTouched = true
			return fn(ctx)
		},
	}
	svc := newTestService(repo, nil)

	cases := []struct {
		name   string
		mutate func(*model.Reservation)
	}{
		{"missing resource id", func(r *model.Reservation) { r.ResourceID = "" }},
		{"missing owner id", func(r *model.Reservation) { r.OwnerID = "" }},
		{"zero duration", func(r *model.Reservation) { r.DurationMinutes = 0 }},
		{"negative duration", func(r *model.Reservation) { r.DurationMinutes = -15 }},
		{"zero start time", func(r *model.Reservation) { r.StartTime = time.Time{} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := baseReservation()
			tc.mutate(r)

			err := svc.Create(context.Background(), r)
			appErr := apperrors.AsAppError(err)
			if appErr == nil {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != apperrors.CodeValidation {
				t.Errorf("expected code %s, got %s", apperrors.CodeValidation, appErr.Code)
			}
			if storeTouched {
				t.Error("store must not be touched when validation fails")
			}
		})
	}
}

func TestCreate_RetriesExhausted(t *testing.T) {
	repo := &mockReservationRepository{
		executeTransactionFunc: func(ctx context.Context, fn mongotx.TransactionFunc) error {
			return fmt.Errorf("4 attempts: %w", mongotx.ErrRetriesExhausted)
		},
	}
	svc := newTestService(repo, nil)

	err := svc.Create(context.Background(), baseReservation())
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != apperrors.CodeTransientConflict {
		t.Errorf("expected code %s, got %s", apperrors.CodeTransientConflict, appErr.Code)
	}
	if appErr.HTTPStatus != 503 {
		t.Errorf("expected HTTP 503, got %d", appErr.HTTPStatus)
	}
}

// snapshotStore mimics the storage engine's concurrency rules instead of
// serializing transaction bodies: reads come from a snapshot taken at
// transaction start, and a commit aborts with a transient retry only when
// the transaction wrote a document that another transaction committed after
// that snapshot. Inserting distinct documents never collides, so without
// the shared claim write two same-slot creators would both commit.
type snapshotStore struct {
	mu           sync.Mutex
	commitSeq    int
	lastWrite    map[string]int
	reservations []*model.Reservation
	nextID       int
	maxAttempts  int
}

type snapshotTx struct {
	startSeq     int
	snapshot     []*model.Reservation
	inserted     []*model.Reservation
	statusWrites map[string]string
	writes       map[string]bool
}

type snapshotTxKey struct{}

func newSnapshotStore() *snapshotStore {
	return &snapshotStore{lastWrite: map[string]int{}, maxAttempts: 4}
}

func (s *snapshotStore) begin() *snapshotTx {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make([]*model.Reservation, len(s.reservations))
	for i, r := range s.reservations {
		copied := *r
		snap[i] = &copied
	}
	return &snapshotTx{
		startSeq:     s.commitSeq,
		snapshot:     snap,
		statusWrites: map[string]string{},
		writes:       map[string]bool{},
	}
}

func (s *snapshotStore) commit(tx *snapshotTx) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range tx.writes {
		if s.lastWrite[key] > tx.startSeq {
			return false
		}
	}
	s.commitSeq++
	for key := range tx.writes {
		s.lastWrite[key] = s.commitSeq
	}
	for _, r := range tx.inserted {
		copied := *r
		s.reservations = append(s.reservations, &copied)
	}
	for id, status := range tx.statusWrites {
		for _, r := range s.reservations {
			if r.ID == id {
				r.Status = status
			}
		}
	}
	return true
}

func (s *snapshotStore) committed() []*model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Reservation, len(s.reservations))
	for i, r := range s.reservations {
		copied := *r
		out[i] = &copied
	}
	return out
}

func (s *snapshotStore) repo() *mockReservationRepository {
	txOf := func(ctx context.Context) *snapshotTx {
		tx, _ := ctx.Value(snapshotTxKey{}).(*snapshotTx)
		return tx
	}
	return &mockReservationRepository{
		executeTransactionFunc: func(ctx context.Context, fn mongotx.TransactionFunc) error {
			for attempt := 1; attempt <= s.maxAttempts; attempt++ {
				tx := s.begin()
				if err := fn(context.WithValue(ctx, snapshotTxKey{}, tx)); err != nil {
					return err
				}
				if s.commit(tx) {
					return nil
				}
			}
			return fmt.Errorf("%d attempts: %w", s.maxAttempts, mongotx.ErrRetriesExhausted)
		},
		claimResourceFunc: func(ctx context.Context, resourceID string) error {
			txOf(ctx).writes["claim/"+resourceID] = true
			return nil
		},
		findActiveByResourceFunc: func(ctx context.Context, resourceID string) ([]*model.Reservation, error) {
			var active []*model.Reservation
			for _, r := range txOf(ctx).snapshot {
				if r.ResourceID == resourceID && model.ConflictParticipating(r.Status) {
					active = append(active, r)
				}
			}
			return active, nil
		},
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			tx := txOf(ctx)
			s.mu.Lock()
			s.nextID++
			r.ID = fmt.Sprintf("65f0000000000000000000%02d", s.nextID)
			s.mu.Unlock()
			tx.writes["res/"+r.ID] = true
			copied := *r
			tx.inserted = append(tx.inserted, &copied)
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			for _, r := range txOf(ctx).snapshot {
				if r.ID == id {
					copied := *r
					return &copied, nil
				}
			}
			return nil, reservationserrors.ErrNotFound
		},
		updateStatusFunc: func(ctx context.Context, id string, status string) error {
			tx := txOf(ctx)
			tx.writes["res/"+id] = true
			tx.statusWrites[id] = status
			return nil
		},
	}
}

func TestCreate_ConcurrentSameSlot(t *testing.T) {
	store := newSnapshotStore()
	svc := newTestService(store.repo(), nil)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	wg.Add(attempts)

	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			r := baseReservation()
			r.OwnerID = fmt.Sprintf("customer-%d", i)
			errs[i] = svc.Create(context.Background(), r)
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		if appErr := apperrors.AsAppError(err); appErr != nil && appErr.Code == apperrors.CodeConflict {
			conflicts++
		} else {
			t.Errorf("unexpected error kind: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicts)
	}

	// No pair of committed reservations may overlap on the resource.
	committed := store.committed()
	if len(committed) != 1 {
		t.Fatalf("expected exactly 1 committed reservation, got %d", len(committed))
	}
	for i := 0; i < len(committed); i++ {
		for j := i + 1; j < len(committed); j++ {
			a, b := committed[i], committed[j]
			if a.ResourceID == b.ResourceID &&
				model.Overlaps(a.StartTime, a.EndTime, b.StartTime, b.EndTime) {
				t.Errorf("overlapping reservations committed: %s and %s", a.ID, b.ID)
			}
		}
	}
}

func TestCreate_DifferentResourcesIndependent(t *testing.T) {
	store := newSnapshotStore()
	svc := newTestService(store.repo(), nil)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	for i, resource := range []string{"barber-1", "barber-2"} {
		go func(i int, resource string) {
			defer wg.Done()
			r := baseReservation()
			r.ResourceID = resource
			errs[i] = svc.Create(context.Background(), r)
		}(i, resource)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("reservation %d: identical intervals on different resources must both succeed, got %v", i, err)
		}
	}
	if got := len(store.committed()); got != 2 {
		t.Errorf("expected 2 committed reservations, got %d", got)
	}
}

func TestCreate_CancellationFreesSlot(t *testing.T) {
	store := newSnapshotStore()
	svc := newTestService(store.repo(), nil)

	first := baseReservation()
	if err := svc.Create(context.Background(), first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// While the first reservation is active the slot is taken.
	blocked := baseReservation()
	blocked.OwnerID = "customer-2"
	err := svc.Create(context.Background(), blocked)
	if appErr := apperrors.AsAppError(err); appErr == nil || appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict while slot held, got %v", err)
	}

	if _, err := svc.UpdateStatus(context.Background(), first.ID, model.StatusCancelled); err != nil {
		t.Fatalf("unexpected error cancelling: %v", err)
	}

	retry := baseReservation()
	retry.OwnerID = "customer-2"
	if err := svc.Create(context.Background(), retry); err != nil {
		t.Fatalf("expected success after cancellation freed the slot, got %v", err)
	}
}

func TestCreate_TransientRerunResetsID(t *testing.T) {
	// The body runs twice, as after a transiently failed commit. The second
	// attempt must start from a clean reservation: an id left over from the
	// aborted insert would be stored as a string _id and never match
	// ObjectID lookups.
	var idsAtInsert []string
	repo := &mockReservationRepository{
		executeTransactionFunc: func(ctx context.Context, fn mongotx.TransactionFunc) error {
			if err := fn(ctx); err != nil {
				return err
			}
			return fn(ctx)
		},
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			idsAtInsert = append(idsAtInsert, r.ID)
			r.ID = fmt.Sprintf("65f0000000000000000000%02d", len(idsAtInsert))
			return nil
		},
	}
	svc := newTestService(repo, nil)

	r := baseReservation()
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(idsAtInsert) != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", len(idsAtInsert))
	}
	for i, id := range idsAtInsert {
		if id != "" {
			t.Errorf("attempt %d: expected empty id at insert, got %q", i+1, id)
		}
	}
	if r.ID != "65f000000000000000000002" {
		t.Errorf("expected id from the committed attempt, got %q", r.ID)
	}
}

func TestUpdateStatus_Transitions(t *testing.T) {
	cases := []struct {
		from    string
		to      string
		allowed bool
	}{
		{model.StatusPending, model.StatusConfirmed, true},
		{model.StatusPending, model.StatusCancelled, true},
		{model.StatusPending, model.StatusCompleted, false},
		{model.StatusConfirmed, model.StatusCancelled, true},
		{model.StatusConfirmed, model.StatusCompleted, true},
		{model.StatusConfirmed, model.StatusPending, false},
		{model.StatusCancelled, model.StatusConfirmed, false},
		{model.StatusCancelled, model.StatusPending, false},
		{model.StatusCancelled, model.StatusCompleted, false},
		{model.StatusCompleted, model.StatusCancelled, false},
		{model.StatusPending, model.StatusPending, false},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_to_%s", tc.from, tc.to), func(t *testing.T) {
			repo := &mockReservationRepository{
				findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
					return &model.Reservation{
						ID:         id,
						ResourceID: "barber-1",
						OwnerID:    "customer-1",
						Status:     tc.from,
					}, nil
				},
			}
			publisher := &capturingPublisher{}
			svc := newTestService(repo, publisher)

			updated, err := svc.UpdateStatus(context.Background(), "65f000000000000000000001", tc.to)

			if tc.allowed {
				if err != nil {
					t.Fatalf("expected transition to succeed, got %v", err)
				}
				if updated.Status != tc.to {
					t.Errorf("expected status %q, got %q", tc.to, updated.Status)
				}
				if len(publisher.messages) != 1 {
					t.Errorf("expected status change event, got %d messages", len(publisher.messages))
				}
				return
			}

			appErr := apperrors.AsAppError(err)
			if appErr == nil {
				t.Fatalf("expected AppError, got %v", err)
			}
			if appErr.Code != apperrors.CodeInvalidTransition {
				t.Errorf("expected code %s, got %s", apperrors.CodeInvalidTransition, appErr.Code)
			}
			if len(publisher.messages) != 0 {
				t.Errorf("no event expected on rejected transition, got %d", len(publisher.messages))
			}
		})
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			return nil, reservationserrors.ErrNotFound
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.UpdateStatus(context.Background(), "65f000000000000000000001", model.StatusConfirmed)
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected code %s, got %s", apperrors.CodeNotFound, appErr.Code)
	}
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc := newTestService(&mockReservationRepository{}, nil)

	_, err := svc.UpdateStatus(context.Background(), "65f000000000000000000001", "paused")
	appErr := apperrors.AsAppError(err)
	if appErr == nil {
		t.Fatalf("expected AppError, got %v", err)
	}
	if appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected code %s, got %s", apperrors.CodeInvalidInput, appErr.Code)
	}
}

func TestGetByConfirmationCode(t *testing.T) {
	publisher := &capturingPublisher{}
	stored := map[string]*model.Reservation{}
	repo := &mockReservationRepository{
		createFunc: func(ctx context.Context, r *model.Reservation) error {
			r.ID = "65f000000000000000000042"
			copied := *r
			stored[r.ID] = &copied
			return nil
		},
		findByIDFunc: func(ctx context.Context, id string) (*model.Reservation, error) {
			if r, ok := stored[id]; ok {
				return r, nil
			}
			return nil, reservationserrors.ErrNotFound
		},
	}
	svc := newTestService(repo, publisher)

	r := baseReservation()
	if err := svc.Create(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := svc.GetByConfirmationCode(context.Background(), r.ConfirmationCode)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != r.ID {
		t.Errorf("expected reservation %q, got %q", r.ID, found.ID)
	}

	if _, err := svc.GetByConfirmationCode(context.Background(), "not-a-code"); err == nil {
		t.Error("expected error for malformed code")
	}
}
