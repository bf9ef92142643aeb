package reconciler

import (
	"context"
	"errors"
	"sync"
	"testing"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Fakes
// ==========================

const testRef = "PAY-1735689600000-0123456789abcdef"

// memStore honours the StatusIn guard the same way the postgres store does.
type memStore struct {
	mu        sync.Mutex
	records   map[string]*models.Registration
	updates   int
	beforeUpd func(s *memStore)
}

func newMemStore(status models.PaymentStatus) *memStore {
	return &memStore{records: map[string]*models.Registration{
		testRef: {
			ID:               "app-1",
			FullName:         "Ama Owusu",
			PaymentReference: testRef,
			PaymentMethod:    models.MethodMTN,
			PaymentStatus:    status,
			Amount:           10000,
		},
	}}
}

func (s *memStore) FindByReference(ctx context.Context, reference string) (*models.Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[reference]
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("payment", reference)
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) UpdateByReference(ctx context.Context, reference string, patch models.Patch) (*models.Registration, error) {
	if s.beforeUpd != nil {
		s.beforeUpd(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[reference]
	if !ok {
		return nil, apperrors.NewResourceNotFoundError("payment", reference)
	}
	if len(patch.StatusIn) > 0 {
		match := false
		for _, st := range patch.StatusIn {
			if st == r.PaymentStatus {
				match = true
			}
		}
		if !match {
			return nil, apperrors.NewResourceNotFoundError("payment", reference)
		}
	}
	if patch.PaymentStatus != nil {
		r.PaymentStatus = *patch.PaymentStatus
	}
	if patch.TransactionID != nil {
		r.TransactionID = *patch.TransactionID
	}
	s.updates++
	cp := *r
	return &cp, nil
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) PaymentSettled(ctx context.Context, r *models.Registration) error {
	return m.Called(ctx, r).Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, e events.Event) error {
	return m.Called(ctx, e).Error(0)
}

func setup(t *testing.T, status models.PaymentStatus) (*Reconciler, *memStore, *MockRecorder, *MockNotifier) {
	store := newMemStore(status)
	rec := &MockRecorder{}
	notifier := &MockNotifier{}
	return New(store, rec, notifier, logger.NewTestLogger(t)), store, rec, notifier
}

// ==========================
// Push / transitions
// ==========================

func TestApply(t *testing.T) {
	tests := []struct {
		name           string
		stored         models.PaymentStatus
		outcome        Outcome
		expectSettled  bool
		expectErr      error
		validateOutput func(t *testing.T, res *Result, store *memStore)
	}{
		{
			name:          "pending to success",
			stored:        models.StatusPending,
			outcome:       Outcome{Reference: testRef, Status: models.StatusSuccess, TransactionID: "TX123", Source: events.SourceWebhook},
			expectSettled: true,
			validateOutput: func(t *testing.T, res *Result, store *memStore) {
				assert.True(t, res.Applied)
				assert.Equal(t, models.StatusSuccess, res.Registration.PaymentStatus)
				assert.Equal(t, "TX123", res.Registration.TransactionID)
				assert.Equal(t, 1, store.updates)
			},
		},
		{
			name:          "pending to failed",
			stored:        models.StatusPending,
			outcome:       Outcome{Reference: testRef, Status: models.StatusFailed, Source: events.SourceVerify},
			expectSettled: true,
			validateOutput: func(t *testing.T, res *Result, store *memStore) {
				assert.True(t, res.Applied)
				assert.Equal(t, models.StatusFailed, res.Registration.PaymentStatus)
				assert.Empty(t, res.Registration.TransactionID)
			},
		},
		{
			name:    "pending report on pending record",
			stored:  models.StatusPending,
			outcome: Outcome{Reference: testRef, Status: models.StatusPending},
			validateOutput: func(t *testing.T, res *Result, store *memStore) {
				assert.False(t, res.Applied)
				assert.False(t, res.Ignored)
				assert.Equal(t, 0, store.updates)
			},
		},
		{
			name:    "leaving success is ignored",
			stored:  models.StatusSuccess,
			outcome: Outcome{Reference: testRef, Status: models.StatusFailed},
			validateOutput: func(t *testing.T, res *Result, store *memStore) {
				assert.True(t, res.Ignored)
				assert.Equal(t, models.StatusSuccess, res.Registration.PaymentStatus)
				assert.Equal(t, 0, store.updates)
			},
		},
		{
			name:    "back to pending from failed is ignored",
			stored:  models.StatusFailed,
			outcome: Outcome{Reference: testRef, Status: models.StatusPending},
			validateOutput: func(t *testing.T, res *Result, store *memStore) {
				assert.True(t, res.Ignored)
				assert.Equal(t, 0, store.updates)
			},
		},
		{
			name:      "unknown reference",
			stored:    models.StatusPending,
			outcome:   Outcome{Reference: "PAY-1-ffffffffffffffff", Status: models.StatusSuccess},
			expectErr: apperrors.ErrNotFound,
		},
		{
			name:      "unset status rejected",
			stored:    models.StatusPending,
			outcome:   Outcome{Reference: testRef, Status: models.StatusUnset},
			expectErr: apperrors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, store, rec, notifier := setup(t, tt.stored)
			if tt.expectSettled {
				rec.On("Record", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
					return e.Reference == testRef && e.From == tt.stored && e.To == tt.outcome.Status && e.Source == tt.outcome.Source
				})).Return(nil).Once()
				notifier.On("PaymentSettled", mock.Anything, mock.AnythingOfType("*models.Registration")).Return(nil).Once()
			}

			res, err := r.Apply(context.Background(), tt.outcome)

			if tt.expectErr != nil {
				assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				tt.validateOutput(t, res, store)
			}
			rec.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestApply_DuplicateTerminalDeliveryIsNoOp(t *testing.T) {
	r, store, rec, notifier := setup(t, models.StatusPending)
	rec.On("Record", mock.Anything, mock.Anything).Return(nil).Once()
	notifier.On("PaymentSettled", mock.Anything, mock.Anything).Return(nil).Once()

	outcome := Outcome{Reference: testRef, Status: models.StatusSuccess, TransactionID: "TX123", Source: events.SourceWebhook}

	first, err := r.Apply(context.Background(), outcome)
	require.NoError(t, err)
	assert.True(t, first.Applied)

	outcome.TransactionID = "TX999"
	second, err := r.Apply(context.Background(), outcome)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.False(t, second.Ignored)
	assert.Equal(t, "TX123", second.Registration.TransactionID)

	assert.Equal(t, 1, store.updates)
	rec.AssertNumberOfCalls(t, "Record", 1)
	notifier.AssertNumberOfCalls(t, "PaymentSettled", 1)
}

func TestApply_LostRaceReloads(t *testing.T) {
	r, store, rec, notifier := setup(t, models.StatusPending)
	store.beforeUpd = func(s *memStore) {
		s.mu.Lock()
		s.records[testRef].PaymentStatus = models.StatusFailed
		s.mu.Unlock()
	}

	res, err := r.Apply(context.Background(), Outcome{Reference: testRef, Status: models.StatusSuccess})

	require.NoError(t, err)
	assert.True(t, res.Ignored)
	assert.Equal(t, models.StatusFailed, res.Registration.PaymentStatus)
	rec.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "PaymentSettled", mock.Anything, mock.Anything)
}

func TestApply_SideEffectFailuresDoNotFailTheUpdate(t *testing.T) {
	r, _, rec, notifier := setup(t, models.StatusPending)
	rec.On("Record", mock.Anything, mock.Anything).Return(errors.New("es down"))
	notifier.On("PaymentSettled", mock.Anything, mock.Anything).Return(errors.New("zeebe down"))

	res, err := r.Apply(context.Background(), Outcome{Reference: testRef, Status: models.StatusSuccess})

	require.NoError(t, err)
	assert.True(t, res.Applied)
}

func TestApply_ConcurrentDeliveriesApplyOnce(t *testing.T) {
	store := newMemStore(models.StatusPending)
	notifier := &MockNotifier{}
	notifier.On("PaymentSettled", mock.Anything, mock.Anything).Return(nil)
	r := New(store, nil, notifier, logger.NewNoOpLogger())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Apply(context.Background(), Outcome{Reference: testRef, Status: models.StatusSuccess, TransactionID: "TX123"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.updates)
	notifier.AssertNumberOfCalls(t, "PaymentSettled", 1)
}
