// internal/services/payment/verify-payment/handler_test.go
package verifypayment

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"
	"driving-school-api/internal/payments/providers"
	"driving-school-api/internal/payments/reconciler"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

const testRef = "PAY-1735689600000-0123456789abcdef"

type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindByReference(ctx context.Context, ref string) (*models.Registration, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

type MockAdapter struct {
	mock.Mock
	name string
}

func (m *MockAdapter) Name() string { return m.name }

func (m *MockAdapter) Initiate(ctx context.Context, req providers.Request) (*providers.Handle, error) {
	return nil, errors.New("not used")
}

func (m *MockAdapter) Verify(ctx context.Context, ref string) (*providers.Verification, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Verification), args.Error(1)
}

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Apply(ctx context.Context, o reconciler.Outcome) (*reconciler.Result, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciler.Result), args.Error(1)
}

// ==========================
// Test Helper Functions
// ==========================

type fixture struct {
	store *MockStore
	mtn   *MockAdapter
	card  *MockAdapter
	rec   *MockReconciler
}

func newFixture() *fixture {
	return &fixture{
		store: &MockStore{},
		mtn:   &MockAdapter{name: "mtn"},
		card:  &MockAdapter{name: "paystack"},
		rec:   &MockReconciler{},
	}
}

func (f *fixture) handler(t *testing.T, rdb *redis.Client) *Handler {
	set := providers.NewSetFromAdapters(map[models.PaymentMethod]providers.Adapter{
		models.MethodMTN:  f.mtn,
		models.MethodCard: f.card,
	})
	cfg := &Config{ProviderTimeout: time.Second, StoreTimeout: time.Second, CacheTTL: 5 * time.Minute}
	return NewHandler(cfg, f.store, set, f.rec, rdb, logger.NewTestLogger(t))
}

func (f *fixture) assertExpectations(t *testing.T) {
	f.store.AssertExpectations(t)
	f.mtn.AssertExpectations(t)
	f.card.AssertExpectations(t)
	f.rec.AssertExpectations(t)
}

func pendingRegistration() *models.Registration {
	return &models.Registration{
		ID:               "app-1",
		PaymentReference: testRef,
		PaymentMethod:    models.MethodMTN,
		PaymentStatus:    models.StatusPending,
	}
}

func cacheValue(t *testing.T, out *Output) []byte {
	data, err := json.Marshal(out)
	require.NoError(t, err)
	return data
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_PersistsAndCachesTerminalResult(t *testing.T) {
	f := newFixture()
	rdb, redisMock := redismock.NewClientMock()

	expected := &Output{Reference: testRef, Status: models.StatusSuccess, TransactionID: "TX123", Provider: "mtn"}

	redisMock.ExpectGet("verify:" + testRef).RedisNil()
	f.store.On("FindByReference", mock.Anything, testRef).Return(pendingRegistration(), nil).Once()
	f.mtn.On("Verify", mock.Anything, testRef).Return(&providers.Verification{
		Reference: testRef, Status: models.StatusSuccess, TransactionID: "TX123", ProviderState: "SUCCESSFUL",
	}, nil).Once()
	f.rec.On("Apply", mock.Anything, reconciler.Outcome{
		Reference: testRef, Status: models.StatusSuccess, TransactionID: "TX123", Source: events.SourceVerify,
	}).Return(&reconciler.Result{
		Registration: &models.Registration{PaymentReference: testRef, PaymentStatus: models.StatusSuccess, TransactionID: "TX123"},
		Applied:      true,
	}, nil).Once()
	redisMock.ExpectSet("verify:"+testRef, cacheValue(t, expected), 5*time.Minute).SetVal("OK")

	output, err := f.handler(t, rdb).Execute(context.Background(), &Input{Reference: testRef})

	require.NoError(t, err)
	assert.Equal(t, expected, output)
	assert.NoError(t, redisMock.ExpectationsWereMet())
	f.assertExpectations(t)
}

func TestHandler_Execute_CacheHitSkipsProvider(t *testing.T) {
	f := newFixture()
	rdb, redisMock := redismock.NewClientMock()

	cached := &Output{Reference: testRef, Status: models.StatusFailed, Provider: "mtn"}
	redisMock.ExpectGet("verify:" + testRef).SetVal(string(cacheValue(t, cached)))

	output, err := f.handler(t, rdb).Execute(context.Background(), &Input{Reference: testRef})

	require.NoError(t, err)
	assert.Equal(t, cached, output)
	assert.NoError(t, redisMock.ExpectationsWereMet())
	f.assertExpectations(t)
}

func TestHandler_Execute_StoredTerminalStatusWins(t *testing.T) {
	f := newFixture()

	reg := pendingRegistration()
	f.store.On("FindByReference", mock.Anything, testRef).Return(reg, nil).Once()
	f.mtn.On("Verify", mock.Anything, testRef).Return(&providers.Verification{Status: models.StatusFailed}, nil).Once()
	f.rec.On("Apply", mock.Anything, mock.Anything).Return(&reconciler.Result{
		Registration: &models.Registration{PaymentStatus: models.StatusSuccess, TransactionID: "TX123"},
		Ignored:      true,
	}, nil).Once()

	output, err := f.handler(t, nil).Execute(context.Background(), &Input{Reference: testRef})

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, output.Status)
	assert.Equal(t, "TX123", output.TransactionID)
	f.assertExpectations(t)
}

func TestHandler_Execute_ForeignReferenceUsesGatewayWithoutPersisting(t *testing.T) {
	tests := []struct {
		name      string
		reference string
		setup     func(f *fixture)
	}{
		{
			name:      "gateway-issued reference is not looked up",
			reference: "T8845763821",
			setup:     func(f *fixture) {},
		},
		{
			name:      "well-formed reference with no registration",
			reference: "PAY-1735689600000-ffffffffffffffff",
			setup: func(f *fixture) {
				f.store.On("FindByReference", mock.Anything, "PAY-1735689600000-ffffffffffffffff").
					Return(nil, apperrors.NewResourceNotFoundError("payment", "x")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)
			f.card.On("Verify", mock.Anything, tt.reference).Return(&providers.Verification{
				Reference: tt.reference, Status: models.StatusPending, ProviderState: "ongoing",
			}, nil).Once()

			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer rdb.Close()

			output, err := f.handler(t, rdb).Execute(context.Background(), &Input{Reference: tt.reference})

			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, output.Status)
			assert.Equal(t, "paystack", output.Provider)
			assert.False(t, mr.Exists("verify:"+tt.reference), "pending results are not cached")
			f.rec.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)
			f.assertExpectations(t)
		})
	}
}

func TestHandler_Execute_TerminalResultIsCachedInRedis(t *testing.T) {
	f := newFixture()
	f.card.On("Verify", mock.Anything, "T1").Return(&providers.Verification{Status: models.StatusSuccess, TransactionID: "99"}, nil).Once()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	h := f.handler(t, rdb)

	first, err := h.Execute(context.Background(), &Input{Reference: "T1"})
	require.NoError(t, err)

	assert.True(t, mr.Exists("verify:T1"))
	assert.Equal(t, 5*time.Minute, mr.TTL("verify:T1"))

	second, err := h.Execute(context.Background(), &Input{Reference: "T1"})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	f.card.AssertNumberOfCalls(t, "Verify", 1)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		reference   string
		setup       func(f *fixture)
		expectedErr error
	}{
		{
			name:        "empty reference",
			reference:   "   ",
			setup:       func(f *fixture) {},
			expectedErr: apperrors.ErrValidation,
		},
		{
			name:      "provider failure",
			reference: testRef,
			setup: func(f *fixture) {
				f.store.On("FindByReference", mock.Anything, testRef).Return(pendingRegistration(), nil).Once()
				f.mtn.On("Verify", mock.Anything, testRef).Return(nil, errors.New("timeout")).Once()
			},
			expectedErr: apperrors.ErrPaymentVerification,
		},
		{
			name:      "store failure",
			reference: testRef,
			setup: func(f *fixture) {
				f.store.On("FindByReference", mock.Anything, testRef).Return(nil, apperrors.NewStoreError("find", errors.New("down"))).Once()
			},
			expectedErr: apperrors.ErrStore,
		},
		{
			name:      "stored method without configured provider",
			reference: testRef,
			setup: func(f *fixture) {
				reg := pendingRegistration()
				reg.PaymentMethod = models.MethodBank
				f.store.On("FindByReference", mock.Anything, testRef).Return(reg, nil).Once()
			},
			expectedErr: apperrors.ErrPaymentVerification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			output, err := f.handler(t, nil).Execute(context.Background(), &Input{Reference: tt.reference})

			assert.Nil(t, output)
			assert.True(t, errors.Is(err, tt.expectedErr), "got %v", err)
			f.assertExpectations(t)
		})
	}
}
