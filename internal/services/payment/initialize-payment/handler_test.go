// internal/services/payment/initialize-payment/handler_test.go
package initializepayment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"
	"driving-school-api/internal/payments/providers"
	"driving-school-api/internal/payments/reference"
	"driving-school-api/internal/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

const (
	testID  = "5f0c6a52-8f0e-4e43-9d2c-2f4f3b7c9a10"
	testRef = "PAY-1735689600000-0123456789abcdef"
)

type MockAdapter struct {
	mock.Mock
	name string
}

func (m *MockAdapter) Name() string { return m.name }

func (m *MockAdapter) Initiate(ctx context.Context, req providers.Request) (*providers.Handle, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Handle), args.Error(1)
}

func (m *MockAdapter) Verify(ctx context.Context, ref string) (*providers.Verification, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.Verification), args.Error(1)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, e events.Event) error {
	return m.Called(ctx, e).Error(0)
}

// ==========================
// Test Helper Functions
// ==========================

var columns = []string{
	"id", "full_name", "email", "phone", "dob", "course", "preferred_date",
	"payment_reference", "payment_method", "payment_status", "amount", "transaction_id", "created_at", "updated_at",
}

func row(status string, ref, method interface{}) *sqlmock.Rows {
	ts := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	var amount interface{}
	if ref != nil {
		amount = int64(10000)
	}
	return sqlmock.NewRows(columns).AddRow(
		testID, "Ama Owusu", "ama@example.com", "+233501234567",
		time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC), "learners",
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		ref, method, status, amount, nil, ts, ts,
	)
}

type fixture struct {
	handler  *Handler
	sql      sqlmock.Sqlmock
	mtn      *MockAdapter
	card     *MockAdapter
	recorder *MockRecorder
}

func createFixture(t *testing.T) *fixture {
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	log := logger.NewTestLogger(t)
	f := &fixture{
		sql:      sqlMock,
		mtn:      &MockAdapter{name: "mtn"},
		card:     &MockAdapter{name: "paystack"},
		recorder: &MockRecorder{},
	}
	set := providers.NewSetFromAdapters(map[models.PaymentMethod]providers.Adapter{
		models.MethodMTN:  f.mtn,
		models.MethodCard: f.card,
	})
	cfg := &Config{
		ProviderTimeout: time.Second,
		StoreTimeout:    time.Second,
		Currency:        "GHS",
		CallbackURL:     "https://api.example.com/payment-webhook",
		ReturnURL:       "https://school.example.com",
	}
	refs := reference.GeneratorFunc(func() (string, error) { return testRef, nil })
	f.handler = NewHandler(cfg, store.NewPostgresStore(db, log), set, refs, f.recorder, log)
	return f
}

func (f *fixture) assertExpectations(t *testing.T) {
	assert.NoError(t, f.sql.ExpectationsWereMet())
	f.mtn.AssertExpectations(t)
	f.card.AssertExpectations(t)
}

func createValidInput() *Input {
	return &Input{
		Method:        "mtn",
		ApplicationID: testID,
		Amount:        10000,
		PhoneNumber:   "+233501234567",
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_MobileMoneySuccess(t *testing.T) {
	f := createFixture(t)

	f.sql.ExpectQuery(`SELECT .+ FROM registrations WHERE id = \$1`).WithArgs(testID).WillReturnRows(row("", nil, nil))
	f.mtn.On("Initiate", mock.Anything, mock.MatchedBy(func(req providers.Request) bool {
		return req.Reference == testRef &&
			req.Amount == 10000 &&
			req.Currency == "GHS" &&
			req.PhoneNumber == "+233501234567" &&
			req.CallbackURL == "https://api.example.com/payment-webhook"
	})).Return(&providers.Handle{ProviderReference: "MM-001"}, nil).Once()
	f.sql.ExpectQuery(`UPDATE registrations SET payment_reference = \$2, payment_method = \$3, payment_status = \$4, amount = \$5`).
		WithArgs(testID, testRef, "mtn", "pending", int64(10000), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(row("pending", testRef, "mtn"))
	f.recorder.On("Record", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Reference == testRef && e.To == models.StatusPending && e.Source == events.SourceInitiation
	})).Return(nil).Once()

	output, err := f.handler.Execute(context.Background(), createValidInput())

	require.NoError(t, err)
	assert.Equal(t, testRef, output.Reference)
	assert.Equal(t, models.StatusPending, output.Status)
	assert.Equal(t, "MM-001", output.ProviderReference)
	assert.Empty(t, output.PaymentURL)
	f.assertExpectations(t)
	f.recorder.AssertExpectations(t)
}

func TestHandler_Execute_CardUsesApplicantEmail(t *testing.T) {
	f := createFixture(t)

	f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnRows(row("pending", "PAY-1-aaaaaaaaaaaaaaaa", "mtn"))
	f.card.On("Initiate", mock.Anything, mock.MatchedBy(func(req providers.Request) bool {
		return req.Email == "ama@example.com" && req.ReturnURL == "https://school.example.com"
	})).Return(&providers.Handle{ProviderReference: "acc_1", PaymentURL: "https://checkout.example.com/acc_1"}, nil).Once()
	f.sql.ExpectQuery(`UPDATE registrations SET`).WillReturnRows(row("pending", testRef, "card"))
	f.recorder.On("Record", mock.Anything, mock.Anything).Return(errors.New("es down"))

	input := createValidInput()
	input.Method = "CARD"
	output, err := f.handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/acc_1", output.PaymentURL)
	f.assertExpectations(t)
}

func TestHandler_Execute_IgnoresClientCancellation(t *testing.T) {
	f := createFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnRows(row("", nil, nil))
	f.mtn.On("Initiate", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(&providers.Handle{ProviderReference: "MM-002"}, nil).Once()
	f.sql.ExpectQuery(`UPDATE registrations SET`).WillReturnRows(row("pending", testRef, "mtn"))
	f.recorder.On("Record", mock.Anything, mock.Anything).Return(nil)

	output, err := f.handler.Execute(ctx, createValidInput())

	require.NoError(t, err)
	assert.Equal(t, "MM-002", output.ProviderReference)
	f.assertExpectations(t)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_Errors(t *testing.T) {
	tests := []struct {
		name        string
		input       func() *Input
		setup       func(f *fixture)
		expectedErr error
	}{
		{
			name: "unknown method fails before any I/O",
			input: func() *Input {
				in := createValidInput()
				in.Method = "crypto"
				return in
			},
			setup:       func(f *fixture) {},
			expectedErr: apperrors.ErrInvalidMethod,
		},
		{
			name: "non-positive amount",
			input: func() *Input {
				in := createValidInput()
				in.Amount = 0
				return in
			},
			setup:       func(f *fixture) {},
			expectedErr: apperrors.ErrValidation,
		},
		{
			name: "known method without configured provider",
			input: func() *Input {
				in := createValidInput()
				in.Method = "telecel"
				return in
			},
			setup:       func(f *fixture) {},
			expectedErr: apperrors.ErrPaymentInitiation,
		},
		{
			name:  "unknown application",
			input: createValidInput,
			setup: func(f *fixture) {
				f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnError(sql.ErrNoRows)
			},
			expectedErr: apperrors.ErrNotFound,
		},
		{
			name:  "already settled",
			input: createValidInput,
			setup: func(f *fixture) {
				f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnRows(row("success", testRef, "mtn"))
			},
			expectedErr: apperrors.ErrAlreadySettled,
		},
		{
			name:  "provider failure leaves the record untouched",
			input: createValidInput,
			setup: func(f *fixture) {
				f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnRows(row("", nil, nil))
				f.mtn.On("Initiate", mock.Anything, mock.Anything).Return(nil, errors.New("503 from provider")).Once()
			},
			expectedErr: apperrors.ErrPaymentInitiation,
		},
		{
			name:  "record settled while provider call was in flight",
			input: createValidInput,
			setup: func(f *fixture) {
				f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnRows(row("pending", "PAY-1-aaaaaaaaaaaaaaaa", "mtn"))
				f.mtn.On("Initiate", mock.Anything, mock.Anything).Return(&providers.Handle{ProviderReference: "MM-3"}, nil).Once()
				f.sql.ExpectQuery(`UPDATE registrations SET`).WillReturnError(sql.ErrNoRows)
				f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnRows(row("success", "PAY-1-aaaaaaaaaaaaaaaa", "mtn"))
			},
			expectedErr: apperrors.ErrAlreadySettled,
		},
		{
			name:  "store failure after provider accepted",
			input: createValidInput,
			setup: func(f *fixture) {
				f.sql.ExpectQuery(`SELECT .+ FROM registrations`).WillReturnRows(row("", nil, nil))
				f.mtn.On("Initiate", mock.Anything, mock.Anything).Return(&providers.Handle{ProviderReference: "MM-4"}, nil).Once()
				f.sql.ExpectQuery(`UPDATE registrations SET`).WillReturnError(sql.ErrConnDone)
			},
			expectedErr: apperrors.ErrStore,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := createFixture(t)
			tt.setup(f)

			output, err := f.handler.Execute(context.Background(), tt.input())

			assert.Nil(t, output)
			assert.True(t, errors.Is(err, tt.expectedErr), "got %v", err)
			f.assertExpectations(t)
			f.recorder.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
		})
	}
}
