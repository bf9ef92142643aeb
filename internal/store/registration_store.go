// internal/store/registration_store.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const registrationColumns = `id, full_name, email, phone, dob, course, preferred_date,
	payment_reference, payment_method, payment_status, amount, transaction_id, created_at, updated_at`

// PostgresStore persists registrations in the registrations table.
type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPostgresStore(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "registration-store"}),
	}
}

// Create validates and inserts r, assigning its id and timestamps.
func (s *PostgresStore) Create(ctx context.Context, r *models.Registration) (string, error) {
	if violations := r.Validate(); len(violations) > 0 {
		fields := make([]apperrors.FieldError, 0, len(violations))
		parts := make([]string, 0, len(violations))
		for _, v := range violations {
			fields = append(fields, apperrors.FieldError{Field: v.Field, Message: "invalid value", Code: v.Rule})
			parts = append(parts, v.String())
		}
		return "", apperrors.NewValidationError(strings.Join(parts, ", "), fields...)
	}

	now := time.Now().UTC()
	r.ID = uuid.New().String()
	r.FullName = strings.TrimSpace(r.FullName)
	r.PaymentStatus = models.StatusUnset
	r.CreatedAt = now
	r.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (
			id, full_name, email, phone, dob, course, preferred_date,
			payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		r.ID,
		r.FullName,
		r.Email,
		r.Phone,
		r.DateOfBirth,
		string(r.Course),
		r.PreferredDate,
		string(r.PaymentStatus),
		now,
	)
	if err != nil {
		return "", apperrors.NewStoreError("create registration", err)
	}
	return r.ID, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewResourceNotFoundError("application", id)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	r, err := scanRegistration(row)
	if err != nil {
		return nil, s.mapError("find registration by id", "application", id, err)
	}
	return r, nil
}

func (s *PostgresStore) FindByReference(ctx context.Context, reference string) (*models.Registration, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE payment_reference = $1`, reference)
	r, err := scanRegistration(row)
	if err != nil {
		return nil, s.mapError("find registration by reference", "payment", reference, err)
	}
	return r, nil
}

// UpdateByID applies patch to a single record and returns the updated row.
func (s *PostgresStore) UpdateByID(ctx context.Context, id string, patch models.Patch) (*models.Registration, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NewResourceNotFoundError("application", id)
	}
	return s.update(ctx, "id", id, "application", patch)
}

// UpdateByReference applies patch to the record holding reference.
func (s *PostgresStore) UpdateByReference(ctx context.Context, reference string, patch models.Patch) (*models.Registration, error) {
	return s.update(ctx, "payment_reference", reference, "payment", patch)
}

// update issues one UPDATE touching only the patched columns. A StatusIn
// guard that does not match is reported as not found.
func (s *PostgresStore) update(ctx context.Context, keyColumn, key, resource string, patch models.Patch) (*models.Registration, error) {
	args := []interface{}{key}
	var sets []string
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.PaymentReference != nil {
		set("payment_reference", *patch.PaymentReference)
	}
	if patch.PaymentMethod != nil {
		set("payment_method", string(*patch.PaymentMethod))
	}
	if patch.PaymentStatus != nil {
		set("payment_status", string(*patch.PaymentStatus))
	}
	if patch.Amount != nil {
		set("amount", *patch.Amount)
	}
	if patch.TransactionID != nil {
		set("transaction_id", *patch.TransactionID)
	}
	set("updated_at", time.Now().UTC())

	where := fmt.Sprintf("%s = $1", keyColumn)
	if len(patch.StatusIn) > 0 {
		statuses := make([]string, len(patch.StatusIn))
		for i, st := range patch.StatusIn {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		where += fmt.Sprintf(" AND payment_status = ANY($%d)", len(args))
	}

	query := fmt.Sprintf(`UPDATE registrations SET %s WHERE %s RETURNING %s`,
		strings.Join(sets, ", "), where, registrationColumns)

	r, err := scanRegistration(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, s.mapError("update registration by "+keyColumn, resource, key, err)
	}
	return r, nil
}

func (s *PostgresStore) mapError(operation, resource, key string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NewResourceNotFoundError(resource, key)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		s.logger.Error("unique constraint violated", map[string]interface{}{
			"operation":  operation,
			"constraint": pqErr.Constraint,
		})
		return apperrors.NewStoreError(operation, fmt.Errorf("duplicate value for %s: %w", pqErr.Constraint, err))
	}
	return apperrors.NewStoreError(operation, err)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		r                       models.Registration
		dob, preferred          time.Time
		course, status          string
		reference, method, txID sql.NullString
		amount                  sql.NullInt64
	)
	err := row.Scan(
		&r.ID, &r.FullName, &r.Email, &r.Phone, &dob, &course, &preferred,
		&reference, &method, &status, &amount, &txID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.DateOfBirth = dob.Format(models.DateLayout)
	r.PreferredDate = preferred.Format(models.DateLayout)
	r.Course = models.Course(course)
	r.PaymentReference = reference.String
	r.PaymentMethod = models.PaymentMethod(method.String)
	r.PaymentStatus = models.PaymentStatus(status)
	r.Amount = amount.Int64
	r.TransactionID = txID.String
	return &r, nil
}
