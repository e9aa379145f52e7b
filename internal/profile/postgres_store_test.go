package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"credit-service/internal/db"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewPostgresStore(&db.DB{DB: sqlx.NewDb(sqlDB, "postgres")}), mock
}

func TestPostgresStore_GetByID(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery("FROM profiles").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "credits", "tier", "created_at"}).
			AddRow("u-1", "kim@example.com", "Kim", 120, "paid", created))

	p, err := store.GetByID(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 120, p.Credits)
	assert.Equal(t, TierPaid, p.Tier)
	assert.True(t, created.Equal(p.CreatedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM profiles").
		WithArgs("u-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "credits", "tier", "created_at"}))

	_, err := store.GetByID(context.Background(), "u-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_GetByIDTransient(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM profiles").WillReturnError(errors.New("connection refused"))

	_, err := store.GetByID(context.Background(), "u-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_Insert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO profiles").
		WithArgs("u-1", "kim@example.com", "Kim", SignupBonus, "free").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Insert(context.Background(), &Profile{
		ID: "u-1", Email: "kim@example.com", Name: "Kim", Credits: SignupBonus, Tier: TierFree,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO profiles").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Insert(context.Background(), &Profile{ID: "u-1", Tier: TierFree})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPostgresStore_InsertOtherError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO profiles").WillReturnError(errors.New("disk full"))

	err := store.Insert(context.Background(), &Profile{ID: "u-1", Tier: TierFree})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
}
