package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"credit-service/internal/db"

	"github.com/lib/pq"
)

const uniqueViolation = pq.ErrorCode("23505")

type PostgresStore struct {
	db *db.DB
}

func NewPostgresStore(db *db.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	err := s.db.GetContext(ctx, &p, `
		SELECT id, email, name, credits, tier, created_at
		FROM profiles
		WHERE id = $1
	`, id)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", id, err)
	}

	return &p, nil
}

func (s *PostgresStore) Insert(ctx context.Context, p *Profile) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO profiles (id, email, name, credits, tier)
		VALUES (:id, :email, :name, :credits, :tier)
	`, p)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("profile: insert %s: %w", p.ID, err)
	}

	return nil
}
