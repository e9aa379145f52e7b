package credentials

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"credit-service/internal/auth"
	"credit-service/internal/db"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyRegistered  = errors.New("credentials already exist")
	ErrInvalidEmail       = errors.New("invalid email")
)

type Service struct {
	db *db.DB
}

func NewService(db *db.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Register(
	ctx context.Context,
	email string,
	password string,
	fullName string,
) (string, error) {

	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}

	// 1. Hash password
	hash, version, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	// 2. Find or create user by email
	var userID string
	err = tx.GetContext(ctx, &userID, `
		INSERT INTO users (email, email_verified, full_name)
		VALUES ($1, false, $2)
		ON CONFLICT ((LOWER(email))) DO UPDATE SET updated_at = NOW()
		RETURNING id
	`, email, strings.TrimSpace(fullName))

	if err != nil {
		return "", err
	}

	// 3. Insert credentials unless they already exist
	res, err := tx.ExecContext(ctx, `
		INSERT INTO credentials (user_id, password_hash, hash_version)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO NOTHING
	`, userID, hash, version)

	if err != nil {
		return "", err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return "", ErrAlreadyRegistered
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return userID, nil
}

func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (*auth.Identity, error) {

	var a account

	// 1. Find user + credentials
	err := s.db.GetContext(ctx, &a, `
		SELECT u.id, u.email, u.full_name, u.nickname, c.password_hash
		FROM users u
		JOIN credentials c ON c.user_id = u.id
		WHERE LOWER(u.email) = LOWER($1)
	`, strings.TrimSpace(email))

	if errors.Is(err, sql.ErrNoRows) {
		// hide whether user exists or not
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	// 2. Verify password
	if err := VerifyPassword(a.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &auth.Identity{
		ID:       a.UserID,
		Email:    a.Email,
		FullName: a.FullName,
		Nickname: a.Nickname,
	}, nil
}
