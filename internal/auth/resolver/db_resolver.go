package resolver

import (
	"context"
	"database/sql"
	"errors"

	"credit-service/internal/auth"
	"credit-service/internal/db"
)

// DBResolver resolves identities using the database.
type DBResolver struct {
	db *db.DB
}

func NewDBResolver(db *db.DB) *DBResolver {
	return &DBResolver{db: db}
}

type userRow struct {
	ID       string `db:"id"`
	Email    string `db:"email"`
	FullName string `db:"full_name"`
	Nickname string `db:"nickname"`
}

func (u userRow) identity() *auth.Identity {
	return &auth.Identity{
		ID:       u.ID,
		Email:    u.Email,
		FullName: u.FullName,
		Nickname: u.Nickname,
	}
}

// Resolve maps a provider identity to a user, linking by email or creating
// the user on first sight. Concurrent first logins for the same subject
// converge on one user through the unique indexes.
func (r *DBResolver) Resolve(
	ctx context.Context,
	identity *auth.ProviderIdentity,
) (*auth.Identity, error) {

	if identity == nil {
		return nil, errors.New("identity is nil")
	}

	// 1. Try identity lookup (provider + provider_user_id)
	var u userRow
	err := r.db.GetContext(ctx, &u, `
		SELECT u.id, u.email, u.full_name, u.nickname
		FROM identities i
		JOIN users u ON u.id = i.user_id
		WHERE i.provider = $1
		  AND i.provider_user_id = $2
	`,
		identity.Provider,
		identity.ProviderUserID,
	)

	if err == nil {
		return u.identity(), nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// 2. Find or create the user by email (existing user, new provider)
	err = r.db.GetContext(ctx, &u, `
		INSERT INTO users (email, email_verified, full_name, nickname)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ((LOWER(email))) DO UPDATE
		SET full_name = CASE WHEN users.full_name = '' THEN EXCLUDED.full_name ELSE users.full_name END,
		    nickname = CASE WHEN users.nickname = '' THEN EXCLUDED.nickname ELSE users.nickname END,
		    updated_at = NOW()
		RETURNING id, email, full_name, nickname
	`,
		identity.Email,
		identity.EmailVerified,
		identity.FullName,
		identity.Nickname,
	)

	if err != nil {
		return nil, err
	}

	// 3. Create identity mapping
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO identities (user_id, provider, provider_user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, provider_user_id) DO NOTHING
	`,
		u.ID,
		identity.Provider,
		identity.ProviderUserID,
	)

	if err != nil {
		return nil, err
	}

	return u.identity(), nil
}
