package store

import (
	"context"
	"fmt"
)

const profileColumns = `id, email, full_name, avatar_url, password_hash, created_at, updated_at`

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.AvatarURL, &p.PasswordHash, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PostgresStore) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (id, email, full_name, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+profileColumns,
		p.ID, p.Email, p.FullName, p.PasswordHash,
	)
	created, err := scanProfile(row)
	if err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", classify(err))
	}
	return created, nil
}

func (s *PostgresStore) GetProfileByID(ctx context.Context, id string) (Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
}

// GetProfileByEmail matches case-insensitively.
func (s *PostgresStore) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE LOWER(email) = LOWER($1)`, email))
}

// UpdateProfile never touches email.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, fullName, avatarURL *string) (Profile, error) {
	var b setBuilder
	if fullName != nil {
		b.add("full_name", *fullName)
	}
	if avatarURL != nil {
		b.add("avatar_url", nullIfEmpty(avatarURL))
	}
	if b.empty() {
		return s.GetProfileByID(ctx, id)
	}
	b.raw("updated_at = NOW()")
	ph := b.where(id)
	row := s.db.QueryRowContext(ctx, `UPDATE profiles SET `+b.clause()+` WHERE id = `+ph[0]+` RETURNING `+profileColumns, b.args...)
	p, err := scanProfile(row)
	if err != nil {
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	return p, nil
}
