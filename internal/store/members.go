package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) ListMembers(ctx context.Context, organizationID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.organization_id, m.user_id, m.role, m.invited_by, m.joined_at,
			p.email, p.full_name, p.avatar_url
		FROM organization_members m
		JOIN profiles p ON p.id = m.user_id
		WHERE m.organization_id = $1
		ORDER BY m.joined_at ASC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	out := []Member{}
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &m.Role, &m.InvitedBy, &m.JoinedAt, &m.Email, &m.FullName, &m.AvatarURL); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RemoveMember(ctx context.Context, organizationID, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`, organizationID, userID)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return expectAffected(result, "remove member")
}

// IsMemberEmail matches the member's profile email case-insensitively.
func (s *PostgresStore) IsMemberEmail(ctx context.Context, organizationID, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM organization_members m
			JOIN profiles p ON p.id = m.user_id
			WHERE m.organization_id = $1 AND LOWER(p.email) = LOWER($2)
		)
	`, organizationID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member email: %w", err)
	}
	return exists, nil
}
