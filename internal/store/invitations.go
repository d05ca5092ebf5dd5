package store

import (
	"context"
	"database/sql"
	"fmt"
)

const invitationColumns = `i.id, i.organization_id, i.email, i.role, i.token, i.status, i.invited_by, i.expires_at, i.created_at`

func scanInvitation(row rowScanner, extra ...any) (Invitation, error) {
	var inv Invitation
	dest := append([]any{&inv.ID, &inv.OrganizationID, &inv.Email, &inv.Role, &inv.Token, &inv.Status, &inv.InvitedBy, &inv.ExpiresAt, &inv.CreatedAt}, extra...)
	err := row.Scan(dest...)
	return inv, err
}

func (s *PostgresStore) CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO invitations AS i (id, organization_id, email, role, token, status, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
		RETURNING `+invitationColumns,
		inv.ID, inv.OrganizationID, inv.Email, inv.Role, inv.Token, inv.InvitedBy, inv.ExpiresAt,
	)
	created, err := scanInvitation(row)
	if err != nil {
		return Invitation{}, fmt.Errorf("insert invitation: %w", classify(err))
	}
	return created, nil
}

func (s *PostgresStore) HasPendingInvitation(ctx context.Context, organizationID, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM invitations
			WHERE organization_id = $1 AND LOWER(email) = LOWER($2) AND status = 'pending'
		)
	`, organizationID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending invitation: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListPendingInvitations(ctx context.Context, organizationID string) ([]Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invitationColumns+`
		FROM invitations i
		WHERE i.organization_id = $1 AND i.status = 'pending'
		ORDER BY i.created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	out := []Invitation{}
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// RevokeInvitation only moves pending invitations; terminal states stay put.
func (s *PostgresStore) RevokeInvitation(ctx context.Context, organizationID, invitationID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE invitations SET status = 'revoked'
		WHERE id = $1 AND organization_id = $2 AND status = 'pending'
	`, invitationID, organizationID)
	if err != nil {
		return fmt.Errorf("revoke invitation: %w", err)
	}
	return expectAffected(result, "revoke invitation")
}

func (s *PostgresStore) GetInvitationByToken(ctx context.Context, token string) (InvitationDetail, error) {
	var detail InvitationDetail
	inv, err := scanInvitation(s.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`, o.name, o.slug, p.full_name, p.email
		FROM invitations i
		JOIN organizations o ON o.id = i.organization_id
		JOIN profiles p ON p.id = i.invited_by
		WHERE i.token = $1
	`, token), &detail.OrganizationName, &detail.OrganizationSlug, &detail.InviterName, &detail.InviterEmail)
	if err != nil {
		return InvitationDetail{}, err
	}
	detail.Invitation = inv
	return detail, nil
}

// AcceptInvitation runs accept_invitation and returns the organization slug.
func (s *PostgresStore) AcceptInvitation(ctx context.Context, token, userID, email string) (string, error) {
	var slug sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT accept_invitation($1, $2, $3)`, token, userID, email).Scan(&slug)
	if err != nil {
		return "", fmt.Errorf("accept invitation: %w", classify(err))
	}
	if !slug.Valid {
		return "", fmt.Errorf("accept invitation: %w", ErrInvitationInvalid)
	}
	return slug.String, nil
}
