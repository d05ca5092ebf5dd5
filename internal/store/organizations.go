package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const organizationColumns = `o.id, o.name, o.slug, o.description, o.avatar_url, o.created_by, o.created_at, o.updated_at`

func scanOrganization(row rowScanner, extra ...any) (Organization, error) {
	var o Organization
	dest := append([]any{&o.ID, &o.Name, &o.Slug, &o.Description, &o.AvatarURL, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt}, extra...)
	err := row.Scan(dest...)
	return o, err
}

// CreateOrganizationWithAdmin inserts the organization and its first admin
// membership in a single procedure call.
func (s *PostgresStore) CreateOrganizationWithAdmin(ctx context.Context, name, slug, creatorID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT create_organization_with_admin($1, $2, $3)`, name, slug, creatorID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create organization: %w", classify(err))
	}
	return id, nil
}

func (s *PostgresStore) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM organizations WHERE slug = $1)`, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) GetOrganizationByID(ctx context.Context, id string) (Organization, error) {
	return scanOrganization(s.db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations o WHERE o.id = $1`, id))
}

// GetMembershipBySlug returns sql.ErrNoRows both when the slug does not exist
// and when userID is not a member.
func (s *PostgresStore) GetMembershipBySlug(ctx context.Context, slug, userID string) (Organization, string, error) {
	var role string
	org, err := scanOrganization(s.db.QueryRowContext(ctx, `
		SELECT `+organizationColumns+`, m.role
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE o.slug = $1 AND m.user_id = $2
	`, slug, userID), &role)
	if err != nil {
		return Organization{}, "", err
	}
	return org, role, nil
}

func (s *PostgresStore) GetMembershipRole(ctx context.Context, organizationID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, `
		SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2
	`, organizationID, userID).Scan(&role)
	if err != nil {
		return "", err
	}
	return role, nil
}

func (s *PostgresStore) ListOrganizationsForUser(ctx context.Context, userID string) ([]OrganizationWithRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+organizationColumns+`, m.role
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		ORDER BY m.joined_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	out := []OrganizationWithRole{}
	for rows.Next() {
		var item OrganizationWithRole
		org, err := scanOrganization(rows, &item.Role)
		if err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		item.Organization = org
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpdateOrganization(ctx context.Context, id string, update OrganizationUpdate) (Organization, error) {
	var b setBuilder
	if update.Name != nil {
		b.add("name", *update.Name)
	}
	if update.Description != nil {
		b.add("description", nullIfEmpty(update.Description))
	}
	if update.AvatarURL != nil {
		b.add("avatar_url", nullIfEmpty(update.AvatarURL))
	}
	if b.empty() {
		return s.GetOrganizationByID(ctx, id)
	}
	b.raw("updated_at = NOW()")
	ph := b.where(id)
	row := s.db.QueryRowContext(ctx, `
		UPDATE organizations o SET `+b.clause()+`
		WHERE o.id = `+ph[0]+`
		RETURNING `+organizationColumns, b.args...)
	org, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Organization{}, err
	}
	if err != nil {
		return Organization{}, fmt.Errorf("update organization: %w", err)
	}
	return org, nil
}
