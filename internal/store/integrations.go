package store

import (
	"context"
	"fmt"
	"time"
)

const integrationColumns = `id, organization_id, provider, access_token, refresh_token, token_expires_at,
	account_id, account_email, account_name, is_active, connected_by, created_at, updated_at`

func scanIntegration(row rowScanner) (Integration, error) {
	var i Integration
	err := row.Scan(&i.ID, &i.OrganizationID, &i.Provider, &i.AccessToken, &i.RefreshToken, &i.TokenExpiresAt,
		&i.AccountID, &i.AccountEmail, &i.AccountName, &i.IsActive, &i.ConnectedBy, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

// UpsertIntegration keys on (organization_id, provider). A reconnect without a
// new refresh token keeps the stored one.
func (s *PostgresStore) UpsertIntegration(ctx context.Context, i Integration) (Integration, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO integrations (id, organization_id, provider, access_token, refresh_token, token_expires_at,
			account_id, account_email, account_name, is_active, connected_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10)
		ON CONFLICT (organization_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, integrations.refresh_token),
			token_expires_at = EXCLUDED.token_expires_at,
			account_id = EXCLUDED.account_id,
			account_email = EXCLUDED.account_email,
			account_name = EXCLUDED.account_name,
			is_active = TRUE,
			connected_by = EXCLUDED.connected_by,
			updated_at = NOW()
		RETURNING `+integrationColumns,
		i.ID, i.OrganizationID, i.Provider, i.AccessToken, nullIfEmpty(i.RefreshToken), i.TokenExpiresAt,
		nullIfEmpty(i.AccountID), nullIfEmpty(i.AccountEmail), nullIfEmpty(i.AccountName), i.ConnectedBy,
	)
	saved, err := scanIntegration(row)
	if err != nil {
		return Integration{}, fmt.Errorf("upsert integration: %w", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetIntegration(ctx context.Context, organizationID, provider string) (Integration, error) {
	return scanIntegration(s.db.QueryRowContext(ctx, `
		SELECT `+integrationColumns+` FROM integrations WHERE organization_id = $1 AND provider = $2
	`, organizationID, provider))
}

func (s *PostgresStore) GetIntegrationByID(ctx context.Context, id string) (Integration, error) {
	return scanIntegration(s.db.QueryRowContext(ctx, `SELECT `+integrationColumns+` FROM integrations WHERE id = $1`, id))
}

// UpdateIntegrationToken writes the access token and its expiry together.
// Provider and organization are never touched.
func (s *PostgresStore) UpdateIntegrationToken(ctx context.Context, id, accessToken string, expiresAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE integrations SET access_token = $2, token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`, id, accessToken, expiresAt)
	if err != nil {
		return fmt.Errorf("update integration token: %w", err)
	}
	return expectAffected(result, "update integration token")
}

func (s *PostgresStore) DeleteIntegration(ctx context.Context, organizationID, provider string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM integrations WHERE organization_id = $1 AND provider = $2`, organizationID, provider)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	return expectAffected(result, "delete integration")
}
