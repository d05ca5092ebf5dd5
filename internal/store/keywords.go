package store

import (
	"context"
	"fmt"
)

const keywordColumns = `k.id, k.organization_id, k.keyword, k.description, k.category, k.created_by, k.created_at, k.updated_at`

func scanKeyword(row rowScanner) (Keyword, error) {
	var k Keyword
	err := row.Scan(&k.ID, &k.OrganizationID, &k.Keyword, &k.Description, &k.Category, &k.CreatedBy, &k.CreatedAt, &k.UpdatedAt)
	return k, err
}

func (s *PostgresStore) CreateKeyword(ctx context.Context, k Keyword) (Keyword, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO keywords AS k (id, organization_id, keyword, description, category, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+keywordColumns,
		k.ID, k.OrganizationID, k.Keyword, nullIfEmpty(k.Description), nullIfEmpty(k.Category), k.CreatedBy,
	)
	created, err := scanKeyword(row)
	if err != nil {
		return Keyword{}, fmt.Errorf("insert keyword: %w", classify(err))
	}
	return created, nil
}

func (s *PostgresStore) UpdateKeyword(ctx context.Context, k Keyword) (Keyword, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE keywords k SET keyword = $3, description = $4, category = $5, updated_at = NOW()
		WHERE k.id = $1 AND k.organization_id = $2
		RETURNING `+keywordColumns,
		k.ID, k.OrganizationID, k.Keyword, nullIfEmpty(k.Description), nullIfEmpty(k.Category),
	)
	updated, err := scanKeyword(row)
	if err != nil {
		return Keyword{}, fmt.Errorf("update keyword: %w", classify(err))
	}
	return updated, nil
}

func (s *PostgresStore) GetKeyword(ctx context.Context, organizationID, id string) (Keyword, error) {
	return scanKeyword(s.db.QueryRowContext(ctx, `
		SELECT `+keywordColumns+` FROM keywords k WHERE k.id = $1 AND k.organization_id = $2
	`, id, organizationID))
}

func (s *PostgresStore) DeleteKeyword(ctx context.Context, organizationID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return fmt.Errorf("delete keyword: %w", err)
	}
	return expectAffected(result, "delete keyword")
}

func (s *PostgresStore) ListKeywords(ctx context.Context, organizationID string) ([]Keyword, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+keywordColumns+` FROM keywords k
		WHERE k.organization_id = $1
		ORDER BY k.created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer rows.Close()

	out := []Keyword{}
	for rows.Next() {
		k, err := scanKeyword(rows)
		if err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
