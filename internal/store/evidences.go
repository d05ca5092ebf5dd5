package store

import (
	"context"
	"fmt"
)

const evidenceSelect = `
	SELECT e.id, e.organization_id, e.keyword_id, COALESCE(k.keyword, ''), e.is_positive, e.detected_at, e.created_at,
		(SELECT COUNT(*) FROM evidence_domains d WHERE d.evidence_id = e.id)
	FROM evidences e
	LEFT JOIN keywords k ON k.id = e.keyword_id
`

func scanEvidence(row rowScanner) (Evidence, error) {
	var e Evidence
	err := row.Scan(&e.ID, &e.OrganizationID, &e.KeywordID, &e.Keyword, &e.IsPositive, &e.DetectedAt, &e.CreatedAt, &e.DomainsCount)
	return e, err
}

// ListEvidences returns evidence newest first; positive filters by polarity when set.
func (s *PostgresStore) ListEvidences(ctx context.Context, organizationID string, positive *bool) ([]Evidence, error) {
	query := evidenceSelect + `WHERE e.organization_id = $1`
	args := []any{organizationID}
	if positive != nil {
		query += ` AND e.is_positive = $2`
		args = append(args, *positive)
	}
	query += ` ORDER BY e.detected_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list evidences: %w", err)
	}
	defer rows.Close()

	out := []Evidence{}
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetEvidence(ctx context.Context, organizationID, id string) (Evidence, error) {
	return scanEvidence(s.db.QueryRowContext(ctx, evidenceSelect+`WHERE e.id = $1 AND e.organization_id = $2`, id, organizationID))
}

func (s *PostgresStore) EvidenceExists(ctx context.Context, organizationID, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM evidences WHERE id = $1 AND organization_id = $2)`, id, organizationID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check evidence: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListEvidenceDomains(ctx context.Context, evidenceID string) ([]EvidenceDomain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evidence_id, domain, created_at FROM evidence_domains
		WHERE evidence_id = $1
		ORDER BY created_at DESC
	`, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("list evidence domains: %w", err)
	}
	defer rows.Close()

	out := []EvidenceDomain{}
	for rows.Next() {
		var d EvidenceDomain
		if err := rows.Scan(&d.ID, &d.EvidenceID, &d.Domain, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evidence domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListEvidenceScreenshots(ctx context.Context, evidenceID string) ([]EvidenceScreenshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, evidence_id, engine, file_path, created_at FROM evidence_screenshots
		WHERE evidence_id = $1
		ORDER BY created_at DESC
	`, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("list evidence screenshots: %w", err)
	}
	defer rows.Close()

	out := []EvidenceScreenshot{}
	for rows.Next() {
		var sc EvidenceScreenshot
		if err := rows.Scan(&sc.ID, &sc.EvidenceID, &sc.Engine, &sc.FilePath, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan evidence screenshot: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
