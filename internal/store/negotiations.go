package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

const negotiationSelect = `
	SELECT n.id, n.organization_id, n.subject, n.content, n.recipients, n.status, n.evidence_id,
		n.created_by, COALESCE(p.full_name, ''),
		(SELECT COUNT(*) FROM negotiation_attachments a WHERE a.negotiation_id = n.id),
		n.last_interaction_at, n.created_at, n.updated_at
	FROM negotiations n
	LEFT JOIN profiles p ON p.id = n.created_by
`

func scanNegotiation(row rowScanner) (Negotiation, error) {
	var n Negotiation
	err := row.Scan(&n.ID, &n.OrganizationID, &n.Subject, &n.Content, &n.Recipients, &n.Status, &n.EvidenceID,
		&n.CreatedBy, &n.CreatorName, &n.AttachmentsCount, &n.LastInteractionAt, &n.CreatedAt, &n.UpdatedAt)
	return n, err
}

func (s *PostgresStore) CreateNegotiation(ctx context.Context, n Negotiation) (Negotiation, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO negotiations (id, organization_id, subject, content, recipients, status, evidence_id, created_by)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
	`, n.ID, n.OrganizationID, n.Subject, n.Content, n.Recipients, nullIfEmpty(n.EvidenceID), n.CreatedBy)
	if err != nil {
		return Negotiation{}, fmt.Errorf("insert negotiation: %w", classify(err))
	}
	return s.GetNegotiation(ctx, n.OrganizationID, n.ID)
}

func (s *PostgresStore) GetNegotiation(ctx context.Context, organizationID, id string) (Negotiation, error) {
	return scanNegotiation(s.db.QueryRowContext(ctx, negotiationSelect+`WHERE n.id = $1 AND n.organization_id = $2`, id, organizationID))
}

// ListNegotiations filters by any of statuses when given, newest first.
func (s *PostgresStore) ListNegotiations(ctx context.Context, organizationID string, statuses []string) ([]Negotiation, error) {
	query := negotiationSelect + `WHERE n.organization_id = $1`
	args := []any{organizationID}
	if len(statuses) > 0 {
		query += ` AND n.status = ANY($2)`
		args = append(args, pq.Array(statuses))
	}
	query += ` ORDER BY n.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list negotiations: %w", err)
	}
	defer rows.Close()

	out := []Negotiation{}
	for rows.Next() {
		n, err := scanNegotiation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan negotiation: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// UpdateNegotiation applies a partial update. A status change stamps
// last_interaction_at in the same statement.
func (s *PostgresStore) UpdateNegotiation(ctx context.Context, organizationID, id string, update NegotiationUpdate) (Negotiation, error) {
	var b setBuilder
	if update.Subject != nil {
		b.add("subject", *update.Subject)
	}
	if update.Content != nil {
		b.add("content", *update.Content)
	}
	if update.Recipients != nil {
		b.add("recipients", *update.Recipients)
	}
	if update.EvidenceID != nil {
		b.add("evidence_id", nullIfEmpty(update.EvidenceID))
	}
	if update.Status != nil {
		b.add("status", *update.Status)
		b.raw("last_interaction_at = NOW()")
	}
	if b.empty() {
		return s.GetNegotiation(ctx, organizationID, id)
	}
	b.raw("updated_at = NOW()")
	ph := b.where(id, organizationID)

	result, err := s.db.ExecContext(ctx, `UPDATE negotiations SET `+b.clause()+` WHERE id = `+ph[0]+` AND organization_id = `+ph[1], b.args...)
	if err != nil {
		return Negotiation{}, fmt.Errorf("update negotiation: %w", classify(err))
	}
	if err := expectAffected(result, "update negotiation"); err != nil {
		return Negotiation{}, err
	}
	return s.GetNegotiation(ctx, organizationID, id)
}

func (s *PostgresStore) UpdateNegotiationStatus(ctx context.Context, organizationID, id, status string) (Negotiation, error) {
	return s.UpdateNegotiation(ctx, organizationID, id, NegotiationUpdate{Status: &status})
}

func (s *PostgresStore) DeleteNegotiation(ctx context.Context, organizationID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM negotiations WHERE id = $1 AND organization_id = $2`, id, organizationID)
	if err != nil {
		return fmt.Errorf("delete negotiation: %w", err)
	}
	return expectAffected(result, "delete negotiation")
}
