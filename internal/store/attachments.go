package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) CreateAttachment(ctx context.Context, a NegotiationAttachment) (NegotiationAttachment, error) {
	var created NegotiationAttachment
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO negotiation_attachments (id, negotiation_id, file_name, file_size, file_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, negotiation_id, file_name, file_size, file_path, created_at
	`, a.ID, a.NegotiationID, a.FileName, a.FileSize, a.FilePath).Scan(
		&created.ID, &created.NegotiationID, &created.FileName, &created.FileSize, &created.FilePath, &created.CreatedAt,
	)
	if err != nil {
		return NegotiationAttachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context, negotiationID string) ([]NegotiationAttachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, negotiation_id, file_name, file_size, file_path, created_at
		FROM negotiation_attachments
		WHERE negotiation_id = $1
		ORDER BY created_at ASC
	`, negotiationID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	out := []NegotiationAttachment{}
	for rows.Next() {
		var a NegotiationAttachment
		if err := rows.Scan(&a.ID, &a.NegotiationID, &a.FileName, &a.FileSize, &a.FilePath, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
