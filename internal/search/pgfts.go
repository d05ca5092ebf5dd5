package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const (
	keywordVector     = "to_tsvector('simple', k.keyword || ' ' || coalesce(k.description, '') || ' ' || coalesce(k.category, ''))"
	negotiationVector = "to_tsvector('simple', n.subject || ' ' || n.content)"
	tsQuery           = "plainto_tsquery('simple', $1)"
)

// Search runs a UNION ALL across keywords and negotiations of one
// organization, ranked with ts_rank and snippeted with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	if q.OrganizationID == "" {
		return nil, 0, errors.New("search requires an organization")
	}
	limit, offset := normalizeLimit(q.Limit, q.Offset)
	args := []any{q.Text, q.OrganizationID}

	var subQueries []string
	if q.FilterType == "" || q.FilterType == ResultKeyword {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'keyword'::text AS type, k.id::text AS id, k.keyword AS title,
				ts_headline('simple', coalesce(k.description, ''), %[2]s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS status,
				ts_rank(%[1]s, %[2]s) AS rank
			FROM keywords k
			WHERE k.organization_id = $2 AND %[1]s @@ %[2]s`, keywordVector, tsQuery))
	}
	if q.FilterType == "" || q.FilterType == ResultNegotiation {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'negotiation'::text AS type, n.id::text AS id, n.subject AS title,
				ts_headline('simple', n.content, %[2]s, 'MaxFragments=1,MaxWords=30') AS snippet,
				n.status AS status,
				ts_rank(%[1]s, %[2]s) AS rank
			FROM negotiations n
			WHERE n.organization_id = $2 AND %[1]s @@ %[2]s`, negotiationVector, tsQuery))
	}
	if len(subQueries) == 0 {
		return nil, 0, nil
	}
	union := strings.Join(subQueries, " UNION ALL ")

	var total int
	if err := p.db.QueryRowContext(ctx, "SELECT count(*) FROM ("+union+") sub", args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`, union, limit, offset)
	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, total, rows.Err()
}

// LoadAllRecords returns every searchable record for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]KeywordRecord, []NegotiationRecord, error) {
	keywordRows, err := p.db.QueryContext(ctx, `
		SELECT id, organization_id, keyword, coalesce(description, ''), coalesce(category, '')
		FROM keywords
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load keywords: %w", err)
	}
	defer keywordRows.Close()

	keywords := make([]KeywordRecord, 0)
	for keywordRows.Next() {
		var k KeywordRecord
		if err := keywordRows.Scan(&k.ID, &k.OrganizationID, &k.Keyword, &k.Description, &k.Category); err != nil {
			return nil, nil, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, k)
	}
	if err := keywordRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate keywords: %w", err)
	}

	negotiationRows, err := p.db.QueryContext(ctx, `
		SELECT id, organization_id, subject, content, status
		FROM negotiations
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load negotiations: %w", err)
	}
	defer negotiationRows.Close()

	negotiations := make([]NegotiationRecord, 0)
	for negotiationRows.Next() {
		var n NegotiationRecord
		if err := negotiationRows.Scan(&n.ID, &n.OrganizationID, &n.Subject, &n.Content, &n.Status); err != nil {
			return nil, nil, fmt.Errorf("scan negotiation: %w", err)
		}
		negotiations = append(negotiations, n)
	}
	if err := negotiationRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate negotiations: %w", err)
	}

	return keywords, negotiations, nil
}
