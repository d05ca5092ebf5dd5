package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

const dashboardDays = 7

// DashboardStats aggregates the organization overview. now anchors the
// negative-per-day window, which covers today and the six days before it.
func (s *PostgresStore) DashboardStats(ctx context.Context, organizationID string, now time.Time) (DashboardStats, error) {
	var stats DashboardStats
	var categories []string
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM keywords WHERE organization_id = $1),
			(SELECT COUNT(*) FROM evidences WHERE organization_id = $1),
			(SELECT COUNT(*) FROM evidences WHERE organization_id = $1 AND is_positive),
			(SELECT COUNT(*) FROM evidences WHERE organization_id = $1 AND NOT is_positive),
			(SELECT COUNT(*) FROM organization_members WHERE organization_id = $1),
			COALESCE((SELECT ARRAY_AGG(category) FROM keywords WHERE organization_id = $1 AND category IS NOT NULL), '{}')
	`, organizationID).Scan(
		&stats.KeywordsCount, &stats.EvidencesCount, &stats.PositiveCount, &stats.NegativeCount, &stats.MembersCount,
		pq.Array(&categories),
	)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard counts: %w", err)
	}
	stats.UniqueCategories = UniqueCategories(categories)

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := day.AddDate(0, 0, -(dashboardDays - 1))
	rows, err := s.db.QueryContext(ctx, `
		SELECT TO_CHAR(DATE_TRUNC('day', detected_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD'), COUNT(*)
		FROM evidences
		WHERE organization_id = $1 AND NOT is_positive AND detected_at >= $2
		GROUP BY 1
	`, organizationID, since)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("dashboard negatives: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var date string
		var count int
		if err := rows.Scan(&date, &count); err != nil {
			return DashboardStats{}, fmt.Errorf("scan negatives: %w", err)
		}
		counts[date] = count
	}
	if err := rows.Err(); err != nil {
		return DashboardStats{}, err
	}

	stats.NegativeByDay = make([]DayCount, 0, dashboardDays)
	for i := 0; i < dashboardDays; i++ {
		date := since.AddDate(0, 0, i).Format("2006-01-02")
		stats.NegativeByDay = append(stats.NegativeByDay, DayCount{Date: date, Count: counts[date]})
	}
	return stats, nil
}

// UniqueCategories splits comma-joined categories, trims and lowercases
// each entry and returns the distinct values sorted.
func UniqueCategories(raw []string) []string {
	seen := map[string]struct{}{}
	for _, value := range raw {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				seen[part] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for category := range seen {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}
