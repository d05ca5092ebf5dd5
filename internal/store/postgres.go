package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SchemaVersion reports the applied migration version.
func (s *PostgresStore) SchemaVersion(ctx context.Context) (int64, error) {
	return MigrationVersion(ctx, s.db)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// setBuilder accumulates "col = $n" fragments for partial updates.
type setBuilder struct {
	parts []string
	args  []any
}

func (b *setBuilder) add(column string, value any) {
	b.args = append(b.args, value)
	b.parts = append(b.parts, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

func (b *setBuilder) raw(fragment string) {
	b.parts = append(b.parts, fragment)
}

func (b *setBuilder) empty() bool {
	return len(b.parts) == 0
}

// where appends the remaining args and returns their placeholders.
func (b *setBuilder) where(values ...any) []string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		b.args = append(b.args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(b.args))
	}
	return placeholders
}

func (b *setBuilder) clause() string {
	return strings.Join(b.parts, ", ")
}

// nullIfEmpty stores blank optional text as NULL.
func nullIfEmpty(value *string) any {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	return *value
}

func expectAffected(result sql.Result, action string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", action, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
