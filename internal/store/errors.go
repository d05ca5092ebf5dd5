package store

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicate               = errors.New("duplicate row")
	ErrInvitationInvalid       = errors.New("invitation invalid or already used")
	ErrInvitationEmailMismatch = errors.New("invitation email mismatch")
)

const (
	codeUniqueViolation = "23505"
	codeRaiseException  = "P0001"
	codeNoDataFound     = "P0002"
)

// classify maps Postgres errors onto the store sentinels.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	case codeNoDataFound:
		return ErrInvitationInvalid
	case codeRaiseException:
		if pgErr.Message == "email_mismatch" {
			return ErrInvitationEmailMismatch
		}
	}
	return err
}
