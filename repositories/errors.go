package repositories

import (
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/parkhaus/parkhaus-backend/models"
)

// adaptPgError maps low-level postgres errors onto the domain's sentinel
// errors so usecases can branch with errors.Is.
func adaptPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return errors.Wrap(models.ConflictError, pgErr.Detail)
		case pgerrcode.ConnectionException, pgerrcode.ConnectionFailure,
			pgerrcode.ConnectionDoesNotExist, pgerrcode.SQLClientUnableToEstablishSQLConnection:
			return errors.Wrap(models.ServiceUnavailableError, "database connection failed")
		}
	}
	return err
}
