package leave

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"hrerp/internal/platform/querier"
)

// PGStore is the Postgres implementation of Store.
type PGStore struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *PGStore {
	return &PGStore{DB: db}
}

var _ Store = (*PGStore)(nil)

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
