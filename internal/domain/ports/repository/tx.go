package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside a database transaction. The concrete
// tx handle is infra-defined (pgx.Tx for Postgres) and is passed to
// repositories through the Tx argument. Repositories accept NoTX for the
// non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
