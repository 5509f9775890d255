package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a store transaction and hands the
// transaction handle to fn as tx. Repositories accept NoTX (nil) for the
// non-transactional path. Backends without transactions call fn with NoTX.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
