// Package repomanager hands out repositories bound to a storage backend and
// runs work that has to be atomic across several repository calls.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/users"
)

// TxFunc receives repositories bound to one transaction.
type TxFunc func(ctx context.Context, users users.Repository) error

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	// InTx runs fn atomically. Returning an error from fn rolls back.
	InTx(ctx context.Context, fn TxFunc) error
	Ping(ctx context.Context) error
	Close() error
}
