package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vipkeeper/internal/server/repositories/users"
)

// InMemoryRepositoryManager serves the in-process user store. Transactions
// are serialised with a mutex; there is no rollback, fn must validate
// before it writes.
type InMemoryRepositoryManager struct {
	txMu  sync.Mutex
	users *users.InMemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{users: users.NewInMemoryRepository()}
}

func (m *InMemoryRepositoryManager) Users() users.Repository { return m.users }

func (m *InMemoryRepositoryManager) InTx(ctx context.Context, fn TxFunc) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, m.users)
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *InMemoryRepositoryManager) Ping(context.Context) error          { return nil }
func (m *InMemoryRepositoryManager) Close() error                        { return nil }
