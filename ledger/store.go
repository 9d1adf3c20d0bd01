package ledger

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/alphabill-org/alphabill-token-auth/types"
)

var ErrStoreClosed = errors.New("store is closed")

type (
	// Store persists accounts. Views are consistent read-only snapshots, Commit
	// writes a set of accounts atomically.
	Store interface {
		View(ctx context.Context) (View, error)
		Commit(ctx context.Context, accounts []*types.Account) error
		Close() error
	}

	View interface {
		// Account returns nil (and no error) when the account doesn't exist.
		Account(id types.AccountID) (*types.Account, error)
		// Accounts calls fn for every stored account until fn returns error.
		Accounts(fn func(*types.Account) error) error
		Close() error
	}
)

// MemoryStore is an in-memory Store, the map is replaced (never modified) on commit.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[types.AccountID]*types.Account
	closed   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: map[types.AccountID]*types.Account{}}
}

func (s *MemoryStore) View(ctx context.Context) (View, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return memoryView(s.accounts), nil
}

func (s *MemoryStore) Commit(ctx context.Context, accounts []*types.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	next := maps.Clone(s.accounts)
	for _, acc := range accounts {
		next[acc.ID] = acc.Copy()
	}
	s.accounts = next
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memoryView map[types.AccountID]*types.Account

func (v memoryView) Account(id types.AccountID) (*types.Account, error) {
	return v[id].Copy(), nil
}

func (v memoryView) Accounts(fn func(*types.Account) error) error {
	for _, acc := range v {
		if err := fn(acc.Copy()); err != nil {
			return err
		}
	}
	return nil
}

func (memoryView) Close() error { return nil }
