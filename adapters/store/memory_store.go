package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/walletgate/walletgate/core"
	"github.com/walletgate/walletgate/ports"
)

// MemoryStore is an in-memory implementation of the UserStore interface
type MemoryStore struct {
	users map[string]*core.User
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory user store
func NewMemoryStore() ports.UserStore {
	return &MemoryStore{
		users: make(map[string]*core.User),
	}
}

// LookupByAddress returns the user record for an address, or nil when
// no record exists
func (s *MemoryStore) LookupByAddress(ctx context.Context, address string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[strings.ToLower(address)]
	if !exists {
		return nil, nil
	}

	return user, nil
}

// CreateUser creates a user record for an address. Creating an existing
// address returns the existing record unchanged.
func (s *MemoryStore) CreateUser(ctx context.Context, address string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(address)
	if user, exists := s.users[key]; exists {
		return user, nil
	}

	user := &core.User{
		Address:   address,
		CreatedAt: time.Now(),
	}
	s.users[key] = user

	return user, nil
}
