package store

import (
	"context"
	"time"

	"github.com/walletgate/walletgate/core"
	"github.com/walletgate/walletgate/ports"
)

// EchoStore resolves every address to a user record echoing that address.
// It stands in until a real profile backend exists, which means the
// signup branch is unreachable while it is wired.
type EchoStore struct{}

// NewEchoStore creates a new echo store
func NewEchoStore() ports.UserStore {
	return &EchoStore{}
}

// LookupByAddress returns a user record for any address
func (s *EchoStore) LookupByAddress(ctx context.Context, address string) (*core.User, error) {
	return &core.User{Address: address, CreatedAt: time.Now()}, nil
}

// CreateUser returns a user record for any address
func (s *EchoStore) CreateUser(ctx context.Context, address string) (*core.User, error) {
	return &core.User{Address: address, CreatedAt: time.Now()}, nil
}
