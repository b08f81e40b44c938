package ports

import (
	"context"

	"github.com/walletgate/walletgate/core"
)

// UserStore resolves and creates user records keyed by address. Lookup
// returns (nil, nil) when no record exists and must not mutate state.
type UserStore interface {
	LookupByAddress(ctx context.Context, address string) (*core.User, error)
	CreateUser(ctx context.Context, address string) (*core.User, error)
}
