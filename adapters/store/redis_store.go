package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/walletgate/walletgate/core"
	"github.com/walletgate/walletgate/ports"
)

// RedisStore is a Redis implementation of the UserStore interface
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis user store
func NewRedisStore(client *redis.Client) ports.UserStore {
	return &RedisStore{
		client: client,
		prefix: "walletgate:user:",
	}
}

// LookupByAddress returns the user record for an address, or nil when
// no record exists
func (s *RedisStore) LookupByAddress(ctx context.Context, address string) (*core.User, error) {
	key := s.key(address)

	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	var user core.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("failed to decode user record: %w", err)
	}

	return &user, nil
}

// CreateUser creates a user record for an address. Creating an existing
// address returns the existing record unchanged.
func (s *RedisStore) CreateUser(ctx context.Context, address string) (*core.User, error) {
	user := &core.User{
		Address:   address,
		CreatedAt: time.Now(),
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user record: %w", err)
	}

	// SetNX keeps the first record when two logins race on the same address
	created, err := s.client.SetNX(ctx, s.key(address), payload, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	if !created {
		return s.LookupByAddress(ctx, address)
	}

	return user, nil
}

func (s *RedisStore) key(address string) string {
	return s.prefix + strings.ToLower(address)
}
