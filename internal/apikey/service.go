package apikey

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/store"
)

// Capability is a permission a key may carry.
type Capability string

const (
	Read  Capability = "read"
	Write Capability = "write"
)

// KeyStore is the subset of queries the key service needs.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, arg store.CreateAPIKeyParams) (store.APIKey, error)
	GetAPIKeyByKeyID(ctx context.Context, keyID string) (store.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]store.APIKey, error)
	CountAPIKeys(ctx context.Context) (int64, error)
	SetAPIKeyActive(ctx context.Context, id int64, active bool) (store.APIKey, error)
	TouchAPIKey(ctx context.Context, id int64, at time.Time) error
}

// Service manages API keys and authenticates requests carrying them.
type Service struct {
	Store  KeyStore
	Logger zerolog.Logger
	Now    func() time.Time
}

// Created is returned once at creation time; RawKey cannot be recovered later.
type Created struct {
	Key    store.APIKey `json:"key"`
	RawKey string       `json:"raw_key"`
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create mints and stores a new key.
func (s *Service) Create(ctx context.Context, name string, canRead, canWrite bool) (Created, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Created{}, common.Validation("name is required")
	}
	if !canRead && !canWrite {
		return Created{}, common.Validation("key must allow read or write")
	}
	raw, keyID, hash, err := Generate()
	if err != nil {
		return Created{}, err
	}
	key, err := s.Store.CreateAPIKey(ctx, store.CreateAPIKeyParams{
		Name:     name,
		KeyID:    keyID,
		KeyHash:  hash,
		CanRead:  canRead,
		CanWrite: canWrite,
	})
	if err != nil {
		return Created{}, fmt.Errorf("create api key: %w", err)
	}
	return Created{Key: key, RawKey: raw}, nil
}

// EnsureDefault creates a read/write key named "Default key" when no key
// exists. created reports whether RawKey was minted by this call.
func (s *Service) EnsureDefault(ctx context.Context) (c Created, created bool, err error) {
	n, err := s.Store.CountAPIKeys(ctx)
	if err != nil {
		return Created{}, false, fmt.Errorf("count api keys: %w", err)
	}
	if n > 0 {
		return Created{}, false, nil
	}
	c, err = s.Create(ctx, "Default key", true, true)
	if err != nil {
		return Created{}, false, err
	}
	return c, true, nil
}

// List returns every key, newest first.
func (s *Service) List(ctx context.Context) ([]store.APIKey, error) {
	return s.Store.ListAPIKeys(ctx)
}

// Toggle flips the active flag of key id.
func (s *Service) Toggle(ctx context.Context, id int64, active bool) (store.APIKey, error) {
	key, err := s.Store.SetAPIKeyActive(ctx, id, active)
	if err != nil {
		if store.IsNotFound(err) {
			return store.APIKey{}, common.NotFound("api key")
		}
		return store.APIKey{}, fmt.Errorf("toggle api key: %w", err)
	}
	return key, nil
}

// Authenticate resolves raw to an active key holding capability and stamps
// its last use. Unknown, inactive and mismatching keys all yield 401; a
// valid key lacking the capability yields 403.
func (s *Service) Authenticate(ctx context.Context, raw string, capability Capability) (store.APIKey, error) {
	keyID := Split(raw)
	if keyID == "" {
		return store.APIKey{}, common.Unauthorized("missing or invalid API key")
	}
	key, err := s.Store.GetAPIKeyByKeyID(ctx, keyID)
	if err != nil {
		if store.IsNotFound(err) {
			return store.APIKey{}, common.Unauthorized("invalid API key")
		}
		return store.APIKey{}, fmt.Errorf("load api key: %w", err)
	}
	if !key.Active || !common.ConstantTimeEqual(key.KeyHash, Hash(raw)) {
		return store.APIKey{}, common.Unauthorized("invalid API key")
	}
	switch capability {
	case Read:
		if !key.CanRead {
			return store.APIKey{}, common.Forbidden("API key does not have read permission")
		}
	case Write:
		if !key.CanWrite {
			return store.APIKey{}, common.Forbidden("API key does not have write permission")
		}
	}
	now := s.now().UTC()
	if err := s.Store.TouchAPIKey(ctx, key.ID, now); err != nil {
		s.Logger.Warn().Err(err).Str("api_key_id", key.KeyID).Msg("api_key_touch_failed")
	} else {
		key.LastUsedAt = &now
	}
	return key, nil
}
