package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// KV is the item-listing cache used by the fixture sync path. Backends:
// Redis for deployments, Memory for tests and single-node setups.
type KV interface {
	// Get loads key into out, reporting whether it was present.
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	// Set stores v under key for ttl.
	Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	// Delete removes key.
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process KV.
type Memory struct {
	store *gocache.Cache
}

// NewMemory creates an in-process KV.
func NewMemory() *Memory {
	return &Memory{store: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (m *Memory) Get(_ context.Context, key string, out interface{}) (bool, error) {
	v, ok := m.store.Get(key)
	if !ok {
		return false, nil
	}
	return true, decodeInto(v, out)
}

func (m *Memory) Set(_ context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	m.store.Set(key, data, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}
