package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis is a KV backed by a redis server.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a KV to the redis server at addr.
func NewRedis(addr string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, out)
}

func (r *Redis) Set(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := encode(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// encode marshals a cached value to JSON bytes.
func encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// decodeInto unmarshals a stored value into out.
func decodeInto(v interface{}, out interface{}) error {
	data, ok := v.([]byte)
	if !ok {
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(data, out)
}
