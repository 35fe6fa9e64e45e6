package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/numistr/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(s.key(key)).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(s.key(key)).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// IncrWithTTL pipelines INCR and EXPIRE NX: the count is atomic and the window
// starts with the first increment, later calls never extend it.
func (s *Store) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := s.key(key)
	secs := max(int64(ttl.Seconds()), 1)
	res := s.client.DoMulti(ctx,
		s.b().Incr().Key(k).Build(),
		s.b().Expire().Key(k).Seconds(secs).Nx().Build(),
	)

	n, err := res[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncr, Err: err}
	}
	if err := res[1].Error(); err != nil {
		return n, &db.Error{Op: db.OpExpire, Err: err}
	}
	return n, nil
}

// TTL returns the remaining lifetime of key; ErrKeyNotFound when it does not exist.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	cmd := s.b().Ttl().Key(s.key(key)).Build()
	secs, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpTTL, Err: err}
	}
	switch {
	case secs == -2:
		return 0, db.ErrKeyNotFound
	case secs < 0:
		return 0, nil
	}
	return time.Duration(secs) * time.Second, nil
}
