package otp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dropDatabas3/idmirror/internal/domain"
	rdb "github.com/redis/go-redis/v9"
)

// RedisStore guarda tokens en redis. El TTL físico lo maneja redis; la
// atomicidad del consume la da GETDEL.
type RedisStore struct {
	c      *rdb.Client
	prefix string
	now    func() time.Time
}

func NewRedisStore(addr string, db int, prefix string) *RedisStore {
	return &RedisStore{
		c:      rdb.NewClient(&rdb.Options{Addr: addr, DB: db}),
		prefix: prefix,
		now:    time.Now,
	}
}

// Ping chequea conectividad (para readiness).
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.c.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.c.Close() }

func (s *RedisStore) Put(ctx context.Context, tok domain.VerificationToken) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	k := key(s.prefix, tok.SubjectKey, tok.Purpose, tok.Code)
	return s.c.Set(ctx, k, b, physicalTTL(tok.ExpiresAt, s.now())).Err()
}

func (s *RedisStore) Consume(ctx context.Context, subject string, purpose domain.Purpose, code string) (*domain.VerificationToken, bool, error) {
	k := key(s.prefix, subject, purpose, code)
	b, err := s.c.GetDel(ctx, k).Bytes()
	if err != nil {
		if errors.Is(err, rdb.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var tok domain.VerificationToken
	if err := json.Unmarshal(b, &tok); err != nil {
		// Registro corrupto: ya quedó borrado, lo tratamos como no-match.
		return nil, false, nil
	}
	return &tok, true, nil
}
