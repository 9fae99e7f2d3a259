package otp

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/idmirror/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore guarda tokens en proceso (dev y tests). go-cache maneja la
// expiración física; el mutex hace atómico el lookup-and-delete del consume.
type MemoryStore struct {
	mu  sync.Mutex
	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		c:   gocache.New(gocache.NoExpiration, time.Minute),
		now: time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, tok domain.VerificationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key("", tok.SubjectKey, tok.Purpose, tok.Code)
	s.c.Set(k, tok, physicalTTL(tok.ExpiresAt, s.now()))
	return nil
}

func (s *MemoryStore) Consume(_ context.Context, subject string, purpose domain.Purpose, code string) (*domain.VerificationToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key("", subject, purpose, code)
	v, ok := s.c.Get(k)
	if !ok {
		return nil, false, nil
	}
	s.c.Delete(k)
	tok, ok := v.(domain.VerificationToken)
	if !ok {
		return nil, false, nil
	}
	return &tok, true, nil
}
