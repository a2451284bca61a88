package payments

import (
	"context"
	"testing"
	"time"
)

type memoryStore struct {
	keys map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]string{}}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func TestCheckAndMark(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, "mercadopago")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "payment:1")
	if err != nil || seen {
		t.Fatalf("first delivery: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(ctx, "payment:1")
	if err != nil || !seen {
		t.Fatalf("redelivery: seen=%v err=%v", seen, err)
	}
}

func TestDeleteAllowsRetry(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, "mercadopago")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}
	ctx := context.Background()

	if _, err := guard.CheckAndMark(ctx, "payment:2"); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := guard.Delete(ctx, "payment:2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, err := guard.CheckAndMark(ctx, "payment:2")
	if err != nil || seen {
		t.Fatalf("after delete: seen=%v err=%v", seen, err)
	}
}

func TestNewIdempotencyGuardValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewIdempotencyGuard(nil, time.Hour, "scope"); err == nil {
		t.Fatal("nil store must be rejected")
	}
	if _, err := NewIdempotencyGuard(newMemoryStore(), time.Hour, ""); err == nil {
		t.Fatal("empty scope must be rejected")
	}
}
