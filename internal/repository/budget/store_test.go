package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/aivis/internal/db"
)

// --- Mocks ---

type mockKV struct {
	values  map[string]int64
	raw     map[string][]byte
	ttls    map[string]time.Duration
	nx      bool
	incrErr error
	getErr  error
}

func newMockKV() *mockKV {
	return &mockKV{values: map[string]int64{}, raw: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if b, ok := m.raw[key]; ok {
		return b, nil
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKV) IncrBy(_ context.Context, key string, val int64) error {
	if m.incrErr != nil {
		return m.incrErr
	}
	m.values[key] += val
	return nil
}

func (m *mockKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	m.ttls[key] = ttl
	m.nx = nx
	return nil
}

// --- Tests ---

func TestIncrBy_TTLByPeriod(t *testing.T) {
	kv := newMockKV()
	s := New(kv, time.Hour, 2*time.Hour)
	ctx := context.Background()

	daily := "aivis:usage:chatgpt:daily:tokens:2026-03-01"
	monthly := "aivis:usage:chatgpt:monthly:tokens:2026-03"

	if err := s.IncrBy(ctx, daily, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.IncrBy(ctx, monthly, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if kv.ttls[daily] != time.Hour {
		t.Errorf("daily ttl = %s", kv.ttls[daily])
	}
	if kv.ttls[monthly] != 2*time.Hour {
		t.Errorf("monthly ttl = %s", kv.ttls[monthly])
	}
	if !kv.nx {
		t.Error("expiry must only be set once (NX)")
	}
}

func TestIncrBy_Error(t *testing.T) {
	kv := newMockKV()
	kv.incrErr = errors.New("boom")
	if err := New(kv, 0, 0).IncrBy(context.Background(), "k", 1); err == nil {
		t.Fatal("expected error")
	}
	if len(kv.ttls) != 0 {
		t.Error("ttl must not be set after a failed increment")
	}
}

func TestNew_DefaultTTLs(t *testing.T) {
	s := New(newMockKV(), 0, -1)
	if s.dailyTTL != DefaultDailyTTL || s.monthTTL != DefaultMonthlyTTL {
		t.Errorf("ttls = %s, %s", s.dailyTTL, s.monthTTL)
	}
}

func TestGet(t *testing.T) {
	kv := newMockKV()
	kv.raw["present"] = []byte("42")
	kv.raw["garbage"] = []byte("x")
	s := New(kv, 0, 0)
	ctx := context.Background()

	if v, err := s.Get(ctx, "present"); err != nil || v != 42 {
		t.Errorf("Get(present) = %d, %v", v, err)
	}
	if v, err := s.Get(ctx, "missing"); err != nil || v != 0 {
		t.Errorf("Get(missing) = %d, %v", v, err)
	}
	if _, err := s.Get(ctx, "garbage"); err == nil {
		t.Error("non-numeric value should fail")
	}

	kv.getErr = errors.New("down")
	if _, err := s.Get(ctx, "present"); err == nil {
		t.Error("store error should propagate")
	}
}
