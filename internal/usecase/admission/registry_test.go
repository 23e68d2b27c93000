package admission

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// --- Mocks ---

type mockGauge struct {
	mu  sync.Mutex
	val float64
}

func (g *mockGauge) Set(v float64) {
	g.mu.Lock()
	g.val = v
	g.mu.Unlock()
}

func (g *mockGauge) get() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.val
}

// --- Tests ---

func TestTryAdmit_LimitPerDomain(t *testing.T) {
	r := New(2, nil)

	if !r.TryAdmit(1) || !r.TryAdmit(1) {
		t.Fatal("first two runs should be admitted")
	}
	if r.TryAdmit(1) {
		t.Error("third concurrent run should be rejected")
	}
	if !r.TryAdmit(2) {
		t.Error("other domains have their own slots")
	}
	if r.Active(1) != 2 {
		t.Errorf("Active(1) = %d, want 2", r.Active(1))
	}

	r.Release(1)
	if !r.TryAdmit(1) {
		t.Error("slot should be free after release")
	}
}

func TestRelease_NeverBelowZero(t *testing.T) {
	r := New(2, nil)
	r.Release(7)
	r.Release(7)
	if r.Active(7) != 0 {
		t.Errorf("Active = %d, want 0", r.Active(7))
	}

	r.TryAdmit(7)
	r.Release(7)
	r.Release(7)
	if r.Active(7) != 0 {
		t.Errorf("Active = %d, want 0", r.Active(7))
	}
	if !r.TryAdmit(7) || !r.TryAdmit(7) || r.TryAdmit(7) {
		t.Error("spurious releases must not grant extra slots")
	}
}

func TestNew_DefaultLimit(t *testing.T) {
	if got := New(0, nil).Limit(); got != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", got, DefaultLimit)
	}
}

func TestSweep(t *testing.T) {
	r := New(2, nil)
	r.TryAdmit(1)
	r.TryAdmit(2)
	r.Release(2)

	if removed := r.Sweep(); removed != 1 {
		t.Errorf("Sweep() = %d, want 1", removed)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	if r.Active(1) != 1 {
		t.Error("sweep must not touch active domains")
	}
}

func TestConcurrentAdmission(t *testing.T) {
	r := New(2, nil)
	var admitted atomic.Int32
	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAdmit(9) {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 2 {
		t.Errorf("admitted = %d, want 2", admitted.Load())
	}
}

func TestGauge(t *testing.T) {
	g := &mockGauge{}
	r := New(2, nil).WithGauge(g)

	r.TryAdmit(1)
	r.TryAdmit(2)
	if g.get() != 2 {
		t.Errorf("gauge = %v, want 2", g.get())
	}
	r.Release(1)
	if g.get() != 1 {
		t.Errorf("gauge = %v, want 1", g.get())
	}
}

func TestStart_SweepsUntilCanceled(t *testing.T) {
	r := New(2, nil)
	r.TryAdmit(3)
	r.Release(3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(time.Second)
	for r.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("idle entry was never swept")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
