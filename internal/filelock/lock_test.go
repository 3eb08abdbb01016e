package filelock

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPathFor(t *testing.T) {
	got := PathFor("/etc/wireguard/wg0.conf")
	if got != "/etc/wireguard/.wg0.conf.lock" {
		t.Errorf("PathFor() = %q", got)
	}
}

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".wg0.conf.lock")

	l, err := Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}

	l2, err := Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("re-Acquire() error = %v", err)
	}
	l2.Release()
}

func TestAcquire_TimesOutWhileHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".wg0.conf.lock")
	held, err := Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	start := time.Now()
	_, err = Acquire(context.Background(), path, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire() error = %v, want ErrTimeout", err)
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Errorf("Acquire() returned after %s, before the timeout", time.Since(start))
	}
}

func TestAcquire_ZeroTimeoutWaitsOnContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	held, err := Acquire(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = Acquire(ctx, path, 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("zero timeout reported ErrTimeout")
	}
}

func TestAcquire_ContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	held, err := Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := Acquire(ctx, path, 10*time.Second); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	held, err := Acquire(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		l, err := Acquire(context.Background(), path, 5*time.Second)
		if err == nil {
			err = l.Release()
		}
		done <- err
	}()

	time.Sleep(30 * time.Millisecond)
	held.Release()

	if err := <-done; err != nil {
		t.Fatalf("waiting Acquire() error = %v", err)
	}
}

func TestAcquire_MutualExclusion(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l, err := Acquire(context.Background(), path, 5*time.Second)
			if err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			l.Release()
		}()
	}
	wg.Wait()
	if overlap.Load() {
		t.Error("two holders were inside the lock at once")
	}
}
