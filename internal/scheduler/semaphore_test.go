package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSemaphoreAcquireRelease(t *testing.T) {
	s := NewSemaphore(2)
	ctx := context.Background()
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if s.InUse() != 2 {
		t.Fatalf("in use = %d, want 2", s.InUse())
	}
	s.Release()
	if s.InUse() != 1 {
		t.Fatalf("in use = %d, want 1", s.InUse())
	}
}

func TestSemaphoreAcquireHonoursContext(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSemaphoreZeroCapacityDefaultsToOne(t *testing.T) {
	if got := NewSemaphore(0).Cap(); got != 1 {
		t.Fatalf("cap = %d, want 1", got)
	}
}

func TestFileLockExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deeplbot.lock")
	first := NewFileLock(path)
	ok, err := first.TryLock()
	if err != nil || !ok {
		t.Fatalf("first lock: ok=%v err=%v", ok, err)
	}
	second := NewFileLock(path)
	ok, err = second.TryLock()
	if err != nil {
		t.Fatalf("second lock: %v", err)
	}
	if ok {
		t.Fatal("expected second lock to fail while first is held")
	}
	if pid, err := second.Holder(); err != nil || pid != os.Getpid() {
		t.Fatalf("holder = %d, %v", pid, err)
	}
	if err := first.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ok, err = second.TryLock()
	if err != nil || !ok {
		t.Fatalf("relock: ok=%v err=%v", ok, err)
	}
	_ = second.Unlock()
}
