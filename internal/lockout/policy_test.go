package lockout

import (
	"testing"
	"time"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluate_UnlockedPassesThroughAttempts(t *testing.T) {
	s := Evaluate(3, nil, base)
	if locked, _ := s.Locked(base); locked {
		t.Fatal("expected unlocked state")
	}
	if got := s.Attempts(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if got := s.Remaining(); got != 2 {
		t.Errorf("remaining = %d, want 2", got)
	}
}

func TestEvaluate_ActiveLock(t *testing.T) {
	until := base.Add(5 * time.Minute)
	s := Evaluate(0, &until, base)
	locked, left := s.Locked(base)
	if !locked {
		t.Fatal("expected locked state")
	}
	if left != 5*time.Minute {
		t.Errorf("remaining lock = %v, want 5m", left)
	}
}

func TestEvaluate_ExpiredLockReadsAsUnlockedZero(t *testing.T) {
	until := base.Add(-time.Second)
	s := Evaluate(0, &until, base)
	if locked, _ := s.Locked(base); locked {
		t.Fatal("expired lock should read as unlocked")
	}
	if got := s.Attempts(); got != 0 {
		t.Errorf("attempts = %d, want 0 after lock expiry", got)
	}
}

func TestFail_IncrementsUntilThreshold(t *testing.T) {
	s := Unlocked(0)
	for i := 1; i < MaxAttempts; i++ {
		s = s.Fail(base)
		if locked, _ := s.Locked(base); locked {
			t.Fatalf("locked after %d failures, threshold is %d", i, MaxAttempts)
		}
		if got := s.Attempts(); got != i {
			t.Fatalf("attempts = %d after %d failures", got, i)
		}
	}
	s = s.Fail(base)
	locked, left := s.Locked(base)
	if !locked {
		t.Fatalf("expected lock after %d failures", MaxAttempts)
	}
	if left != LockDuration {
		t.Errorf("lock duration = %v, want %v", left, LockDuration)
	}
}

func TestFail_WhileLockedIsNoOp(t *testing.T) {
	s := LockedUntil(base.Add(LockDuration))
	s2 := s.Fail(base.Add(time.Minute))
	locked, left := s2.Locked(base)
	if !locked {
		t.Fatal("failing while locked must stay locked")
	}
	if left != LockDuration {
		t.Errorf("lock deadline moved: remaining %v, want %v", left, LockDuration)
	}
}

func TestSucceed_ResetsEverything(t *testing.T) {
	s := Unlocked(4).Succeed()
	if got := s.Attempts(); got != 0 {
		t.Errorf("attempts = %d, want 0", got)
	}
	attempts, until := s.Persist()
	if attempts != 0 || until != nil {
		t.Errorf("persist = (%d, %v), want (0, nil)", attempts, until)
	}
}

func TestPersist_RoundTrip(t *testing.T) {
	until := base.Add(LockDuration)
	attempts, lockUntil := LockedUntil(until).Persist()
	if attempts != 0 {
		t.Errorf("locked persist attempts = %d, want 0", attempts)
	}
	if lockUntil == nil || !lockUntil.Equal(until) {
		t.Errorf("locked persist until = %v, want %v", lockUntil, until)
	}

	s := Evaluate(attempts, lockUntil, base)
	if locked, _ := s.Locked(base); !locked {
		t.Fatal("round-tripped lock should still be locked")
	}
}
