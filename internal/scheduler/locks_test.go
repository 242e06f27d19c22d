package scheduler

import "testing"

func TestLockTableTryAcquire(t *testing.T) {
	lt := NewLockTable()

	if !lt.TryAcquire("t1", []string{"a", "b"}) {
		t.Fatal("acquiring free keys should succeed")
	}
	if holder, _ := lt.Holder("a"); holder != "t1" {
		t.Errorf("holder of a = %q, want t1", holder)
	}

	// Another task overlapping on one key is refused entirely.
	if lt.TryAcquire("t2", []string{"b", "c"}) {
		t.Fatal("overlapping acquisition should fail")
	}
	if _, held := lt.Holder("c"); held {
		t.Error("all-or-nothing violated: c was claimed despite refusal")
	}

	// Disjoint keys are fine.
	if !lt.TryAcquire("t3", []string{"c", "d"}) {
		t.Fatal("disjoint acquisition should succeed")
	}
}

func TestLockTableRelease(t *testing.T) {
	lt := NewLockTable()
	lt.TryAcquire("t1", []string{"a", "b"})
	lt.Release("t1", []string{"a", "b"})

	if !lt.TryAcquire("t2", []string{"a", "b"}) {
		t.Fatal("released keys should be acquirable")
	}
}

func TestLockTableReleaseOnlyOwnKeys(t *testing.T) {
	lt := NewLockTable()
	lt.TryAcquire("t1", []string{"a"})
	lt.TryAcquire("t2", []string{"b"})

	// t1 releasing a key it does not hold must not free t2's claim.
	lt.Release("t1", []string{"a", "b"})
	if holder, _ := lt.Holder("b"); holder != "t2" {
		t.Errorf("holder of b = %q, want t2", holder)
	}
}

func TestLockTableReacquireOwnKeys(t *testing.T) {
	lt := NewLockTable()
	lt.TryAcquire("t1", []string{"a"})
	if !lt.TryAcquire("t1", []string{"a"}) {
		t.Fatal("re-acquiring own keys should be a no-op success")
	}
}

func TestLockTableEmptyKeys(t *testing.T) {
	lt := NewLockTable()
	if !lt.TryAcquire("t1", nil) {
		t.Fatal("a task with no write-targets needs no locks")
	}
}
