package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAddAndFire(t *testing.T) {
	tm := New()
	var fired atomic.Int32
	tm.AddTimer(5*time.Millisecond, func(id uint64) { fired.Add(1) }, false)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		tm.CheckTimer()
		if fired.Load() == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("fired = %d, want 1", fired.Load())
	}
	if tm.Len() != 0 {
		t.Fatalf("Len after fire = %d, want 0", tm.Len())
	}
}

func TestDelTimerCancelsBeforeFire(t *testing.T) {
	tm := New()
	var fired atomic.Int32
	id := tm.AddTimer(time.Hour, func(id uint64) { fired.Add(1) }, false)

	if !tm.DelTimer(id) {
		t.Fatal("DelTimer returned false for a live timer")
	}
	if tm.DelTimer(id) {
		t.Fatal("DelTimer returned true for an already-removed timer")
	}
	tm.CheckTimer()
	if fired.Load() != 0 {
		t.Fatalf("fired = %d, want 0", fired.Load())
	}
}

func TestRecurringReArms(t *testing.T) {
	tm := New()
	var fired atomic.Int32
	tm.AddTimer(2*time.Millisecond, func(id uint64) { fired.Add(1) }, true)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && fired.Load() < 3 {
		tm.CheckTimer()
		time.Sleep(time.Millisecond)
	}
	if fired.Load() < 3 {
		t.Fatalf("fired = %d, want >= 3", fired.Load())
	}
	if tm.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (re-armed)", tm.Len())
	}
}

func TestOrderingByExpireThenID(t *testing.T) {
	tm := New()
	var order []uint64
	id1 := tm.AddTimer(0, func(id uint64) { order = append(order, id) }, false)
	id2 := tm.AddTimer(0, func(id uint64) { order = append(order, id) }, false)

	// CheckTimer invokes callbacks serially on the calling goroutine, in
	// (expire,id) order, so no synchronization is needed here.
	tm.CheckTimer()
	if len(order) != 2 || order[0] != id1 || order[1] != id2 {
		t.Fatalf("order = %v, want [%d %d]", order, id1, id2)
	}
}

func TestTimeToSleep(t *testing.T) {
	tm := New()
	if d := tm.TimeToSleep(); d != -1 {
		t.Fatalf("TimeToSleep empty = %v, want -1", d)
	}
	tm.AddTimer(50*time.Millisecond, func(uint64) {}, false)
	if d := tm.TimeToSleep(); d <= 0 || d > 50*time.Millisecond {
		t.Fatalf("TimeToSleep = %v, want (0, 50ms]", d)
	}
}
