package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_FiresAfterDelay(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	m.Schedule(20*time.Millisecond, 0, func() {
		fired.Add(1)
	})

	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 1 {
		t.Errorf("Expected task to fire exactly once, fired %d times", fired.Load())
	}
}

func TestManager_CancelPreventsFire(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	id := m.Schedule(50*time.Millisecond, 0, func() {
		fired.Add(1)
	})
	m.Cancel(id)

	time.Sleep(150 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("Canceled task should not fire")
	}
}

func TestManager_CancelIsIdempotent(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	id := m.Schedule(10*time.Millisecond, 0, func() {
		fired.Add(1)
	})

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("Expected task to fire once, fired %d times", fired.Load())
	}

	// Cancel after fire, then cancel again. Neither may panic or block.
	m.Cancel(id)
	m.Cancel(id)
	m.Cancel(9999)
}

func TestManager_RepeatingTask(t *testing.T) {
	m := NewManager()
	defer m.Stop()

	var fired atomic.Int32
	id := m.Schedule(10*time.Millisecond, 30*time.Millisecond, func() {
		fired.Add(1)
	})

	time.Sleep(200 * time.Millisecond)
	m.Cancel(id)

	if fired.Load() < 2 {
		t.Errorf("Expected repeating task to fire at least twice, fired %d times", fired.Load())
	}
}
