package track

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesByKey(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Close()

	var fired atomic.Int32
	for i := 0; i < 5; i++ {
		d.Debounce("refresh-42", func() { fired.Add(1) })
	}

	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("expected one firing, got %d", got)
	}
}

func TestDebouncer_KeysAreIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Close()

	var a, b atomic.Int32
	d.Debounce("refresh-42", func() { a.Add(1) })
	d.Debounce("space-change", func() { b.Add(1) })

	time.Sleep(100 * time.Millisecond)
	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("independent keys must both fire, got %d and %d", a.Load(), b.Load())
	}
}

func TestDebouncer_ReplacementRunsLatestOp(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Close()

	var got atomic.Int32
	d.Debounce("k", func() { got.Store(1) })
	d.Debounce("k", func() { got.Store(2) })

	time.Sleep(100 * time.Millisecond)
	if got.Load() != 2 {
		t.Errorf("expected the replacement op to run, got %d", got.Load())
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Close()

	var fired atomic.Int32
	d.Debounce("k", func() { fired.Add(1) })
	d.Cancel("k")

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("cancelled op must not fire")
	}
	if d.Pending("k") {
		t.Error("cancelled key should not be pending")
	}
}

func TestDebouncer_CloseCancelsEverything(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var fired atomic.Int32
	d.Debounce("a", func() { fired.Add(1) })
	d.Debounce("b", func() { fired.Add(1) })
	d.Close()

	time.Sleep(100 * time.Millisecond)
	if fired.Load() != 0 {
		t.Errorf("no op may fire after close, got %d", fired.Load())
	}

	d.Debounce("c", func() { fired.Add(1) })
	time.Sleep(50 * time.Millisecond)
	if fired.Load() != 0 {
		t.Error("debounce after close must be ignored")
	}
}
