package queue

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfter_FiresOnce(t *testing.T) {
	var fired int32
	After(20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	time.Sleep(80 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Errorf("expected callback to fire exactly once, got %d", fired)
	}
}

func TestAfter_CancelPreventsFiring(t *testing.T) {
	var fired int32
	h := After(50*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	h.Cancel()

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("expected canceled callback to never fire")
	}
}

func TestHandle_CancelIsIdempotent(t *testing.T) {
	h := After(time.Hour, func() {})
	h.Cancel()
	h.Cancel() // must not panic
}

func TestEvery_FiresRepeatedly(t *testing.T) {
	var count int32
	h := Every(15*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	defer h.Cancel()

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&count) < 2 {
		t.Errorf("expected at least 2 ticks, got %d", count)
	}
}

func TestNextCronFire_EveryMinute(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 30, 15, 0, time.UTC)
	next, err := NextCronFire("* * * * *", from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 1, 1, 10, 31, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextCronFire_InvalidPattern(t *testing.T) {
	if _, err := NextCronFire("not a cron pattern", time.Now()); err == nil {
		t.Error("expected an error for an invalid cron pattern")
	}
}
