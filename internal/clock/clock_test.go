package clock

import (
	"testing"
	"time"
)

func TestSystem_ReturnsUTC(t *testing.T) {
	t.Parallel()

	now := System().Now()
	if now.Location() != time.UTC {
		t.Errorf("System clock location = %v, want UTC", now.Location())
	}
	if d := time.Since(now); d < 0 || d > time.Minute {
		t.Errorf("System clock drifted from wall clock by %v", d)
	}
}

func TestFake_AdvanceAndSet(t *testing.T) {
	t.Parallel()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fake := NewFake(t0)

	if got := fake.Now(); !got.Equal(t0) {
		t.Errorf("Now = %v, want %v", got, t0)
	}

	fake.Advance(24*time.Hour + time.Second)
	want := t0.Add(24*time.Hour + time.Second)
	if got := fake.Now(); !got.Equal(want) {
		t.Errorf("Now after Advance = %v, want %v", got, want)
	}

	fake.Set(t0)
	if got := fake.Now(); !got.Equal(t0) {
		t.Errorf("Now after Set = %v, want %v", got, t0)
	}
}
