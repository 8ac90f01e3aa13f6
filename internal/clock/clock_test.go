package clock

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
)

func TestRealClock_Now(t *testing.T) {
	clock := &RealClock{}

	before := time.Now()
	actual := clock.Now()
	after := time.Now()

	if actual.Before(before) || actual.After(after) {
		t.Errorf("RealClock.Now() returned time outside expected range: got %v, expected between %v and %v", actual, before, after)
	}
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewFakeClock(fixedTime)

	if got := clock.Now(); !got.Equal(fixedTime) {
		t.Errorf("Now() = %v, want %v", got, fixedTime)
	}
	if got := clock.Now(); !got.Equal(fixedTime) {
		t.Errorf("Now() changed without Advance: %v", got)
	}

	clock.Advance(90 * time.Second)
	if got, want := clock.Now(), fixedTime.Add(90*time.Second); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestRunIDs_StampedWithClock(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	ids := NewRunIDs(NewFakeClock(fixedTime))

	id, err := ulid.ParseStrict(ids.Next())
	if err != nil {
		t.Fatalf("Next() is not a ULID: %v", err)
	}
	if got := ulid.Time(id.Time()); !got.Equal(fixedTime) {
		t.Errorf("id time = %v, want %v", got, fixedTime)
	}
}

func TestRunIDs_MonotonicWithinMillisecond(t *testing.T) {
	ids := NewRunIDs(NewFakeClock(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)))

	prev := ids.Next()
	for i := 0; i < 100; i++ {
		next := ids.Next()
		if next <= prev {
			t.Fatalf("ids not increasing: %s then %s", prev, next)
		}
		prev = next
	}
}

func TestRunIDs_DefaultsToRealClock(t *testing.T) {
	ids := NewRunIDs(nil)
	before := time.Now().Add(-time.Millisecond)

	id, err := ulid.ParseStrict(ids.Next())
	if err != nil {
		t.Fatalf("Next() is not a ULID: %v", err)
	}
	if ulid.Time(id.Time()).Before(before.Truncate(time.Millisecond)) {
		t.Errorf("id time %v predates the call", ulid.Time(id.Time()))
	}
}
