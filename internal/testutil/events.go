package testutil

import (
	"testing"
	"time"

	"github.com/roach88/tessera/internal/observe"
)

// DefaultEventTimeout bounds how long helpers wait for an event.
const DefaultEventTimeout = 2 * time.Second

// CollectEvents reads exactly n events from sub, failing the test if
// they do not arrive within DefaultEventTimeout.
func CollectEvents(t testing.TB, sub *observe.Subscription, n int) []observe.ChangeEvent {
	t.Helper()

	out := make([]observe.ChangeEvent, 0, n)
	deadline := time.After(DefaultEventTimeout)
	for len(out) < n {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatalf("subscription closed after %d of %d events", len(out), n)
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}

// ExpectNoEvent fails the test if sub delivers an event within wait.
func ExpectNoEvent(t testing.TB, sub *observe.Subscription, wait time.Duration) {
	t.Helper()

	select {
	case ev, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected %s event for %s", ev.Op, ev.Element)
		}
	case <-time.After(wait):
	}
}

// WaitClosed fails the test if sub's event channel is not closed within
// DefaultEventTimeout. Pending events are discarded.
func WaitClosed(t testing.TB, sub *observe.Subscription) {
	t.Helper()

	deadline := time.After(DefaultEventTimeout)
	for {
		select {
		case _, ok := <-sub.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("subscription not closed")
		}
	}
}
