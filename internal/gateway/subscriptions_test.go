package gateway

import "testing"

func TestSubscriptionSet(t *testing.T) {
	subs := newSubscriptionSet()

	if !subs.add("homelink/+/+/+/state") {
		t.Error("first add returned false")
	}
	if subs.add("homelink/+/+/+/state") {
		t.Error("duplicate add returned true")
	}
	if subs.count() != 1 {
		t.Errorf("count = %d, want 1", subs.count())
	}
	if !subs.has("homelink/+/+/+/state") {
		t.Error("has returned false for subscribed pattern")
	}

	subs.remove("homelink/+/+/+/state")
	if subs.has("homelink/+/+/+/state") {
		t.Error("has returned true after remove")
	}

	// After removal the pattern can be added again.
	if !subs.add("homelink/+/+/+/state") {
		t.Error("re-add after remove returned false")
	}

	subs.add("homelink/+/+/+/status")
	subs.clear()
	if subs.count() != 0 {
		t.Errorf("count after clear = %d, want 0", subs.count())
	}
}
