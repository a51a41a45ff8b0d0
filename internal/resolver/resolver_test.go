package resolver

import "testing"

func TestResultStatusConstants(t *testing.T) {
	if StatusResolved == StatusPending {
		t.Fatal("StatusResolved and StatusPending must be distinct")
	}
}
