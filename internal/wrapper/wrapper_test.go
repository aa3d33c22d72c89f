package wrapper

import "testing"

func TestOverlayCreatesOnceAndCaches(t *testing.T) {
	r := NewRegistry()
	calls := 0
	newFn := func() any { calls++; return &struct{}{} }

	a := r.Overlay(0x1000, newFn)
	b := r.Overlay(0x1000, newFn)
	if a != b {
		t.Fatal("Overlay should return the same instance for the same guest address")
	}
	if calls != 1 {
		t.Fatalf("newFn called %d times, want 1", calls)
	}
}

func TestOverlayDistinctAddressesGetDistinctInstances(t *testing.T) {
	r := NewRegistry()
	newFn := func() any { return &struct{}{} }

	a := r.Overlay(0x1000, newFn)
	b := r.Overlay(0x2000, newFn)
	if a == b {
		t.Fatal("distinct guest addresses should not share an instance")
	}
}

func TestReleaseForgetsInstance(t *testing.T) {
	r := NewRegistry()
	calls := 0
	newFn := func() any { calls++; return &struct{}{} }

	r.Overlay(0x1000, newFn)
	r.Release(0x1000)
	r.Overlay(0x1000, newFn)

	if calls != 2 {
		t.Fatalf("newFn called %d times after release+reuse, want 2", calls)
	}
}

func TestResidentRejectsNilAddress(t *testing.T) {
	if Resident(0, 4096) {
		t.Fatal("Resident(0, ...) should always be false")
	}
}
