package rng

import "testing"

func TestNewStreamDeterministic(t *testing.T) {
	a := NewStream(42)
	b := NewStream(42)

	for i := 0; i < 100; i++ {
		va, vb := a.Float64(), b.Float64()
		if va != vb {
			t.Fatalf("streams diverged at draw %d: %v != %v", i, va, vb)
		}
	}
}

func TestStreamFloat64Range(t *testing.T) {
	s := NewStream(1)
	for i := 0; i < 10000; i++ {
		v := s.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64 out of [0,1): %v", v)
		}
	}
}

func TestSubIsDeterministicGivenParentSeed(t *testing.T) {
	a := NewStream(7)
	b := NewStream(7)

	childA := a.Sub()
	childB := b.Sub()

	for i := 0; i < 100; i++ {
		va, vb := childA.Float64(), childB.Float64()
		if va != vb {
			t.Fatalf("child streams diverged at draw %d: %v != %v", i, va, vb)
		}
	}
}

func TestSubProducesIndependentSequence(t *testing.T) {
	s := NewStream(7)
	child := s.Sub()

	same := true
	for i := 0; i < 20; i++ {
		if s.Float64() != child.Float64() {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected child stream to diverge from parent stream")
	}
}
