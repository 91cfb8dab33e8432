package vulkan

import (
	"testing"
	"unsafe"
)

func TestFrameRingRotation(t *testing.T) {
	ring := NewFrameRing(2)
	if ring.Current() != 0 {
		t.Fatalf("initial slot = %d, want 0", ring.Current())
	}
	ring.Advance()
	if ring.Current() != 1 {
		t.Errorf("slot after first advance = %d, want 1", ring.Current())
	}
	// With two slots, the third frame reuses the first frame's slot.
	ring.Advance()
	if ring.Current() != 0 {
		t.Errorf("slot after second advance = %d, want 0", ring.Current())
	}
}

func TestFrameRingThreeSlots(t *testing.T) {
	ring := NewFrameRing(3)
	seen := make([]uint32, 0, 6)
	for i := 0; i < 6; i++ {
		seen = append(seen, ring.Current())
		ring.Advance()
	}
	want := []uint32{0, 1, 2, 0, 1, 2}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("rotation %v, want %v", seen, want)
		}
	}
}

func TestFrameRingClampsToOne(t *testing.T) {
	ring := NewFrameRing(0)
	if ring.Slots() != 1 {
		t.Errorf("Slots = %d, want 1", ring.Slots())
	}
	ring.Advance()
	if ring.Current() != 0 {
		t.Errorf("single slot ring moved to %d", ring.Current())
	}
}

func TestFrameRingReset(t *testing.T) {
	ring := NewFrameRing(3)
	ring.Advance()
	ring.Advance()
	ring.Reset()
	if ring.Current() != 0 {
		t.Errorf("slot after reset = %d, want 0", ring.Current())
	}
}

func TestFrameUniformsSize(t *testing.T) {
	var fu FrameUniforms
	// Three tightly packed 4x4 float32 matrices.
	if got := len(fu.Bytes()); got != 3*16*4 {
		t.Errorf("uniform block size = %d bytes, want %d", got, 3*16*4)
	}
	if unsafe.Sizeof(fu)%16 != 0 {
		t.Errorf("uniform block not 16-byte aligned: %d", unsafe.Sizeof(fu))
	}
}
