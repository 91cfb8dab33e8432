package vulkan

import (
	"unsafe"

	amath "github.com/spaghettifunk/diffuse/engine/math"
)

// FrameRing tracks which of the in-flight frame slots the CPU is recording
// into. The ring advances on every frame attempt, including skipped ones,
// so a skip never stalls the rotation.
type FrameRing struct {
	slots   uint32
	current uint32
}

func NewFrameRing(framesInFlight uint8) *FrameRing {
	if framesInFlight < 1 {
		framesInFlight = 1
	}
	return &FrameRing{
		slots: uint32(framesInFlight),
	}
}

func (fr *FrameRing) Current() uint32 {
	return fr.current
}

func (fr *FrameRing) Slots() uint32 {
	return fr.slots
}

func (fr *FrameRing) Advance() uint32 {
	fr.current = (fr.current + 1) % fr.slots
	return fr.current
}

func (fr *FrameRing) Reset() {
	fr.current = 0
}

// FrameUniforms is the per-frame uniform block laid out to match the
// std140 expectations of the vertex shaders.
type FrameUniforms struct {
	Model      amath.Mat4
	View       amath.Mat4
	Projection amath.Mat4
}

// Bytes exposes the uniform block as a byte slice for upload into a
// mapped buffer.
func (fu *FrameUniforms) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(fu)), int(unsafe.Sizeof(*fu)))
}
