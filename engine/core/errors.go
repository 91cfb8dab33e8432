package core

import (
	"errors"
)

var (
	// ErrSwapchainOutOfDate signals that the swapchain no longer matches the
	// surface and must be recreated before the next acquire.
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	// ErrFrameSkipped signals that the current frame attempt was abandoned
	// (resize, zero-sized window, pipeline reload). Not an error condition.
	ErrFrameSkipped = errors.New("frame skipped")
	// ErrMalformedScene signals a cycle or out-of-range reference in a scene
	// node arena.
	ErrMalformedScene = errors.New("malformed scene graph")
)
