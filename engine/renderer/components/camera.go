package components

import (
	amath "github.com/spaghettifunk/diffuse/engine/math"
)

// Camera produces the view and projection matrices consumed by the frame
// uniforms. Aspect follows the swapchain extent and is updated on resize.
type Camera struct {
	Position amath.Vec3
	Target   amath.Vec3
	Up       amath.Vec3

	FovDegrees float32
	NearClip   float32
	FarClip    float32

	aspect float32
}

func NewCamera() *Camera {
	return &Camera{
		Position:   amath.NewVec3(0, 0, 3),
		Target:     amath.NewVec3(0, 0, 0),
		Up:         amath.NewVec3(0, 1, 0),
		FovDegrees: 60,
		NearClip:   0.1,
		FarClip:    512,
		aspect:     1,
	}
}

func (c *Camera) SetAspect(width, height uint32) {
	if height == 0 {
		return
	}
	c.aspect = float32(width) / float32(height)
}

func (c *Camera) View() amath.Mat4 {
	return amath.NewMat4LookAt(c.Position, c.Target, c.Up)
}

// SkyboxView is the view matrix with translation stripped so the skybox
// never parallaxes against the camera.
func (c *Camera) SkyboxView() amath.Mat4 {
	return c.View().WithoutTranslation()
}

func (c *Camera) Projection() amath.Mat4 {
	return amath.NewMat4Perspective(amath.DegToRad(c.FovDegrees), c.aspect, c.NearClip, c.FarClip)
}
