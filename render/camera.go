package render

import (
	"math"

	"helixscreen/gcode"
)

// ProjectionMode selects the camera projection.
type ProjectionMode int

const (
	ModeOrthographic ProjectionMode = iota
	ModePerspective
)

const defaultFOV = 45 // degrees, perspective mode only

// Camera is a spherical frame around a target point. Angles are degrees;
// azimuth rotates around the world Z axis and elevation lifts toward it.
type Camera struct {
	Target    Vec3
	Azimuth   float64
	Elevation float64
	Distance  float64
	Zoom      float64
	Mode      ProjectionMode

	Width, Height int
	Near, Far     float32
}

// NewCamera returns the default isometric-ish orthographic camera.
func NewCamera(width, height int) *Camera {
	c := &Camera{Width: width, Height: height}
	c.Reset()
	return c
}

// Reset restores the default view.
func (c *Camera) Reset() {
	c.Target = Vec3{}
	c.Azimuth = 45
	c.Elevation = 30
	c.Distance = 300
	c.Zoom = 1
	c.Mode = ModeOrthographic
	c.Near = 0.1
	c.Far = 10000
}

// Preset views.
func (c *Camera) Top()   { c.Azimuth, c.Elevation = 0, 90 }
func (c *Camera) Front() { c.Azimuth, c.Elevation = 0, 0 }
func (c *Camera) Side()  { c.Azimuth, c.Elevation = 90, 0 }
func (c *Camera) Iso()   { c.Azimuth, c.Elevation = 45, 30 }

// Orbit adjusts the angles by deltas, wrapping azimuth and clamping
// elevation short of the poles so the up vector stays sane.
func (c *Camera) Orbit(dAzimuth, dElevation float64) {
	c.Azimuth = math.Mod(c.Azimuth+dAzimuth+360, 360)
	c.Elevation += dElevation
	if c.Elevation > 89.9 {
		c.Elevation = 89.9
	}
	if c.Elevation < -89.9 {
		c.Elevation = -89.9
	}
}

// FitToBounds centers the target on the box and pulls back far enough to
// see all of it.
func (c *Camera) FitToBounds(box gcode.BBox) {
	if !box.Valid() {
		return
	}
	center := box.Center()
	c.Target = Vec3{center.X, center.Y, center.Z}
	extent := float64(box.LargestExtent())
	if extent < 1 {
		extent = 1
	}
	c.Distance = 2 * extent
	c.Zoom = 1
}

// Eye returns the camera position in world space.
func (c *Camera) Eye() Vec3 {
	az := c.Azimuth * math.Pi / 180
	el := c.Elevation * math.Pi / 180
	r := c.Distance
	return Vec3{
		c.Target.X + float32(r*math.Cos(el)*math.Sin(az)),
		c.Target.Y - float32(r*math.Cos(el)*math.Cos(az)),
		c.Target.Z + float32(r*math.Sin(el)),
	}
}

// ViewProjection composes the full transform for this frame.
func (c *Camera) ViewProjection() Mat4 {
	up := Vec3{0, 0, 1}
	if math.Abs(c.Elevation) > 89 {
		// Looking straight down the up axis; use world Y instead.
		up = Vec3{0, 1, 0}
	}
	view := LookAt(c.Eye(), c.Target, up)

	aspect := float32(1)
	if c.Height > 0 {
		aspect = float32(c.Width) / float32(c.Height)
	}
	var proj Mat4
	if c.Mode == ModePerspective {
		proj = Perspective(defaultFOV, aspect, c.Near, c.Far)
	} else {
		halfH := float32(c.Distance / (2 * c.Zoom))
		proj = Orthographic(halfH*aspect, halfH, c.Near, c.Far)
	}
	return proj.Mul(view)
}

// Project maps a world point to pixel coordinates. ok is false when the
// point falls outside the NDC cube on X or Y.
func (c *Camera) Project(vp Mat4, p Vec3) (sx, sy float32, ok bool) {
	clip := vp.MulVec(p)
	if clip.W == 0 {
		return 0, 0, false
	}
	ndcX := clip.X / clip.W
	ndcY := clip.Y / clip.W
	if ndcX < -1 || ndcX > 1 || ndcY < -1 || ndcY > 1 {
		return 0, 0, false
	}
	// Pixel space flips Y so the world up axis points up on screen.
	sx = (ndcX + 1) / 2 * float32(c.Width)
	sy = (1 - ndcY) / 2 * float32(c.Height)
	return sx, sy, true
}
