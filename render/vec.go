// Package render holds the visualization core: camera and projection math,
// the bed-mesh heat-map surface and the G-code wireframe pipeline. It emits
// primitives through the Canvas interface; rasterization belongs to the
// display layer.
package render

import "math"

// Vec3 is a point or direction in millimeter space.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

func (v Vec3) Scale(s float32) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

func (v Vec3) Dot(o Vec3) float32 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v.Y*o.Z - v.Z*o.Y,
		v.Z*o.X - v.X*o.Z,
		v.X*o.Y - v.Y*o.X,
	}
}

func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return v
	}
	return v.Scale(1 / l)
}

// Vec4 is a homogeneous coordinate.
type Vec4 struct {
	X, Y, Z, W float32
}

// Mat4 is a row-major 4x4 matrix.
type Mat4 [16]float32

func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// MulVec applies m to a point (w = 1).
func (m Mat4) MulVec(v Vec3) Vec4 {
	return Vec4{
		m[0]*v.X + m[1]*v.Y + m[2]*v.Z + m[3],
		m[4]*v.X + m[5]*v.Y + m[6]*v.Z + m[7],
		m[8]*v.X + m[9]*v.Y + m[10]*v.Z + m[11],
		m[12]*v.X + m[13]*v.Y + m[14]*v.Z + m[15],
	}
}

// LookAt builds a right-handed view matrix.
func LookAt(eye, target, up Vec3) Mat4 {
	forward := target.Sub(eye).Normalize()
	right := forward.Cross(up).Normalize()
	trueUp := right.Cross(forward)
	return Mat4{
		right.X, right.Y, right.Z, -right.Dot(eye),
		trueUp.X, trueUp.Y, trueUp.Z, -trueUp.Dot(eye),
		-forward.X, -forward.Y, -forward.Z, forward.Dot(eye),
		0, 0, 0, 1,
	}
}

// Perspective builds a projection for a vertical field of view in degrees.
func Perspective(fovDegrees, aspect, near, far float32) Mat4 {
	f := float32(1 / math.Tan(float64(fovDegrees)*math.Pi/360))
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) / (near - far), 2 * far * near / (near - far),
		0, 0, -1, 0,
	}
}

// Orthographic builds a centered orthographic projection.
func Orthographic(halfWidth, halfHeight, near, far float32) Mat4 {
	return Mat4{
		1 / halfWidth, 0, 0, 0,
		0, 1 / halfHeight, 0, 0,
		0, 0, -2 / (far - near), -(far + near) / (far - near),
		0, 0, 0, 1,
	}
}
