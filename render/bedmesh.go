package render

import (
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"helixscreen/printer"
)

const (
	lutSize = 1024

	// Fraction of the original color kept when mixing with its own
	// grayscale. The remainder mutes the gradient for the dark theme.
	lutColorWeight = 0.65

	minElevation = -90
	maxElevation = 0
)

// heatLUT is the precomputed Purple->Blue->Cyan->Yellow->Red gradient,
// desaturated, indexed by normalized height.
var heatLUT = buildHeatLUT()

var heatStops = []colorful.Color{
	{R: 0.55, G: 0.10, B: 0.60}, // purple, lowest
	{R: 0.10, G: 0.25, B: 0.90}, // blue
	{R: 0.00, G: 0.85, B: 0.85}, // cyan, midpoint
	{R: 0.95, G: 0.85, B: 0.10}, // yellow
	{R: 0.90, G: 0.15, B: 0.10}, // red, highest
}

func buildHeatLUT() [lutSize]Color {
	var lut [lutSize]Color
	bands := len(heatStops) - 1
	for i := range lut {
		t := float64(i) / float64(lutSize-1)
		band := int(t * float64(bands))
		if band >= bands {
			band = bands - 1
		}
		local := t*float64(bands) - float64(band)
		c := heatStops[band].BlendRgb(heatStops[band+1], local)

		gray := 0.299*c.R + 0.587*c.G + 0.114*c.B
		lut[i] = Color{
			R: float32(lutColorWeight*c.R + (1-lutColorWeight)*gray),
			G: float32(lutColorWeight*c.G + (1-lutColorWeight)*gray),
			B: float32(lutColorWeight*c.B + (1-lutColorWeight)*gray),
			A: 1,
		}
	}
	return lut
}

// HeatColor maps a probed height into the LUT. compression widens contrast
// around the midpoint; 1 is neutral.
func HeatColor(z, min, max, compression float64) Color {
	t := 0.5
	if max > min {
		t = (z - min) / (max - min)
	}
	t = 0.5 + (t-0.5)*compression
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	// Round, don't floor: the midpoint must land on the cyan-to-yellow
	// band boundary rather than the last blue-to-cyan entry.
	return heatLUT[int(t*float64(lutSize-1)+0.5)]
}

// MeshView is the interaction and projection state for the bed-mesh
// surface. Angle trig is cached; call SetAngles to rotate.
type MeshView struct {
	Azimuth   float64 // around Z, degrees, wraps mod 360
	Elevation float64 // around X, degrees, clamped [-90, 0]

	sinAz, cosAz float64
	sinEl, cosEl float64

	Scale          float64 // mm per mesh cell in world space
	ZScale         float64 // vertical exaggeration
	CameraDistance float64
	FOVScale       float64
	AnchorY        float64 // fraction of height where the origin sits

	// Compression for the height-to-color mapping.
	Compression float64

	// Dragging switches to the flat-shaded fast path until release.
	Dragging bool
}

func NewMeshView() *MeshView {
	v := &MeshView{
		Scale:          12,
		ZScale:         60,
		CameraDistance: 280,
		FOVScale:       240,
		AnchorY:        0.55,
		Compression:    1.15,
	}
	v.SetAngles(30, -55)
	return v
}

// SetAngles updates the rotation and recomputes the cached trig. Elevation
// clamps to [-90, 0]; azimuth wraps.
func (v *MeshView) SetAngles(azimuth, elevation float64) {
	v.Azimuth = math.Mod(math.Mod(azimuth, 360)+360, 360)
	v.Elevation = elevation
	if v.Elevation < minElevation {
		v.Elevation = minElevation
	}
	if v.Elevation > maxElevation {
		v.Elevation = maxElevation
	}
	az := v.Azimuth * math.Pi / 180
	el := v.Elevation * math.Pi / 180
	v.sinAz, v.cosAz = math.Sin(az), math.Cos(az)
	v.sinEl, v.cosEl = math.Sin(el), math.Cos(el)
}

// Drag applies a touch delta in pixels.
func (v *MeshView) Drag(dx, dy float64) {
	v.SetAngles(v.Azimuth+dx*0.5, v.Elevation+dy*0.5)
}

// MeshWorldX centers a column index on the surface.
func (v *MeshView) MeshWorldX(col, cols int) float64 {
	return (float64(col) - float64(cols-1)/2) * v.Scale
}

// MeshWorldY centers a row index, flipping so row 0 (front of the bed)
// lands at negative Y.
func (v *MeshView) MeshWorldY(row, rows int) float64 {
	return (float64(rows-1-row) - float64(rows-1)/2) * v.Scale
}

// MeshWorldZ maps a probed height into world space, centered on the mesh
// midpoint so the surface straddles the grid plane.
func (v *MeshView) MeshWorldZ(z, zCenter float64) float64 {
	return (z - zCenter) * v.ZScale
}

// GridPlaneZ is the world height of the flat reference grid.
func (v *MeshView) GridPlaneZ(zCenter float64) float64 {
	return -zCenter * v.ZScale
}

// ProjectVertex rotates around Z then X, translates by the camera distance
// and perspective-divides into pixel coordinates.
func (v *MeshView) ProjectVertex(x, y, z float64, width, height int) (px, py float64) {
	// Z rotation.
	rx := x*v.cosAz - y*v.sinAz
	ry := x*v.sinAz + y*v.cosAz
	// X rotation.
	ry2 := ry*v.cosEl - z*v.sinEl
	rz2 := ry*v.sinEl + z*v.cosEl

	depth := rz2 + v.CameraDistance
	if depth < 1 {
		depth = 1
	}
	px = float64(width)/2 + rx*v.FOVScale/depth
	py = float64(height)*v.AnchorY - ry2*v.FOVScale/depth
	return px, py
}

// Render draws the surface. While dragging, every cell becomes one flat
// quad; otherwise cells are subdivided for a smoother gradient.
func (v *MeshView) Render(mesh *printer.BedMesh, canvas Canvas, width, height int) {
	if !mesh.Valid() {
		return
	}
	cols, rows := mesh.Counts()
	if cols < 2 || rows < 2 {
		return
	}
	minZ, maxZ := mesh.ZRange()
	zCenter := (minZ + maxZ) / 2

	steps := 3
	if v.Dragging {
		steps = 1
	}
	cell := func(fc, fr float64) (px, py float64, z float64) {
		z = bilinear(mesh.Matrix, fc, fr)
		wx := (fc - float64(cols-1)/2) * v.Scale
		wy := ((float64(rows-1) - fr) - float64(rows-1)/2) * v.Scale
		wz := v.MeshWorldZ(z, zCenter)
		px, py = v.ProjectVertex(wx, wy, wz, width, height)
		return px, py, z
	}

	for row := 0; row < rows-1; row++ {
		for col := 0; col < cols-1; col++ {
			for sr := 0; sr < steps; sr++ {
				for sc := 0; sc < steps; sc++ {
					f0c := float64(col) + float64(sc)/float64(steps)
					f0r := float64(row) + float64(sr)/float64(steps)
					f1c := float64(col) + float64(sc+1)/float64(steps)
					f1r := float64(row) + float64(sr+1)/float64(steps)

					x0, y0, z00 := cell(f0c, f0r)
					x1, y1, z10 := cell(f1c, f0r)
					x2, y2, z11 := cell(f1c, f1r)
					x3, y3, z01 := cell(f0c, f1r)

					avg := (z00 + z10 + z11 + z01) / 4
					canvas.FillQuad([4][2]float32{
						{float32(x0), float32(y0)},
						{float32(x1), float32(y1)},
						{float32(x2), float32(y2)},
						{float32(x3), float32(y3)},
					}, HeatColor(avg, minZ, maxZ, v.Compression))
				}
			}
		}
	}
}

// bilinear samples the matrix at fractional (col, row).
func bilinear(matrix [][]float64, fc, fr float64) float64 {
	rows := len(matrix)
	cols := len(matrix[0])
	c0 := int(fc)
	r0 := int(fr)
	if c0 >= cols-1 {
		c0 = cols - 2
	}
	if r0 >= rows-1 {
		r0 = rows - 2
	}
	tc := fc - float64(c0)
	tr := fr - float64(r0)
	top := matrix[r0][c0]*(1-tc) + matrix[r0][c0+1]*tc
	bottom := matrix[r0+1][c0]*(1-tc) + matrix[r0+1][c0+1]*tc
	return top*(1-tr) + bottom*tr
}
