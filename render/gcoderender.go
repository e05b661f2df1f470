package render

import (
	"math"

	"helixscreen/gcode"
	"helixscreen/metrics"
)

// LOD strides. Level n draws every 1<<n th segment of a layer.
const (
	LODFull = iota
	LODHalf
	LODQuarter
)

const pickRadiusPx = 30

// Renderer walks a parsed file and emits styled 2D lines through a Canvas.
// One instance per preview widget.
type Renderer struct {
	Camera *Camera
	LOD    int

	// Visible layer range, inclusive. Clamped to the file on render.
	StartLayer, EndLayer int

	// Highlighted object gets the emphasized style; excluded objects are
	// skipped entirely.
	Highlight string
	Excluded  map[string]bool

	ShowTravel   bool
	ShowOutlines bool

	// Per-frame diagnostics.
	Rendered, Culled int
}

func NewRenderer(camera *Camera) *Renderer {
	return &Renderer{
		Camera:       camera,
		EndLayer:     math.MaxInt32,
		ShowTravel:   true,
		ShowOutlines: true,
	}
}

// Render draws the visible slice of the file. Counters reset per call.
func (r *Renderer) Render(file *gcode.ParsedFile, canvas Canvas) {
	r.Rendered, r.Culled = 0, 0
	if len(file.Layers) == 0 {
		return
	}
	vp := r.Camera.ViewProjection()

	start := clampInt(r.StartLayer, 0, len(file.Layers)-1)
	end := clampInt(r.EndLayer, 0, len(file.Layers)-1)
	if start > end {
		start, end = end, start
	}

	if r.ShowOutlines {
		r.drawOutlines(file, vp, canvas)
	}

	stride := 1 << clampInt(r.LOD, LODFull, LODQuarter)
	for li := start; li <= end; li++ {
		layer := &file.Layers[li]
		for si := 0; si < len(layer.Segments); si += stride {
			seg := layer.Segments[si]
			name := file.ObjectName(seg.Object)
			if r.Excluded[name] && name != "" {
				continue
			}
			if !seg.IsExtrusion() && !r.ShowTravel {
				continue
			}
			r.drawSegment(seg, name, vp, canvas)
		}
	}
	metrics.SegmentsRendered.Add(float64(r.Rendered))
	metrics.SegmentsCulled.Add(float64(r.Culled))
}

func (r *Renderer) drawSegment(seg gcode.Segment, object string, vp Mat4, canvas Canvas) {
	x0, y0, ok0 := r.Camera.Project(vp, Vec3{seg.Start.X, seg.Start.Y, seg.Start.Z})
	x1, y1, ok1 := r.Camera.Project(vp, Vec3{seg.End.X, seg.End.Y, seg.End.Z})
	if !ok0 || !ok1 {
		r.Culled++
		return
	}
	x0, y0, x1, y1, ok := clipLine(x0, y0, x1, y1, float32(r.Camera.Width), float32(r.Camera.Height))
	if !ok {
		r.Culled++
		return
	}
	style := StyleTravel
	if seg.IsExtrusion() {
		style = StyleExtrusion
		if object != "" && object == r.Highlight {
			style = StyleHighlighted
		}
	}
	canvas.DrawLine(x0, y0, x1, y1, style)
	r.Rendered++
}

// drawOutlines projects each object polygon at bed level.
func (r *Renderer) drawOutlines(file *gcode.ParsedFile, vp Mat4, canvas Canvas) {
	for _, name := range file.ObjectNames {
		obj := file.Objects[name]
		if obj == nil || len(obj.Polygon) < 2 || r.Excluded[name] {
			continue
		}
		for i := range obj.Polygon {
			a := obj.Polygon[i]
			b := obj.Polygon[(i+1)%len(obj.Polygon)]
			x0, y0, ok0 := r.Camera.Project(vp, Vec3{a[0], a[1], 0})
			x1, y1, ok1 := r.Camera.Project(vp, Vec3{b[0], b[1], 0})
			if !ok0 || !ok1 {
				r.Culled++
				continue
			}
			x0, y0, x1, y1, ok := clipLine(x0, y0, x1, y1, float32(r.Camera.Width), float32(r.Camera.Height))
			if !ok {
				r.Culled++
				continue
			}
			canvas.DrawLine(x0, y0, x1, y1, StyleBoundary)
			r.Rendered++
		}
	}
}

// PickObject maps a tap to the nearest object center within reach, or "".
func (r *Renderer) PickObject(file *gcode.ParsedFile, sx, sy float32) string {
	vp := r.Camera.ViewProjection()
	best := ""
	bestDist := float32(pickRadiusPx)
	for _, name := range file.ObjectNames {
		obj := file.Objects[name]
		if obj == nil {
			continue
		}
		px, py, ok := r.Camera.Project(vp, Vec3{obj.Center[0], obj.Center[1], 0})
		if !ok {
			continue
		}
		dx, dy := px-sx, py-sy
		dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
		if dist <= bestDist {
			bestDist = dist
			best = name
		}
	}
	return best
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Cohen-Sutherland outcodes for viewport clipping.
const (
	outLeft = 1 << iota
	outRight
	outBottom
	outTop
)

func outcode(x, y, w, h float32) int {
	code := 0
	if x < 0 {
		code |= outLeft
	} else if x > w {
		code |= outRight
	}
	if y < 0 {
		code |= outTop
	} else if y > h {
		code |= outBottom
	}
	return code
}

// clipLine clips to [0,w]x[0,h], reporting whether anything remains.
func clipLine(x0, y0, x1, y1, w, h float32) (float32, float32, float32, float32, bool) {
	c0 := outcode(x0, y0, w, h)
	c1 := outcode(x1, y1, w, h)
	for {
		switch {
		case c0|c1 == 0:
			return x0, y0, x1, y1, true
		case c0&c1 != 0:
			return 0, 0, 0, 0, false
		}
		out := c0
		if out == 0 {
			out = c1
		}
		var x, y float32
		switch {
		case out&outBottom != 0:
			x = x0 + (x1-x0)*(h-y0)/(y1-y0)
			y = h
		case out&outTop != 0:
			x = x0 + (x1-x0)*(0-y0)/(y1-y0)
			y = 0
		case out&outRight != 0:
			y = y0 + (y1-y0)*(w-x0)/(x1-x0)
			x = w
		default:
			y = y0 + (y1-y0)*(0-x0)/(x1-x0)
			x = 0
		}
		if out == c0 {
			x0, y0 = x, y
			c0 = outcode(x0, y0, w, h)
		} else {
			x1, y1 = x, y
			c1 = outcode(x1, y1, w, h)
		}
	}
}
