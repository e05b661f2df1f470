package render

import (
	"math"
	"strings"
	"testing"

	"helixscreen/gcode"
	"helixscreen/printer"
)

func TestTargetProjectsToViewportCenter(t *testing.T) {
	for _, mode := range []ProjectionMode{ModeOrthographic, ModePerspective} {
		cam := NewCamera(800, 480)
		cam.Mode = mode
		cam.Target = Vec3{10, 20, 5}
		vp := cam.ViewProjection()
		sx, sy, ok := cam.Project(vp, cam.Target)
		if !ok {
			t.Fatalf("mode %v: target culled", mode)
		}
		if math.Abs(float64(sx-400)) > 1 || math.Abs(float64(sy-240)) > 1 {
			t.Errorf("mode %v: target projected to (%v, %v), want (400, 240)", mode, sx, sy)
		}
	}
}

func TestPresetsKeepTargetCentered(t *testing.T) {
	cam := NewCamera(640, 480)
	cam.Target = Vec3{100, 100, 10}
	for _, preset := range []func(){cam.Top, cam.Front, cam.Side, cam.Iso, cam.Reset} {
		preset()
		cam.Target = Vec3{100, 100, 10}
		vp := cam.ViewProjection()
		sx, sy, ok := cam.Project(vp, cam.Target)
		if !ok || math.Abs(float64(sx-320)) > 1 || math.Abs(float64(sy-240)) > 1 {
			t.Errorf("preset left target at (%v, %v), ok=%v", sx, sy, ok)
		}
	}
}

func TestFitToBounds(t *testing.T) {
	var box gcode.BBox
	box.Add(gcode.Point{X: 90, Y: 90, Z: 0})
	box.Add(gcode.Point{X: 110, Y: 120, Z: 10})

	cam := NewCamera(800, 480)
	cam.Zoom = 3
	cam.FitToBounds(box)

	if cam.Target != (Vec3{100, 105, 5}) {
		t.Errorf("target = %v", cam.Target)
	}
	// Largest extent is 30 on Y.
	if cam.Distance != 60 {
		t.Errorf("distance = %v, want 60", cam.Distance)
	}
	if cam.Zoom != 1 {
		t.Errorf("zoom = %v, want reset to 1", cam.Zoom)
	}
}

func TestOrbitWrapsAndClamps(t *testing.T) {
	cam := NewCamera(800, 480)
	cam.Azimuth, cam.Elevation = 350, 80
	cam.Orbit(20, 30)
	if cam.Azimuth != 10 {
		t.Errorf("azimuth = %v, want wrap to 10", cam.Azimuth)
	}
	if cam.Elevation > 89.9 {
		t.Errorf("elevation = %v, want clamp", cam.Elevation)
	}
	cam.Orbit(0, -500)
	if cam.Elevation < -89.9 {
		t.Errorf("elevation = %v, want clamp at floor", cam.Elevation)
	}
}

func TestMeshCentering(t *testing.T) {
	v := NewMeshView()
	min, max := 0.05, 0.35
	zCenter := (min + max) / 2
	lo := v.MeshWorldZ(min, zCenter)
	hi := v.MeshWorldZ(max, zCenter)
	if math.Abs(lo+hi) > 1e-9 {
		t.Errorf("world z not centered: min -> %v, max -> %v", lo, hi)
	}
	if v.GridPlaneZ(zCenter) != -zCenter*v.ZScale {
		t.Errorf("grid plane = %v", v.GridPlaneZ(zCenter))
	}
}

func TestMeshViewAngleLimits(t *testing.T) {
	v := NewMeshView()
	v.SetAngles(725, 15)
	if v.Azimuth != 5 {
		t.Errorf("azimuth = %v, want wrap to 5", v.Azimuth)
	}
	if v.Elevation != 0 {
		t.Errorf("elevation = %v, want clamp to 0", v.Elevation)
	}
	v.SetAngles(-30, -200)
	if v.Azimuth != 330 {
		t.Errorf("azimuth = %v, want 330", v.Azimuth)
	}
	if v.Elevation != -90 {
		t.Errorf("elevation = %v, want clamp to -90", v.Elevation)
	}
}

func TestHeatColorMidpointIsGreenDominant(t *testing.T) {
	// z = 0.2 over [0.05, 0.35] normalizes to exactly 0.5 regardless of
	// the compression factor: the cyan-to-yellow boundary of the gradient.
	for _, compression := range []float64{1, 1.15, 2} {
		mid := HeatColor(0.2, 0.05, 0.35, compression)
		ref := heatLUT[lutSize/2]
		if mid != ref {
			t.Errorf("compression %v: midpoint %v != LUT middle %v", compression, mid, ref)
		}
		if mid.G <= mid.R || mid.G < mid.B {
			t.Errorf("midpoint not green dominant: %+v", mid)
		}
	}
}

func TestHeatColorClamps(t *testing.T) {
	low := HeatColor(-5, 0, 1, 1)
	high := HeatColor(5, 0, 1, 1)
	if low != heatLUT[0] || high != heatLUT[lutSize-1] {
		t.Error("out-of-range heights not clamped to LUT ends")
	}
	flat := HeatColor(0.3, 0.3, 0.3, 1)
	if flat != heatLUT[lutSize/2] {
		t.Error("degenerate range should map to the midpoint")
	}
}

func TestMeshRenderModes(t *testing.T) {
	mesh := &printer.BedMesh{
		Matrix: [][]float64{
			{0.05, 0.10, 0.15},
			{0.10, 0.20, 0.25},
			{0.15, 0.25, 0.35},
		},
	}
	v := NewMeshView()

	full := &Recorder{}
	v.Render(mesh, full, 800, 480)
	if len(full.Quads) == 0 {
		t.Fatal("gradient render drew nothing")
	}

	v.Dragging = true
	fast := &Recorder{}
	v.Render(mesh, fast, 800, 480)
	if len(fast.Quads) == 0 {
		t.Fatal("fast render drew nothing")
	}
	if len(fast.Quads) >= len(full.Quads) {
		t.Errorf("fast mode drew %d quads, gradient %d; want fewer while dragging",
			len(fast.Quads), len(full.Quads))
	}
}

const objectSnippet = `EXCLUDE_OBJECT_DEFINE NAME=benchy_1 CENTER=100,100 POLYGON=[[95,95],[105,95],[105,105],[95,105]]
G1 Z0.2
EXCLUDE_OBJECT_START NAME=benchy_1
G1 X95 Y95
G1 X95 Y105 E0.5
G1 X105 Y105 E1.0
G1 X105 Y95 E1.5
EXCLUDE_OBJECT_END
G1 Z0.4
EXCLUDE_OBJECT_START NAME=benchy_1
G1 X95 Y95
G1 X95 Y105 E2.0
EXCLUDE_OBJECT_END
`

func parsedObjectFile(t *testing.T) gcode.ParsedFile {
	t.Helper()
	p := gcode.NewParser("benchy.gcode")
	if err := p.ParseAll(strings.NewReader(objectSnippet)); err != nil {
		t.Fatal(err)
	}
	return p.Finalize()
}

func fittedRenderer(t *testing.T, file *gcode.ParsedFile) *Renderer {
	t.Helper()
	cam := NewCamera(800, 480)
	cam.FitToBounds(file.BBox)
	return NewRenderer(cam)
}

func TestRenderStyles(t *testing.T) {
	file := parsedObjectFile(t)
	r := fittedRenderer(t, &file)
	r.Highlight = "benchy_1"

	canvas := &Recorder{}
	r.Render(&file, canvas)

	var highlighted, travel, boundary int
	for _, line := range canvas.Lines {
		switch line.Style {
		case StyleHighlighted:
			highlighted++
		case StyleTravel:
			travel++
		case StyleBoundary:
			boundary++
		}
	}
	if highlighted == 0 {
		t.Error("no highlighted extrusion lines")
	}
	if travel == 0 {
		t.Error("no travel lines with the default style set")
	}
	if boundary != 4 {
		t.Errorf("boundary edges = %d, want 4", boundary)
	}
	if r.Rendered != len(canvas.Lines) {
		t.Errorf("rendered counter %d != %d drawn lines", r.Rendered, len(canvas.Lines))
	}
}

func TestRenderTravelToggle(t *testing.T) {
	file := parsedObjectFile(t)
	r := fittedRenderer(t, &file)
	r.ShowOutlines = false

	shown := &Recorder{}
	r.Render(&file, shown)
	var travel int
	for _, line := range shown.Lines {
		if line.Style == StyleTravel {
			travel++
		}
	}
	if travel == 0 {
		t.Error("travel moves hidden out of the box")
	}

	r.ShowTravel = false
	hidden := &Recorder{}
	r.Render(&file, hidden)
	for _, line := range hidden.Lines {
		if line.Style == StyleTravel {
			t.Fatal("travel line drawn with ShowTravel off")
		}
	}
	if len(hidden.Lines) != len(shown.Lines)-travel {
		t.Errorf("hiding travel left %d lines, want %d", len(hidden.Lines), len(shown.Lines)-travel)
	}
}

func TestRenderLayerRange(t *testing.T) {
	file := parsedObjectFile(t)
	r := fittedRenderer(t, &file)
	r.ShowOutlines = false
	r.StartLayer, r.EndLayer = 0, 0

	first := &Recorder{}
	r.Render(&file, first)

	r.EndLayer = 1
	both := &Recorder{}
	r.Render(&file, both)

	if len(both.Lines) <= len(first.Lines) {
		t.Errorf("widening the range drew %d then %d lines", len(first.Lines), len(both.Lines))
	}
}

func TestRenderLODReducesLines(t *testing.T) {
	file := parsedObjectFile(t)
	r := fittedRenderer(t, &file)
	r.ShowOutlines = false

	full := &Recorder{}
	r.Render(&file, full)

	r.LOD = LODQuarter
	sparse := &Recorder{}
	r.Render(&file, sparse)

	if len(sparse.Lines) >= len(full.Lines) {
		t.Errorf("LOD quarter drew %d lines, full drew %d", len(sparse.Lines), len(full.Lines))
	}
}

func TestRenderCullsOffscreenGeometry(t *testing.T) {
	file := parsedObjectFile(t)
	cam := NewCamera(800, 480)
	// Zoomed far in on the origin; all geometry near (100, 100) is outside
	// the NDC cube. Travel is off because the initial z-lift starts at the
	// origin itself.
	cam.Zoom = 200
	r := NewRenderer(cam)
	r.ShowTravel = false

	canvas := &Recorder{}
	r.Render(&file, canvas)
	if r.Rendered != 0 {
		t.Errorf("rendered %d segments that should be offscreen", r.Rendered)
	}
	if r.Culled == 0 {
		t.Error("culled counter stayed zero")
	}
}

func TestPickObject(t *testing.T) {
	file := parsedObjectFile(t)
	r := fittedRenderer(t, &file)
	vp := r.Camera.ViewProjection()

	obj := file.Objects["benchy_1"]
	px, py, ok := r.Camera.Project(vp, Vec3{obj.Center[0], obj.Center[1], 0})
	if !ok {
		t.Fatal("object center offscreen")
	}
	if got := r.PickObject(&file, px+5, py-5); got != "benchy_1" {
		t.Errorf("pick near center = %q", got)
	}
	if got := r.PickObject(&file, px+200, py); got != "" {
		t.Errorf("pick far away = %q, want none", got)
	}
}

func TestClipLine(t *testing.T) {
	// Fully inside.
	if _, _, _, _, ok := clipLine(10, 10, 20, 20, 100, 100); !ok {
		t.Error("inside line rejected")
	}
	// Fully outside on the same side.
	if _, _, _, _, ok := clipLine(-50, 10, -10, 20, 100, 100); ok {
		t.Error("outside line accepted")
	}
	// Crossing: endpoints land on the viewport edge.
	x0, y0, x1, y1, ok := clipLine(-50, 50, 150, 50, 100, 100)
	if !ok || x0 != 0 || x1 != 100 || y0 != 50 || y1 != 50 {
		t.Errorf("crossing line clipped to (%v,%v)-(%v,%v), ok=%v", x0, y0, x1, y1, ok)
	}
}
