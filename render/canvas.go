package render

// Color is straight-alpha RGBA, channels in [0,1].
type Color struct {
	R, G, B, A float32
}

// LineStyle selects stroke width in pixels and opacity.
type LineStyle struct {
	Width   float32
	Opacity float32
}

// Styles for the toolpath line kinds.
var (
	StyleExtrusion   = LineStyle{Width: 2, Opacity: 0.8}
	StyleHighlighted = LineStyle{Width: 3, Opacity: 1.0}
	StyleTravel      = LineStyle{Width: 1, Opacity: 0.5}
	StyleBoundary    = LineStyle{Width: 2, Opacity: 0.7}
)

// Canvas receives projected 2D primitives. The display layer implements it
// over its framebuffer; tests implement it as a recorder.
type Canvas interface {
	DrawLine(x0, y0, x1, y1 float32, style LineStyle)
	FillQuad(pts [4][2]float32, c Color)
}

// RecordedLine is one DrawLine call captured by Recorder.
type RecordedLine struct {
	X0, Y0, X1, Y1 float32
	Style          LineStyle
}

// RecordedQuad is one FillQuad call captured by Recorder.
type RecordedQuad struct {
	Pts   [4][2]float32
	Color Color
}

// Recorder is a Canvas that stores every primitive for inspection.
type Recorder struct {
	Lines []RecordedLine
	Quads []RecordedQuad
}

func (r *Recorder) DrawLine(x0, y0, x1, y1 float32, style LineStyle) {
	r.Lines = append(r.Lines, RecordedLine{x0, y0, x1, y1, style})
}

func (r *Recorder) FillQuad(pts [4][2]float32, c Color) {
	r.Quads = append(r.Quads, RecordedQuad{pts, c})
}
