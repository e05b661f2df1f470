// Package gcode parses sliced G-code into a layer-indexed toolpath with
// object metadata. The parser is streaming: lines go in one at a time and
// the finished file comes out of Finalize.
package gcode

import "math"

// Point is a nozzle position in millimeters. float32 keeps segments small
// enough that multi-million-line files stay in memory.
type Point struct {
	X, Y, Z float32
}

const (
	flagExtrusion = 1 << iota
)

// NoObject marks a segment outside any EXCLUDE_OBJECT region.
const NoObject = int16(-1)

// Segment is one straight move. Object indexes ParsedFile.ObjectNames.
type Segment struct {
	Start, End Point
	EDelta     float32
	Object     int16
	Flags      uint8
}

// IsExtrusion reports whether filament was pushed during the move.
func (s Segment) IsExtrusion() bool { return s.Flags&flagExtrusion != 0 }

// BBox is an axis-aligned box. The zero value is empty.
type BBox struct {
	Min, Max Point
	set      bool
}

// Add grows the box to cover p.
func (b *BBox) Add(p Point) {
	if !b.set {
		b.Min, b.Max = p, p
		b.set = true
		return
	}
	b.Min.X = min32(b.Min.X, p.X)
	b.Min.Y = min32(b.Min.Y, p.Y)
	b.Min.Z = min32(b.Min.Z, p.Z)
	b.Max.X = max32(b.Max.X, p.X)
	b.Max.Y = max32(b.Max.Y, p.Y)
	b.Max.Z = max32(b.Max.Z, p.Z)
}

// Valid reports whether any point was added.
func (b *BBox) Valid() bool { return b.set }

// Center returns the box midpoint.
func (b *BBox) Center() Point {
	return Point{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
		Z: (b.Min.Z + b.Max.Z) / 2,
	}
}

// LargestExtent returns the longest box edge.
func (b *BBox) LargestExtent() float32 {
	dx := b.Max.X - b.Min.X
	dy := b.Max.Y - b.Min.Y
	dz := b.Max.Z - b.Min.Z
	return max32(dx, max32(dy, dz))
}

func min32(a, b float32) float32 { return float32(math.Min(float64(a), float64(b))) }
func max32(a, b float32) float32 { return float32(math.Max(float64(a), float64(b))) }

// Layer holds every segment at one Z height.
type Layer struct {
	ZHeight    float32
	Segments   []Segment
	BBox       BBox
	Extrusions int
	Travels    int
}

// Object is one EXCLUDE_OBJECT region defined by the slicer.
type Object struct {
	Name     string
	Center   [2]float32
	Polygon  [][2]float32
	BBox     BBox
	Excluded bool
}

// ParsedFile is the finished toolpath. Returned by value from Finalize;
// the caller owns it.
type ParsedFile struct {
	Filename    string
	Layers      []Layer
	Objects     map[string]*Object
	ObjectNames []string
	BBox        BBox

	TotalSegments int
	Extrusions    int
	Travels       int
}

// ObjectName resolves a segment's object index, or "" for none.
func (f *ParsedFile) ObjectName(idx int16) string {
	if idx < 0 || int(idx) >= len(f.ObjectNames) {
		return ""
	}
	return f.ObjectNames[idx]
}
