package gcode

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

// Parser is the streaming line machine. Feed lines with ParseLine, then
// call Finalize for the finished file. A Parser holds no locks; drive it
// from one goroutine, batching lines as needed.
type Parser struct {
	// LayerEpsilon is the tolerance added to the layer-change compare. The
	// default 0 keeps the strict greater-than rule; slicers that wobble Z
	// by a few microns can set a small value to suppress phantom layers.
	LayerEpsilon float32

	file      ParsedFile
	absXYZ    bool
	absE      bool
	pos       Point
	ePos      float32
	curLayer  int
	curObject int16
}

func NewParser(filename string) *Parser {
	p := &Parser{}
	p.reset(filename)
	return p
}

func (p *Parser) reset(filename string) {
	p.file = ParsedFile{
		Filename: filename,
		Objects:  make(map[string]*Object),
	}
	p.absXYZ = true
	p.absE = true
	p.pos = Point{}
	p.ePos = 0
	p.curLayer = -1
	p.curObject = NoObject
}

// ParseAll drives ParseLine over an entire stream.
func (p *Parser) ParseAll(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.ParseLine(scanner.Text())
	}
	return scanner.Err()
}

// ParseLine advances the machine by one line. Malformed numbers and
// unknown commands are skipped; the parser never fails mid-file.
func (p *Parser) ParseLine(line string) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	cmd := line
	if i := strings.IndexByte(line, ' '); i >= 0 {
		cmd = line[:i]
	}
	switch strings.ToUpper(cmd) {
	case "G90":
		p.absXYZ = true
	case "G91":
		p.absXYZ = false
	case "M82":
		p.absE = true
	case "M83":
		p.absE = false
	case "G0", "G1":
		p.move(line)
	case "EXCLUDE_OBJECT_DEFINE":
		p.defineObject(line)
	case "EXCLUDE_OBJECT_START":
		if name := namedArg(line, "NAME"); name != "" {
			p.curObject = p.objectIndex(name)
		}
	case "EXCLUDE_OBJECT_END":
		p.curObject = NoObject
	}
}

func (p *Parser) move(line string) {
	var val [4]float32 // X Y Z E
	var has [4]bool
	for _, word := range strings.Fields(line)[1:] {
		if len(word) < 2 {
			continue
		}
		axis := -1
		switch word[0] {
		case 'X', 'x':
			axis = 0
		case 'Y', 'y':
			axis = 1
		case 'Z', 'z':
			axis = 2
		case 'E', 'e':
			axis = 3
		default:
			continue // F and friends carry no geometry
		}
		f, err := strconv.ParseFloat(word[1:], 32)
		if err != nil {
			continue
		}
		val[axis] = float32(f)
		has[axis] = true
	}
	if !has[0] && !has[1] && !has[2] && !has[3] {
		return
	}

	next := p.pos
	apply := func(cur float32, axis int) float32 {
		if !has[axis] {
			return cur
		}
		if p.absXYZ {
			return val[axis]
		}
		return cur + val[axis]
	}
	next.X = apply(next.X, 0)
	next.Y = apply(next.Y, 1)
	next.Z = apply(next.Z, 2)

	var eDelta float32
	if has[3] {
		if p.absE {
			eDelta = val[3] - p.ePos
			p.ePos = val[3]
		} else {
			eDelta = val[3]
			p.ePos += val[3]
		}
	}

	// A Z rise past the current layer height opens a new layer; a drop is
	// an intra-layer move such as a z-hop return.
	if p.curLayer < 0 || next.Z > p.file.Layers[p.curLayer].ZHeight+p.LayerEpsilon {
		p.file.Layers = append(p.file.Layers, Layer{ZHeight: next.Z})
		p.curLayer = len(p.file.Layers) - 1
	}

	seg := Segment{
		Start:  p.pos,
		End:    next,
		EDelta: eDelta,
		Object: p.curObject,
	}
	if eDelta > 0 {
		seg.Flags |= flagExtrusion
		p.file.BBox.Add(seg.Start)
		p.file.BBox.Add(seg.End)
		if p.curObject != NoObject {
			obj := p.file.Objects[p.file.ObjectNames[p.curObject]]
			obj.BBox.Add(seg.Start)
			obj.BBox.Add(seg.End)
		}
	}
	layer := &p.file.Layers[p.curLayer]
	layer.Segments = append(layer.Segments, seg)
	p.pos = next
}

// defineObject handles EXCLUDE_OBJECT_DEFINE NAME=… CENTER=x,y
// POLYGON=[[x,y],…]. The slicer may quote values, so the line is split
// shell-style.
func (p *Parser) defineObject(line string) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return
	}
	name := ""
	var center [2]float32
	var polygon [][2]float32
	for _, token := range tokens[1:] {
		key, value, ok := strings.Cut(token, "=")
		if !ok {
			continue
		}
		switch strings.ToUpper(key) {
		case "NAME":
			name = value
		case "CENTER":
			parts := strings.Split(value, ",")
			for i := 0; i < len(parts) && i < 2; i++ {
				if f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 32); err == nil {
					center[i] = float32(f)
				}
			}
		case "POLYGON":
			var pts [][]float64
			if err := json.Unmarshal([]byte(value), &pts); err != nil {
				continue
			}
			for _, pt := range pts {
				if len(pt) >= 2 {
					polygon = append(polygon, [2]float32{float32(pt[0]), float32(pt[1])})
				}
			}
		}
	}
	if name == "" {
		return
	}
	idx := p.objectIndex(name)
	obj := p.file.Objects[p.file.ObjectNames[idx]]
	obj.Center = center
	if polygon != nil {
		obj.Polygon = polygon
	}
}

// objectIndex upserts an object by name and returns its index. START
// before DEFINE is tolerated; the definition fills in later.
func (p *Parser) objectIndex(name string) int16 {
	for i, existing := range p.file.ObjectNames {
		if existing == name {
			return int16(i)
		}
	}
	p.file.ObjectNames = append(p.file.ObjectNames, name)
	p.file.Objects[name] = &Object{Name: name}
	return int16(len(p.file.ObjectNames) - 1)
}

func namedArg(line, key string) string {
	tokens, err := shlex.Split(line)
	if err != nil {
		return ""
	}
	for _, token := range tokens[1:] {
		if k, v, ok := strings.Cut(token, "="); ok && strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Finalize computes per-layer boxes and counters, publishes the global
// totals and returns the file. The parser resets for the next file.
func (p *Parser) Finalize() ParsedFile {
	for i := range p.file.Layers {
		layer := &p.file.Layers[i]
		for _, seg := range layer.Segments {
			layer.BBox.Add(seg.Start)
			layer.BBox.Add(seg.End)
			if seg.IsExtrusion() {
				layer.Extrusions++
			} else {
				layer.Travels++
			}
		}
		p.file.TotalSegments += len(layer.Segments)
		p.file.Extrusions += layer.Extrusions
		p.file.Travels += layer.Travels
	}
	out := p.file
	p.reset(out.Filename)
	return out
}
