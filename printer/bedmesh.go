package printer

// BedMesh is the active probed mesh as reported by the bed_mesh object.
// Matrix is row-major, XCount columns by YCount rows of Z heights in mm.
type BedMesh struct {
	Name     string
	Matrix   [][]float64
	MeshMin  [2]float64
	MeshMax  [2]float64
	Algo     string
	Profiles []string
}

// Valid reports whether the mesh has a usable matrix.
func (m *BedMesh) Valid() bool {
	return m != nil && len(m.Matrix) > 0 && len(m.Matrix[0]) > 0
}

// Counts returns (columns, rows).
func (m *BedMesh) Counts() (int, int) {
	if !m.Valid() {
		return 0, 0
	}
	return len(m.Matrix[0]), len(m.Matrix)
}

// ZRange returns the lowest and highest probed heights.
func (m *BedMesh) ZRange() (min, max float64) {
	if !m.Valid() {
		return 0, 0
	}
	min, max = m.Matrix[0][0], m.Matrix[0][0]
	for _, row := range m.Matrix {
		for _, z := range row {
			if z < min {
				min = z
			}
			if z > max {
				max = z
			}
		}
	}
	return min, max
}

func parseBedMesh(fields map[string]any, prev *BedMesh) *BedMesh {
	mesh := &BedMesh{}
	if prev != nil {
		*mesh = *prev
	}
	if name, ok := fields["profile_name"].(string); ok {
		mesh.Name = name
	}
	if raw, ok := fields["probed_matrix"].([]any); ok {
		mesh.Matrix = parseMatrix(raw)
	}
	if mn, ok := pair(fields["mesh_min"]); ok {
		mesh.MeshMin = mn
	}
	if mx, ok := pair(fields["mesh_max"]); ok {
		mesh.MeshMax = mx
	}
	if params, ok := fields["mesh_params"].(map[string]any); ok {
		if algo, ok := params["algo"].(string); ok {
			mesh.Algo = algo
		}
	}
	if profs, ok := fields["profiles"].(map[string]any); ok {
		mesh.Profiles = mesh.Profiles[:0]
		for name := range profs {
			mesh.Profiles = append(mesh.Profiles, name)
		}
	}
	return mesh
}

func parseMatrix(raw []any) [][]float64 {
	matrix := make([][]float64, 0, len(raw))
	for _, rowAny := range raw {
		rowRaw, ok := rowAny.([]any)
		if !ok {
			return nil
		}
		row := make([]float64, 0, len(rowRaw))
		for _, v := range rowRaw {
			f, ok := v.(float64)
			if !ok {
				return nil
			}
			row = append(row, f)
		}
		matrix = append(matrix, row)
	}
	return matrix
}

func pair(v any) ([2]float64, bool) {
	raw, ok := v.([]any)
	if !ok || len(raw) < 2 {
		return [2]float64{}, false
	}
	a, okA := raw[0].(float64)
	b, okB := raw[1].(float64)
	if !okA || !okB {
		return [2]float64{}, false
	}
	return [2]float64{a, b}, true
}
