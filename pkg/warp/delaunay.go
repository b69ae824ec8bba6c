package warp

import (
	"github.com/fogleman/delaunay"
)

// Vec is a 2D position in raster coordinates.
type Vec struct {
	X, Y float64
}

// Triangle holds three indices into the triangulated point list.
type Triangle [3]int

// Delaunay triangulates pts. Repeated points keep their first index; the
// triangles refer to indices of pts and come out in the same order for the
// same input. Fewer than three distinct points, or collinear points, give
// no triangles.
func Delaunay(pts []Vec) []Triangle {
	var unique []delaunay.Point
	var index []int
	seen := make(map[Vec]bool, len(pts))
	for i, p := range pts {
		if seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, delaunay.Point{X: p.X, Y: p.Y})
		index = append(index, i)
	}
	if len(unique) < 3 {
		return nil
	}
	tr, err := delaunay.Triangulate(unique)
	if err != nil {
		return nil
	}
	out := make([]Triangle, 0, len(tr.Triangles)/3)
	for i := 0; i+2 < len(tr.Triangles); i += 3 {
		out = append(out, Triangle{
			index[tr.Triangles[i]],
			index[tr.Triangles[i+1]],
			index[tr.Triangles[i+2]],
		})
	}
	return out
}
