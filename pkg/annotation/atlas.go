// Package annotation holds a 3D label volume registered to the displayed
// data and answers region membership queries for contour overlays.
package annotation

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"volview/internal/models"
)

// Atlas is a label volume plus a region name to label lookup.
type Atlas struct {
	// Extent is the (row, col, depth) size of the label volume
	Extent [3]int

	// Labels holds one label per voxel, index (z*H+y)*W+x
	Labels []int32

	// Regions maps region names to the labels they contain
	Regions map[string][]int32
}

// regionFile is the on-disk region table
type regionFile struct {
	Regions map[string][]int32 `yaml:"regions"`
}

// New creates an atlas from a label array.
func New(extent [3]int, labels []int32) (*Atlas, error) {
	if extent[0] < 1 || extent[1] < 1 || extent[2] < 1 {
		return nil, models.Invalid("new atlas", models.ErrInvalidArgument, "extent %v", extent)
	}
	if len(labels) != extent[0]*extent[1]*extent[2] {
		return nil, models.Invalid("new atlas", models.ErrShapeMismatch,
			"%d labels for extent %v", len(labels), extent)
	}
	return &Atlas{Extent: extent, Labels: labels, Regions: map[string][]int32{}}, nil
}

// LoadRegions reads a YAML region table of the form
//
//	regions:
//	  cortex: [1, 2, 3]
func (a *Atlas) LoadRegions(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read region table: %w", err)
	}
	var f regionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse region table: %w", err)
	}
	for name, labels := range f.Regions {
		a.Regions[name] = labels
	}
	return nil
}

// RegionNames returns the known region names in sorted order.
func (a *Atlas) RegionNames() []string {
	names := make([]string, 0, len(a.Regions))
	for name := range a.Regions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Mask is a 2D region membership mask in raster order.
type Mask struct {
	Rows, Cols int
	In         []bool
}

// At reports membership at (r, c); positions outside the mask are false.
func (m Mask) At(r, c int) bool {
	if r < 0 || c < 0 || r >= m.Rows || c >= m.Cols {
		return false
	}
	return m.In[r*m.Cols+c]
}

// Mask returns the membership of region in the plane selected by perm and
// the inclusive depth range rng. A pixel is inside when any voxel along the
// range belongs to the region. A slice is a range of length one.
func (a *Atlas) Mask(region string, perm models.Permutation, rng models.Range) (Mask, error) {
	labels, ok := a.Regions[region]
	if !ok {
		return Mask{}, models.Invalid("region mask", models.ErrUnknownRegion, "%q", region)
	}
	if err := perm.Validate(); err != nil {
		return Mask{}, err
	}
	depth := a.Extent[perm.Depth()]
	if rng.Min < 0 || rng.Max >= depth || rng.Min > rng.Max {
		return Mask{}, models.Invalid("region mask", models.ErrInvalidArgument,
			"range %v outside depth axis of length %d", rng, depth)
	}
	set := make(map[int32]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}

	m := Mask{Rows: a.Extent[perm.Row()], Cols: a.Extent[perm.Col()]}
	m.In = make([]bool, m.Rows*m.Cols)
	h, w := a.Extent[0], a.Extent[1]
	var q [3]int
	for r := 0; r < m.Rows; r++ {
		q[perm.Row()] = r
		for c := 0; c < m.Cols; c++ {
			q[perm.Col()] = c
			for d := rng.Min; d <= rng.Max; d++ {
				q[perm.Depth()] = d
				if set[a.Labels[(q[2]*h+q[0])*w+q[1]]] {
					m.In[r*m.Cols+c] = true
					break
				}
			}
		}
	}
	return m, nil
}
