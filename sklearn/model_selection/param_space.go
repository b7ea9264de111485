package model_selection

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/pipeperm/pkg/errors"
	"github.com/YuminosukeSato/pipeperm/sklearn/pipeline"
)

// ParamGrid maps a parameter name to its ordered candidate values.
type ParamGrid map[string][]interface{}

// Size returns the number of configurations of the grid: the product of
// its candidate-list lengths, or 1 for a grid without parameters.
func (g ParamGrid) Size() int {
	size := 1
	for _, values := range g {
		size = mulSat(size, len(values))
	}
	return size
}

// names returns the parameter names in canonical (sorted) order.
func (g ParamGrid) names() []string {
	names := make([]string, 0, len(g))
	for name := range g {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// at decodes configuration i of the grid. The last name in sorted order
// varies fastest.
func (g ParamGrid) at(i int) map[string]interface{} {
	names := g.names()
	params := make(map[string]interface{}, len(names))
	for k := len(names) - 1; k >= 0; k-- {
		values := g[names[k]]
		params[names[k]] = values[i%len(values)]
		i /= len(values)
	}
	return params
}

// SpaceKind tags the three shapes a ParamSpace can take.
type SpaceKind int

const (
	// SpaceNone has no tunable parameters: one configuration, the defaults.
	SpaceNone SpaceKind = iota
	// SpaceGrid is a single grid.
	SpaceGrid
	// SpaceList is an ordered list of mutually exclusive sub-grids.
	SpaceList
)

func (k SpaceKind) String() string {
	switch k {
	case SpaceNone:
		return "none"
	case SpaceGrid:
		return "grid"
	case SpaceList:
		return "list"
	}
	return fmt.Sprintf("SpaceKind(%d)", int(k))
}

// ParamSpace is the search space of one step variant. The zero value is
// SpaceNone.
type ParamSpace struct {
	kind  SpaceKind
	grids []ParamGrid
}

// NoSpace returns a space without tunable parameters.
func NoSpace() ParamSpace {
	return ParamSpace{}
}

// Grid returns a single-grid space.
func Grid(g ParamGrid) ParamSpace {
	return ParamSpace{kind: SpaceGrid, grids: []ParamGrid{g}}
}

// SubSpaces returns a space made of disjoint sub-grids, searched in order.
func SubSpaces(grids ...ParamGrid) ParamSpace {
	return ParamSpace{kind: SpaceList, grids: append([]ParamGrid(nil), grids...)}
}

// Kind reports the shape of the space.
func (s ParamSpace) Kind() SpaceKind {
	return s.kind
}

// Grids returns the grids of the space; SpaceNone yields one empty grid.
func (s ParamSpace) Grids() []ParamGrid {
	if s.kind == SpaceNone {
		return []ParamGrid{{}}
	}
	return s.grids
}

// Validate reports malformed spaces: a sub-space list without entries, a
// grid with an empty parameter name, or a parameter without candidates.
func (s ParamSpace) Validate() error {
	if s.kind == SpaceList && len(s.grids) == 0 {
		return errors.New("sub-space list is empty")
	}
	for gi, g := range s.grids {
		for _, name := range g.names() {
			if name == "" {
				return errors.Newf("grid %d has an empty parameter name", gi)
			}
			if len(g[name]) == 0 {
				return errors.Newf("parameter %q in grid %d has no candidate values", name, gi)
			}
		}
	}
	return nil
}

// StepSpace pairs a pipeline step name with the space of the variant
// chosen for it.
type StepSpace struct {
	Step  string
	Space ParamSpace
}

// SearchSpace is a merged, namespaced pipeline search space: an ordered
// list of disjoint grids whose parameter names are "step__param".
type SearchSpace struct {
	grids []ParamGrid
}

// Merge namespaces every step's parameters by step name and cross-multiplies
// the steps' grid lists, so a step with sub-spaces contributes one merged
// grid per sub-space. Grid order follows step order, earlier steps varying
// slowest.
func Merge(steps ...StepSpace) SearchSpace {
	merged := []ParamGrid{{}}
	for _, st := range steps {
		grids := st.Space.Grids()
		next := make([]ParamGrid, 0, len(merged)*len(grids))
		for _, base := range merged {
			for _, g := range grids {
				combined := make(ParamGrid, len(base)+len(g))
				for k, v := range base {
					combined[k] = v
				}
				for k, v := range g {
					combined[st.Step+pipeline.ParamSep+k] = v
				}
				next = append(next, combined)
			}
		}
		merged = next
	}
	return SearchSpace{grids: merged}
}

// Grids returns the merged grids in canonical order.
func (s SearchSpace) Grids() []ParamGrid {
	return s.grids
}

// Size is the number of configurations: the sum of the grid sizes.
// It saturates at math.MaxInt.
func (s SearchSpace) Size() int {
	total := 0
	for _, g := range s.grids {
		total = addSat(total, g.Size())
	}
	return total
}

// At decodes configuration i in canonical order: grids in order, then the
// grid's configurations with its last sorted parameter name varying fastest.
func (s SearchSpace) At(i int) (map[string]interface{}, error) {
	if i < 0 {
		return nil, errors.Newf("configuration index %d out of range", i)
	}
	for _, g := range s.grids {
		n := g.Size()
		if i < n {
			return g.at(i), nil
		}
		i -= n
	}
	return nil, errors.Newf("configuration index out of range for a space of %d", s.Size())
}

func mulSat(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > math.MaxInt/b {
		return math.MaxInt
	}
	return a * b
}

func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
