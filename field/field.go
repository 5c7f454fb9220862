// Package field implements the piecewise-polynomial representation of
// an internal-force quantity (N, V or M) along one bar, per the design
// note in spec.md §9: "Represent as an ordered sequence of breakpoints
// with a small polynomial per segment. [...] closure over captured
// environment is not needed."
package field

import (
	"sort"

	"github.com/cpmech/gosl/chk"
)

// mergeTol is the distance below which two breakpoints are treated as
// the same event point when merging fields for superposition.
const mergeTol = 1e-9

// Poly is a polynomial of degree ≤ 3 in a local coordinate t measured
// from the start of its segment: value(t) = C0 + C1·t + C2·t² + C3·t³.
type Poly struct {
	C [4]float64
}

// Eval evaluates the polynomial at t via Horner's rule.
func (p Poly) Eval(t float64) float64 {
	return p.C[0] + t*(p.C[1]+t*(p.C[2]+t*p.C[3]))
}

// Shift re-expresses p, currently a function of t, as a function of
// t' where t = t' + d — i.e. it moves the polynomial's origin forward
// by d. Used to re-base a segment onto a later, merged breakpoint grid
// without losing its closed form.
func (p Poly) Shift(d float64) Poly {
	c0, c1, c2, c3 := p.C[0], p.C[1], p.C[2], p.C[3]
	return Poly{C: [4]float64{
		c0 + c1*d + c2*d*d + c3*d*d*d,
		c1 + 2*c2*d + 3*c3*d*d,
		c2 + 3*c3*d,
		c3,
	}}
}

// Scale multiplies every coefficient by a.
func (p Poly) Scale(a float64) Poly {
	return Poly{C: [4]float64{a * p.C[0], a * p.C[1], a * p.C[2], a * p.C[3]}}
}

// Add returns p + q.
func (p Poly) Add(q Poly) Poly {
	return Poly{C: [4]float64{p.C[0] + q.C[0], p.C[1] + q.C[1], p.C[2] + q.C[2], p.C[3] + q.C[3]}}
}

// Field is a piecewise polynomial over an ordered set of breakpoints
// [0, ..., L]: Segments[k] is valid on [Breakpoints[k], Breakpoints[k+1]]
// as a function of the local offset from Breakpoints[k].
type Field struct {
	Breakpoints []float64
	Segments    []Poly
}

// Builder accumulates contiguous segments in increasing order and
// produces a validated Field.
type Builder struct {
	breakpoints []float64
	segments    []Poly
}

// NewBuilder starts a field builder whose first segment begins at x=0.
func NewBuilder() *Builder {
	return &Builder{breakpoints: []float64{0}}
}

// Add appends a segment spanning from the current rightmost breakpoint
// to end, described by poly (a function of the local offset from the
// current rightmost breakpoint). end must be strictly greater than the
// current rightmost breakpoint.
func (b *Builder) Add(end float64, poly Poly) {
	last := b.breakpoints[len(b.breakpoints)-1]
	if end <= last {
		chk.Panic("field builder: segment end %.6g must exceed previous breakpoint %.6g", end, last)
	}
	b.breakpoints = append(b.breakpoints, end)
	b.segments = append(b.segments, poly)
}

// Build finalizes the field.
func (b *Builder) Build() *Field {
	return &Field{Breakpoints: b.breakpoints, Segments: b.segments}
}

// L returns the field's total span.
func (f *Field) L() float64 {
	return f.Breakpoints[len(f.Breakpoints)-1]
}

// segmentIndex returns the index of the segment that contains x in its
// interior (not exactly on a breakpoint boundary, which callers resolve
// with LeftLimit/RightLimit instead).
func (f *Field) segmentIndex(x float64) int {
	n := len(f.Segments)
	i := sort.Search(n, func(k int) bool { return f.Breakpoints[k+1] > x })
	if i >= n {
		i = n - 1
	}
	return i
}

// Eval returns the field's value at x, 0 ≤ x ≤ L. At an interior
// breakpoint where the field is discontinuous this returns the right
// limit, matching the convention that events are defined to act at the
// start of the segment they introduce.
func (f *Field) Eval(x float64) float64 {
	i := f.segmentIndex(x)
	return f.Segments[i].Eval(x - f.Breakpoints[i])
}

// breakpointIndex returns the index k such that Breakpoints[k] is
// within mergeTol of x, or -1 if x is not (close to) a breakpoint.
func (f *Field) breakpointIndex(x float64) int {
	for k, bp := range f.Breakpoints {
		if abs(bp-x) <= mergeTol {
			return k
		}
	}
	return -1
}

// LeftLimit returns the value approaching x from below. If x is not a
// breakpoint this is identical to Eval(x).
func (f *Field) LeftLimit(x float64) float64 {
	k := f.breakpointIndex(x)
	if k <= 0 {
		return f.Eval(x)
	}
	segLen := f.Breakpoints[k] - f.Breakpoints[k-1]
	return f.Segments[k-1].Eval(segLen)
}

// RightLimit returns the value approaching x from above. If x is not a
// breakpoint this is identical to Eval(x).
func (f *Field) RightLimit(x float64) float64 {
	k := f.breakpointIndex(x)
	if k < 0 || k == len(f.Segments) {
		return f.Eval(x)
	}
	return f.Segments[k].Eval(0)
}

// Resample re-expresses f on a superset grid of breakpoints (every
// point of f.Breakpoints must appear in grid, within mergeTol); each
// new segment reuses the original polynomial for the sub-interval it
// falls within, shifted to the new segment's local origin.
func (f *Field) Resample(grid []float64) *Field {
	out := &Field{Breakpoints: grid, Segments: make([]Poly, len(grid)-1)}
	orig := 0
	for k := 0; k < len(grid)-1; k++ {
		start := grid[k]
		for orig < len(f.Segments)-1 && f.Breakpoints[orig+1] <= start+mergeTol {
			orig++
		}
		offset := start - f.Breakpoints[orig]
		out.Segments[k] = f.Segments[orig].Shift(offset)
	}
	return out
}

// MergeGrids returns the sorted union of breakpoint sets, collapsing
// points within mergeTol of each other.
func MergeGrids(grids ...[]float64) []float64 {
	var all []float64
	for _, g := range grids {
		all = append(all, g...)
	}
	sort.Float64s(all)
	out := all[:0:0]
	for _, x := range all {
		if len(out) == 0 || x-out[len(out)-1] > mergeTol {
			out = append(out, x)
		}
	}
	return out
}

// Combine returns the linear combination Σ coeffs[i]·fields[i] as a
// single exact piecewise-polynomial field, merging every contributing
// field's breakpoints first so the result stays closed-form (no
// premature sampling, per spec.md §9).
func Combine(fields []*Field, coeffs []float64) *Field {
	if len(fields) == 0 {
		chk.Panic("field.Combine: no fields given")
	}
	grids := make([][]float64, len(fields))
	for i, f := range fields {
		grids[i] = f.Breakpoints
	}
	grid := MergeGrids(grids...)
	combined := &Field{Breakpoints: grid, Segments: make([]Poly, len(grid)-1)}
	for i, f := range fields {
		rs := f.Resample(grid)
		for k := range combined.Segments {
			combined.Segments[k] = combined.Segments[k].Add(rs.Segments[k].Scale(coeffs[i]))
		}
	}
	return combined
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
