// Package determinacy implements the Determinacy Analyzer (spec.md
// §4.2): the degree of static indeterminacy gh, and a secondary
// geometric-stability check over the structure's equilibrium matrix.
package determinacy

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/go-structures/forceframe/ferr"
	"github.com/go-structures/forceframe/model"
)

// rankTol is the relative singular-value tolerance used to decide rank
// deficiency of the equilibrium matrix.
const rankTol = 1e-9

// Mask records, per joint id, which of the three global directions
// (Rx, Ry, Mz) are currently restrained. It is the mutable view the
// Redundant Selector probes by clearing one direction at a time while
// searching for an admissible primary structure (spec.md §4.3).
type Mask map[int][3]bool

// Result is the outcome of the determinacy analysis.
type Result struct {
	Gh             int // degree of static indeterminacy
	RestrainedDofs int // r
	ContinuityDofs int // v
	NumJoints      int // n
}

// Analyze computes gh = r + v − 3n (spec.md §4.2) and runs the
// secondary rank-based stability check on the full (unreleased)
// model. It returns a *ferr.Error of kind Hypostatic when gh < 0 or
// the equilibrium matrix is rank-deficient.
func Analyze(m *model.Model) (Result, error) {
	n := m.NumJoints()
	r := restrainedDofs(m)
	v := continuityDofs(m)
	gh := r + v - 3*n

	res := Result{Gh: gh, RestrainedDofs: r, ContinuityDofs: v, NumJoints: n}

	if gh < 0 {
		return res, ferr.New(ferr.Hypostatic, "", "degree of static indeterminacy gh=%d < 0 (deficit of %d restraint(s))", gh, -gh)
	}

	mask := RestraintMask(m)
	rank, rows, cols := EquilibriumRank(m, mask)
	need := rows
	if cols < need {
		need = cols
	}
	if rank < need {
		return res, ferr.New(ferr.Hypostatic, "", "equilibrium matrix rank %d is below the %d required for a stable structure", rank, need)
	}
	return res, nil
}

// restrainedDofs counts r: externally restrained degrees of freedom.
// An elastic support contributes one restrained direction per strictly
// positive stiffness component (spec.md §4.2).
func restrainedDofs(m *model.Model) int {
	r := 0
	for _, s := range m.Supports {
		rx, ry, rz := directions(s)
		if rx {
			r++
		}
		if ry {
			r++
		}
		if rz {
			r++
		}
	}
	return r
}

// continuityDofs counts v: 3 continuity conditions per rigidly
// connected bar, minus 1 per built-in internal hinge (spec.md §9, Open
// Question 1: each internal hinge contributes −1 to gh).
func continuityDofs(m *model.Model) int {
	bars := m.Bars()
	v := 3 * len(bars)
	for _, b := range bars {
		v -= b.HingeCount()
	}
	return v
}

// directions reports which of (Rx, Ry, Mz) a support restrains. Roller
// and Guide axes are snapped to the nearest global axis: a boolean
// mask cannot express a proportionally inclined restraint, and axis
// multiples of pi/2 are the overwhelmingly common case in practice.
// Elastic supports report a direction restrained whenever its
// stiffness is strictly positive, per spec.md §4.2.
func directions(s model.Support) (rx, ry, rz bool) {
	switch s.Kind {
	case model.FixedFull:
		return true, true, true
	case model.Pinned:
		return true, true, false
	case model.Roller:
		return axisDirections(s.RollerAxis)
	case model.Guide:
		ax, ay, _ := axisDirections(s.RollerAxis)
		return ax, ay, true
	case model.Elastic:
		return s.Kx > 0, s.Ky > 0, s.Ktheta > 0
	}
	return false, false, false
}

func axisDirections(axis float64) (rx, ry, rz bool) {
	c, s := math.Cos(axis), math.Sin(axis)
	return math.Abs(c) >= math.Abs(s), math.Abs(s) > math.Abs(c), false
}

// RestraintMask builds the baseline per-joint restraint mask from the
// model's supports.
func RestraintMask(m *model.Model) Mask {
	mask := make(Mask)
	for _, s := range m.Supports {
		rx, ry, rz := directions(s)
		cur := mask[s.Joint]
		mask[s.Joint] = [3]bool{cur[0] || rx, cur[1] || ry, cur[2] || rz}
	}
	return mask
}

// EquilibriumRank assembles the equilibrium matrix implied by mask
// (restrained reaction directions) and the model's bars (each bar end
// contributes an axial, a shear and, unless hinged, a moment unknown),
// with three equilibrium rows per joint and three free-body rows per
// bar, and returns its numerical rank together with its row and column
// counts.
//
// The structure is free of mechanisms iff rank == min(rows, cols):
// rank deficiency relative to cols signals too few/ill-placed
// restraints (a mechanism); rank deficiency relative to rows can only
// happen when cols < rows and signals the same. This is the standard
// full-rank criterion from structural rigidity-matrix theory. Built-in
// internal hinges remove a moment column at the hinged end rather than
// a row, since they are an intentional release, not a missing
// equilibrium equation.
func EquilibriumRank(m *model.Model, mask Mask) (rank, rows, cols int) {
	joints := m.Joints()
	bars := m.Bars()
	jointIndex := make(map[int]int, len(joints))
	for i, j := range joints {
		jointIndex[j.ID] = i
	}
	n := len(joints)

	type col struct {
		joint  int
		cx, cy, cm float64
	}
	var columns []col

	for _, j := range joints {
		d := mask[j.ID]
		jidx := jointIndex[j.ID]
		if d[0] {
			columns = append(columns, col{jidx, 1, 0, 0})
		}
		if d[1] {
			columns = append(columns, col{jidx, 0, 1, 0})
		}
		if d[2] {
			columns = append(columns, col{jidx, 0, 0, 1})
		}
	}

	type entry struct {
		row, col int
		v        float64
	}
	var barEntries []entry
	for bi, b := range bars {
		c, sN := b.CosSin()
		ends := []struct {
			joint  int
			sign   float64
			hinged bool
		}{
			{b.IJoint, 1, b.IHinge},
			{b.JJoint, -1, b.JHinge},
		}
		row := 3*n + 3*bi
		for _, e := range ends {
			jidx := jointIndex[e.joint]
			k := len(columns)
			columns = append(columns,
				col{jidx, e.sign * c, e.sign * sN, 0},
				col{jidx, e.sign * -sN, e.sign * c, 0})
			barEntries = append(barEntries, entry{row, k, -e.sign}, entry{row + 1, k + 1, -e.sign})
			if e.sign < 0 {
				barEntries = append(barEntries, entry{row + 2, k + 1, b.L})
			}
			if !e.hinged {
				barEntries = append(barEntries, entry{row + 2, len(columns), -e.sign})
				columns = append(columns, col{jidx, 0, 0, e.sign})
			}
		}
	}

	cols = len(columns)
	rows = 3*n + 3*len(bars)
	data := make([]float64, rows*cols)
	for j, c := range columns {
		data[(3*c.joint+0)*cols+j] = c.cx
		data[(3*c.joint+1)*cols+j] = c.cy
		data[(3*c.joint+2)*cols+j] = c.cm
	}
	for _, e := range barEntries {
		data[e.row*cols+e.col] = e.v
	}
	if rows == 0 || cols == 0 {
		return 0, rows, cols
	}
	A := mat.NewDense(rows, cols, data)

	var svd mat.SVD
	ok := svd.Factorize(A, mat.SVDNone)
	if !ok {
		return 0, rows, cols
	}
	sv := svd.Values(nil)
	maxSv := 0.0
	for _, s := range sv {
		if s > maxSv {
			maxSv = s
		}
	}
	for _, s := range sv {
		if s > rankTol*maxSv {
			rank++
		}
	}
	return rank, rows, cols
}
