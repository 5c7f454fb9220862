// Package isostatic implements the Isostatic Solver (spec.md §4.5):
// given a determinate substructure it solves for reactions by global
// equilibrium and for internal-force fields by the method of sections.
package isostatic

import (
	"math"
	"sort"
	"strconv"

	"github.com/cpmech/gosl/la"
	"gonum.org/v1/gonum/mat"

	"github.com/go-structures/forceframe/determinacy"
	"github.com/go-structures/forceframe/ferr"
	"github.com/go-structures/forceframe/field"
	"github.com/go-structures/forceframe/model"
	"github.com/go-structures/forceframe/substructure"
)

// condAbort mirrors spec.md §4.5: cond(A) above this indicates a
// geometry error in the assembled equilibrium system, not noisy data.
const condAbort = 1e12

// boundaryTol is the §4.5 tolerance for the x=L section-vs-end-force
// consistency check.
const boundaryTol = 1e-6

// Reaction is one joint's solved support reaction.
type Reaction struct {
	Rx, Ry, Mz float64
}

// Solution is one substructure's isostatic solve.
type Solution struct {
	Reactions map[int]Reaction
	N, V, M   map[int]*field.Field // keyed by bar id
}

// unknown kinds. Reaction unknowns are global; bar unknowns are local
// (N: axial, tension positive; V: shear along local y'; M: bending
// about local z), matching the model's sign convention.
type unknownKind int

const (
	uRx unknownKind = iota
	uRy
	uMz
	uN
	uV
	uM
)

type unknown struct {
	kind  unknownKind
	joint int // valid for uRx/uRy/uMz
	bar   int // valid for uN/uV/uM
	end   int // 0 = i, 1 = j
}

// Solve computes reactions and internal-force fields for sub.
//
// The system stacks three row groups: per-joint equilibrium (ΣFx, ΣFy,
// ΣMz), per-bar free-body equilibrium in the bar's local frame, and one
// release-condition row per internal release prescribing the section
// value at the cut: zero everywhere, one in the substructure whose own
// redundant the cut is (the equal-and-opposite unit pair of spec.md
// §4.4 enters the statics as exactly this prescribed unit section
// value). Squareness of the resulting matrix is the determinacy of the
// substructure; a non-square system means the redundant selection was
// wrong.
func Solve(m *model.Model, sub *substructure.Substructure) (*Solution, error) {
	joints := m.Joints()
	bars := m.Bars()
	jointIndex := make(map[int]int, len(joints))
	for i, j := range joints {
		jointIndex[j.ID] = i
	}

	unknowns := buildUnknowns(joints, sub.Mask, bars)
	n := len(joints)
	bm := len(bars)
	rows := 3*n + 3*bm + len(sub.Releases)
	cols := len(unknowns)
	if rows != cols {
		return nil, ferr.New(ferr.Unstable, "", "isostatic system is not square (rows=%d, cols=%d); redundant selection left the substructure indeterminate or unstable", rows, cols)
	}

	unknownIndex := make(map[unknown]int, len(unknowns))
	for k, u := range unknowns {
		unknownIndex[u] = k
	}

	a := mat.NewDense(rows, cols, nil)
	b := mat.NewVecDense(rows, nil)

	for _, u := range unknowns {
		k := unknownIndex[u]
		row := 3 * jointIndex[u.joint]
		switch u.kind {
		case uRx:
			a.Set(row+0, k, 1)
		case uRy:
			a.Set(row+1, k, 1)
		case uMz:
			a.Set(row+2, k, 1)
		}
	}
	for _, bar := range bars {
		iRow := 3 * jointIndex[bar.IJoint]
		jRow := 3 * jointIndex[bar.JJoint]
		addBarEndToJoint(a, unknownIndex, bar, 0, iRow)
		addBarEndToJoint(a, unknownIndex, bar, 1, jRow)
	}
	for _, l := range sub.Loads {
		if jl, ok := l.(*model.JointPointLoad); ok {
			row := 3 * jointIndex[jl.Joint]
			b.SetVec(row+0, b.AtVec(row+0)-jl.Fx)
			b.SetVec(row+1, b.AtVec(row+1)-jl.Fy)
			b.SetVec(row+2, b.AtVec(row+2)-jl.Mz)
		}
	}

	barRowBase := 3 * n
	for bi, bar := range bars {
		res := computeResultant(bar, sub.Loads)
		row := barRowBase + 3*bi

		nI := unknownIndex[unknown{kind: uN, bar: bar.ID, end: 0}]
		nJ := unknownIndex[unknown{kind: uN, bar: bar.ID, end: 1}]
		vI := unknownIndex[unknown{kind: uV, bar: bar.ID, end: 0}]
		vJ := unknownIndex[unknown{kind: uV, bar: bar.ID, end: 1}]
		a.Set(row+0, nI, a.At(row+0, nI)+1)
		a.Set(row+0, nJ, a.At(row+0, nJ)+1)
		a.Set(row+1, vI, a.At(row+1, vI)+1)
		a.Set(row+1, vJ, a.At(row+1, vJ)+1)

		if mi, ok := unknownIndex[unknown{kind: uM, bar: bar.ID, end: 0}]; ok {
			a.Set(row+2, mi, a.At(row+2, mi)+1)
		}
		if mj, ok := unknownIndex[unknown{kind: uM, bar: bar.ID, end: 1}]; ok {
			a.Set(row+2, mj, a.At(row+2, mj)+1)
		}
		a.Set(row+2, vJ, a.At(row+2, vJ)-bar.L)

		b.SetVec(row+0, b.AtVec(row+0)-res.Fx)
		b.SetVec(row+1, b.AtVec(row+1)-res.Fy)
		b.SetVec(row+2, b.AtVec(row+2)-res.M)
	}

	releaseRowBase := 3*n + 3*bm
	for ri, rel := range sub.Releases {
		bar := findBar(bars, rel.Bar)
		if bar == nil {
			return nil, ferr.New(ferr.Unstable, barEntity(rel.Bar), "internal release references non-existent bar")
		}
		if err := addReleaseRow(a, b, unknownIndex, bar, rel, sub, releaseRowBase+ri); err != nil {
			return nil, err
		}
	}

	cond := mat.Cond(a, 2)
	if math.IsInf(cond, 1) || cond > condAbort {
		return nil, ferr.New(ferr.Hypostatic, "", "isostatic equilibrium matrix is singular or ill-conditioned (cond=%.3e)", cond)
	}
	var lu mat.LU
	lu.Factorize(a)
	var x mat.VecDense
	if err := lu.SolveVecTo(&x, false, b); err != nil {
		return nil, ferr.Wrap(ferr.Hypostatic, "", err, "failed to solve isostatic equilibrium system")
	}

	sol := &Solution{
		Reactions: make(map[int]Reaction),
		N:         make(map[int]*field.Field),
		V:         make(map[int]*field.Field),
		M:         make(map[int]*field.Field),
	}
	for _, j := range joints {
		r := Reaction{}
		if k, ok := unknownIndex[unknown{kind: uRx, joint: j.ID}]; ok {
			r.Rx = x.AtVec(k)
		}
		if k, ok := unknownIndex[unknown{kind: uRy, joint: j.ID}]; ok {
			r.Ry = x.AtVec(k)
		}
		if k, ok := unknownIndex[unknown{kind: uMz, joint: j.ID}]; ok {
			r.Mz = x.AtVec(k)
		}
		sol.Reactions[j.ID] = r
	}

	for _, bar := range bars {
		ni := x.AtVec(unknownIndex[unknown{kind: uN, bar: bar.ID, end: 0}])
		vi := x.AtVec(unknownIndex[unknown{kind: uV, bar: bar.ID, end: 0}])
		mi := 0.0
		if k, ok := unknownIndex[unknown{kind: uM, bar: bar.ID, end: 0}]; ok {
			mi = x.AtVec(k)
		}
		nf, vf, mf := buildFields(bar, sub.Loads, ni, vi, mi)

		nj := x.AtVec(unknownIndex[unknown{kind: uN, bar: bar.ID, end: 1}])
		vj := x.AtVec(unknownIndex[unknown{kind: uV, bar: bar.ID, end: 1}])
		mj := 0.0
		if k, ok := unknownIndex[unknown{kind: uM, bar: bar.ID, end: 1}]; ok {
			mj = x.AtVec(k)
		}
		if math.Abs(nf.Eval(bar.L)+nj) > boundaryTol || math.Abs(vf.Eval(bar.L)+vj) > boundaryTol || math.Abs(mf.Eval(bar.L)+mj) > boundaryTol {
			return nil, ferr.New(ferr.EquilibriumViolation, barEntity(bar.ID), "section field at x=L does not match the negative of the j-end action")
		}

		sol.N[bar.ID] = nf
		sol.V[bar.ID] = vf
		sol.M[bar.ID] = mf
	}

	return sol, nil
}

// addReleaseRow appends the release-condition row for one internal
// release: the section value at the cut, written as a linear function
// of the bar's i-end unknowns plus the load terms accumulated over
// [0, X], must equal 0 — or 1 in the substructure whose own redundant
// this cut is, where the unit pair acts.
//
// Section values at X as functions of the i-end unknowns (left-segment
// equilibrium, same convention as buildFields):
//
//	N(X) = ni + Σ_{a<X} Fx'(a) + ∫₀^X qx(t) dt
//	V(X) = vi + Σ_{a<X} Fy'(a) + ∫₀^X qy(t) dt
//	M(X) = mi + vi·X + Σ_{a<X} Fy'(a)·(X−a) + ∫₀^X qy(t)·(X−t) dt
func addReleaseRow(a *mat.Dense, b *mat.VecDense, idx map[unknown]int, bar *model.Bar, rel substructure.Release, sub *substructure.Substructure, row int) error {
	x := clamp(rel.X, bar.L)
	qx1, qy1, qx2, qy2 := barLineLoads(bar, sub.Loads)
	sx := safeDiv(qx2-qx1, bar.L)
	sy := safeDiv(qy2-qy1, bar.L)

	rhs := 0.0
	if r := sub.Redundant; r != nil && !r.Kind.IsReaction() && r.Kind == rel.Kind && r.Bar == rel.Bar && math.Abs(r.X-rel.X) <= 1e-9 {
		rhs = 1
	}

	var pointFx, pointFy, pointM float64
	for _, l := range sub.Loads {
		bp, ok := l.(*model.BarPointLoad)
		if !ok || bp.Bar != bar.ID || bp.A >= x {
			continue
		}
		fx, fy := bp.P*math.Cos(bp.Angle), bp.P*math.Sin(bp.Angle)
		pointFx += fx
		pointFy += fy
		pointM += fy * (x - bp.A)
	}

	switch rel.Kind {
	case model.InternalAxialRelease:
		k, ok := idx[unknown{kind: uN, bar: bar.ID, end: 0}]
		if !ok {
			return ferr.New(ferr.Unstable, barEntity(bar.ID), "axial release has no axial unknown to constrain")
		}
		a.Set(row, k, 1)
		b.SetVec(row, rhs-pointFx-qx1*x-sx*x*x/2)
	case model.InternalShearRelease:
		k, ok := idx[unknown{kind: uV, bar: bar.ID, end: 0}]
		if !ok {
			return ferr.New(ferr.Unstable, barEntity(bar.ID), "shear release has no shear unknown to constrain")
		}
		a.Set(row, k, 1)
		b.SetVec(row, rhs-pointFy-qy1*x-sy*x*x/2)
	default: // InternalMomentRelease
		kv, ok := idx[unknown{kind: uV, bar: bar.ID, end: 0}]
		if !ok {
			return ferr.New(ferr.Unstable, barEntity(bar.ID), "moment release has no shear unknown to constrain")
		}
		a.Set(row, kv, x)
		if km, ok := idx[unknown{kind: uM, bar: bar.ID, end: 0}]; ok {
			a.Set(row, km, 1)
		}
		b.SetVec(row, rhs-pointM-qy1*x*x/2-sy*x*x*x/6)
	}
	return nil
}

// addBarEndToJoint adds the joint-equilibrium contribution of one bar
// end's (N,V) unknowns, rotated from local to global via the bar's
// RotationMatrix with la.MatVecMul, the same transform the teacher's
// e_beam.go uses to rotate a local element quantity into the global
// frame. The force the bar exerts on the joint is the negative of the
// end force the joint exerts on the bar.
func addBarEndToJoint(a *mat.Dense, idx map[unknown]int, bar *model.Bar, end int, row int) {
	r := bar.RotationMatrix()
	globalN := make([]float64, 3)
	globalV := make([]float64, 3)
	la.MatVecMul(globalN, 1, r, []float64{1, 0, 0})
	la.MatVecMul(globalV, 1, r, []float64{0, 1, 0})

	n := idx[unknown{kind: uN, bar: bar.ID, end: end}]
	v := idx[unknown{kind: uV, bar: bar.ID, end: end}]
	a.Set(row+0, n, a.At(row+0, n)-globalN[0])
	a.Set(row+0, v, a.At(row+0, v)-globalV[0])
	a.Set(row+1, n, a.At(row+1, n)-globalN[1])
	a.Set(row+1, v, a.At(row+1, v)-globalV[1])
	if m, ok := idx[unknown{kind: uM, bar: bar.ID, end: end}]; ok {
		a.Set(row+2, m, a.At(row+2, m)-1)
	}
}

// buildUnknowns lists the system's unknowns: retained reaction
// directions per joint, then per bar an axial, a shear and, unless the
// end carries a built-in hinge, a moment unknown at each end. Internal
// releases introduced by redundants never remove an unknown; they add a
// release-condition row instead.
func buildUnknowns(joints []*model.Joint, mask determinacy.Mask, bars []*model.Bar) []unknown {
	var out []unknown
	for _, j := range joints {
		d := mask[j.ID]
		if d[0] {
			out = append(out, unknown{kind: uRx, joint: j.ID})
		}
		if d[1] {
			out = append(out, unknown{kind: uRy, joint: j.ID})
		}
		if d[2] {
			out = append(out, unknown{kind: uMz, joint: j.ID})
		}
	}
	for _, bar := range bars {
		out = append(out, unknown{kind: uN, bar: bar.ID, end: 0})
		out = append(out, unknown{kind: uV, bar: bar.ID, end: 0})
		if !bar.IHinge {
			out = append(out, unknown{kind: uM, bar: bar.ID, end: 0})
		}
		out = append(out, unknown{kind: uN, bar: bar.ID, end: 1})
		out = append(out, unknown{kind: uV, bar: bar.ID, end: 1})
		if !bar.JHinge {
			out = append(out, unknown{kind: uM, bar: bar.ID, end: 1})
		}
	}
	return out
}

func findBar(bars []*model.Bar, id int) *model.Bar {
	for _, b := range bars {
		if b.ID == id {
			return b
		}
	}
	return nil
}

type barResultant struct {
	Fx, Fy, M float64 // local components and moment about the i-end
}

// computeResultant returns the net local-frame force and moment (about
// the i-end) that every load on bar contributes to the bar's own
// free-body equilibrium. Thermal loads contribute no net force.
func computeResultant(bar *model.Bar, loads []model.Load) barResultant {
	var r barResultant
	for _, l := range loads {
		switch v := l.(type) {
		case *model.BarPointLoad:
			if v.Bar != bar.ID {
				continue
			}
			fx, fy := v.P*math.Cos(v.Angle), v.P*math.Sin(v.Angle)
			r.Fx += fx
			r.Fy += fy
			r.M += -fy * v.A
		case *model.BarDistributedLoad:
			if v.Bar != bar.ID {
				continue
			}
			total := (v.Q1 + v.Q2) / 2 * bar.L
			xc := bar.L / 2
			if math.Abs(v.Q1+v.Q2) > 1e-12 {
				xc = bar.L * (v.Q1 + 2*v.Q2) / (3 * (v.Q1 + v.Q2))
			}
			fx, fy := total*math.Cos(v.Angle), total*math.Sin(v.Angle)
			r.Fx += fx
			r.Fy += fy
			r.M += -fy * xc
		}
	}
	return r
}

// barLineLoads sums every distributed load on bar into one linearly
// varying local intensity: (qx1, qy1) at the i-end, (qx2, qy2) at the
// j-end.
func barLineLoads(bar *model.Bar, loads []model.Load) (qx1, qy1, qx2, qy2 float64) {
	for _, l := range loads {
		if bd, ok := l.(*model.BarDistributedLoad); ok && bd.Bar == bar.ID {
			qx1 += bd.Q1 * math.Cos(bd.Angle)
			qy1 += bd.Q1 * math.Sin(bd.Angle)
			qx2 += bd.Q2 * math.Cos(bd.Angle)
			qy2 += bd.Q2 * math.Sin(bd.Angle)
		}
	}
	return
}

// buildFields constructs N(x), V(x), M(x) for a bar from its solved
// i-end unknowns and applied loads, via the method of sections. The
// section value at x is the action the left part transmits to the
// right part, so N(0)=ni, V(0)=vi, M(0)=mi and at the far end
// N(L)=-nj, V(L)=-vj, M(L)=-mj. Left-segment equilibrium gives the
// recurrences dN/dt = qx(t), dV/dt = qy(t), dM/dt = V(t); a point
// force at a introduces a jump of +Fx'/+Fy' in N/V there. Internal
// releases never appear here: the fields of a released substructure
// are continuous through the cut, with the prescribed section value
// enforced by the release-condition row of the solve.
func buildFields(bar *model.Bar, loads []model.Load, ni, vi, mi float64) (*field.Field, *field.Field, *field.Field) {
	evX := map[float64]bool{0: true, bar.L: true}
	for _, l := range loads {
		if bp, ok := l.(*model.BarPointLoad); ok && bp.Bar == bar.ID {
			evX[clamp(bp.A, bar.L)] = true
		}
	}
	xs := make([]float64, 0, len(evX))
	for x := range evX {
		xs = append(xs, x)
	}
	sort.Float64s(xs)

	qx1, qy1, qx2, qy2 := barLineLoads(bar, loads)

	nb, vb, mb := field.NewBuilder(), field.NewBuilder(), field.NewBuilder()
	curN, curV, curM := ni, vi, mi

	for k := 0; k < len(xs)-1; k++ {
		x0, x1 := xs[k], xs[k+1]
		if x0 > 0 {
			for _, l := range loads {
				if bp, ok := l.(*model.BarPointLoad); ok && bp.Bar == bar.ID && math.Abs(bp.A-x0) <= 1e-9 {
					fx, fy := bp.P*math.Cos(bp.Angle), bp.P*math.Sin(bp.Angle)
					curN += fx
					curV += fy
				}
			}
		}

		ls := x1 - x0
		localQx1 := qx1 + (qx2-qx1)*x0/bar.L
		localQx2 := qx1 + (qx2-qx1)*x1/bar.L
		localQy1 := qy1 + (qy2-qy1)*x0/bar.L
		localQy2 := qy1 + (qy2-qy1)*x1/bar.L
		dqx := localQx2 - localQx1
		dqy := localQy2 - localQy1

		nPoly := field.Poly{C: [4]float64{curN, localQx1, safeDiv(dqx, 2*ls), 0}}
		vPoly := field.Poly{C: [4]float64{curV, localQy1, safeDiv(dqy, 2*ls), 0}}
		mPoly := field.Poly{C: [4]float64{curM, curV, localQy1 / 2, safeDiv(dqy, 6*ls)}}

		nb.Add(x1, nPoly)
		vb.Add(x1, vPoly)
		mb.Add(x1, mPoly)

		curN = nPoly.Eval(ls)
		curV = vPoly.Eval(ls)
		curM = mPoly.Eval(ls)
	}

	return nb.Build(), vb.Build(), mb.Build()
}

func clamp(x, l float64) float64 {
	if x < 0 {
		return 0
	}
	if x > l {
		return l
	}
	return x
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func barEntity(id int) string {
	return "bar " + strconv.Itoa(id)
}
