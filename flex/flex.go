// Package flex implements the Flexibility Integrator (spec.md §4.6):
// assembly of the gh×gh flexibility matrix F and the independent-term
// vector e⁰, by composite Simpson integration over each bar's
// piecewise-polynomial internal-force fields.
package flex

import (
	"math"

	"github.com/cpmech/gosl/utl"

	"github.com/go-structures/forceframe/ferr"
	"github.com/go-structures/forceframe/field"
	"github.com/go-structures/forceframe/isostatic"
	"github.com/go-structures/forceframe/model"
	"github.com/go-structures/forceframe/substructure"
)

// symmetryTol is the §4.6 Maxwell-Betti symmetry check tolerance.
const symmetryTol = 1e-8

// adaptiveRelTol is the relative-agreement tolerance used to decide
// whether doubling a segment's sample count converged.
const adaptiveRelTol = 1e-10

// Options controls integration behaviour; fields mirror the subset of
// engine.Options the integrator consumes (spec.md §6).
type Options struct {
	IncludeAxial  bool
	IncludeShear  bool
	SimpsonPoints int // base samples per segment, odd, >= 5
}

// DefaultOptions returns spec.md §6's documented defaults.
func DefaultOptions() Options {
	return Options{IncludeAxial: true, IncludeShear: false, SimpsonPoints: 21}
}

// Assembly is the flexibility system for one analysis: F, e⁰ and eₕ.
type Assembly struct {
	F  [][]float64
	E0 []float64
	Eh []float64
}

// Assemble builds F, e⁰ and eₕ from the gh isostatic unit-load
// solutions (sols[1:]) against the primary solution (sols[0]), plus
// the model's imposed displacements at redundant locations.
func Assemble(m *model.Model, subs []*substructure.Substructure, sols []*isostatic.Solution, opts Options) (*Assembly, error) {
	gh := len(subs) - 1
	bars := m.Bars()

	f := make([][]float64, gh)
	for i := range f {
		f[i] = make([]float64, gh)
	}
	e0 := make([]float64, gh)

	for i := 1; i <= gh; i++ {
		for j := i; j <= gh; j++ {
			sum := 0.0
			for _, bar := range bars {
				mat := m.Material(bar.Material)
				sec := m.Section(bar.Section)
				v, err := integrate(sols[i].M[bar.ID], sols[j].M[bar.ID], bar.L, opts.SimpsonPoints)
				if err != nil {
					return nil, err
				}
				sum += v / (mat.E * sec.Iz)
				if opts.IncludeAxial {
					v, err := integrate(sols[i].N[bar.ID], sols[j].N[bar.ID], bar.L, opts.SimpsonPoints)
					if err != nil {
						return nil, err
					}
					sum += v / (mat.E * sec.A)
				}
				if opts.IncludeShear {
					const kappa = 5.0 / 6.0 // shear correction factor for a rectangular section
					v, err := integrate(sols[i].V[bar.ID], sols[j].V[bar.ID], bar.L, opts.SimpsonPoints)
					if err != nil {
						return nil, err
					}
					sum += v / (kappa * mat.G() * sec.A)
				}
			}
			f[i-1][j-1] = sum
			f[j-1][i-1] = sum
		}
	}
	addElasticCompliance(m, subs, f)

	for i := 1; i <= gh; i++ {
		sum := 0.0
		for _, bar := range bars {
			mat := m.Material(bar.Material)
			sec := m.Section(bar.Section)
			v, err := integrate(sols[i].M[bar.ID], sols[0].M[bar.ID], bar.L, opts.SimpsonPoints)
			if err != nil {
				return nil, err
			}
			sum += v / (mat.E * sec.Iz)
			if opts.IncludeAxial {
				v, err := integrate(sols[i].N[bar.ID], sols[0].N[bar.ID], bar.L, opts.SimpsonPoints)
				if err != nil {
					return nil, err
				}
				sum += v / (mat.E * sec.A)
			}
			tt, err := thermalTerm(sols[i].N[bar.ID], sols[i].M[bar.ID], bar, mat, sec, m.Loads, opts.SimpsonPoints)
			if err != nil {
				return nil, err
			}
			sum += tt
		}
		sum += externalDisplacementTerm(m, sols, i)
		e0[i-1] = sum
	}
	addRetainedSpringTerms(m, subs, sols, f, e0)

	eh := make([]float64, gh)
	for i := 1; i <= gh; i++ {
		eh[i-1] = redundantImposedDisplacement(m, subs[i].Redundant)
	}

	if err := checkSymmetry(f); err != nil {
		return nil, err
	}
	return &Assembly{F: f, E0: e0, Eh: eh}, nil
}

// Integrate returns ∫₀^L a(x)·b(x) dx, exported for the engine's
// unit-load virtual-work computation of joint displacements, which
// needs the same adaptive composite-Simpson machinery.
func Integrate(a, b *field.Field, l float64, basePoints int) (float64, error) {
	return integrate(a, b, l, basePoints)
}

// integrate returns ∫₀^L a(x)·b(x) dx via composite Simpson on the
// union of a's and b's breakpoints, doubling the sample count on every
// segment until successive estimates agree within adaptiveRelTol
// (spec.md §4.6).
func integrate(a, b *field.Field, l float64, basePoints int) (float64, error) {
	if basePoints < 5 {
		basePoints = 5
	}
	if basePoints%2 == 0 {
		basePoints++
	}
	grid := field.MergeGrids(a.Breakpoints, b.Breakpoints)
	total := 0.0
	for k := 0; k < len(grid)-1; k++ {
		x0, x1 := grid[k], grid[k+1]
		v, err := integrateSegment(a, b, x0, x1, basePoints)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}

// integrateSegment doubles the sample count on [x0,x1] until successive
// estimates agree within adaptiveRelTol, up to 6 doublings. A segment
// that still hasn't converged is an adaptive-Simpson failure (spec.md
// §7), not a silently-accepted approximation.
func integrateSegment(a, b *field.Field, x0, x1 float64, points int) (float64, error) {
	prev := simpson(a, b, x0, x1, points)
	for iter := 0; iter < 6; iter++ {
		points = 2*points - 1
		next := simpson(a, b, x0, x1, points)
		if math.Abs(next-prev) <= adaptiveRelTol*math.Max(1, math.Abs(next)) {
			return next, nil
		}
		prev = next
	}
	return 0, ferr.New(ferr.IntegrationFailure, "", "adaptive Simpson did not converge on [%g, %g] after 6 doublings", x0, x1)
}

func simpson(a, b *field.Field, x0, x1 float64, points int) float64 {
	if points < 3 {
		points = 3
	}
	xs := utl.LinSpace(x0, x1, points)
	h := (x1 - x0) / float64(points-1)
	sum := a.RightLimit(xs[0])*b.RightLimit(xs[0]) + a.LeftLimit(xs[len(xs)-1])*b.LeftLimit(xs[len(xs)-1])
	for i := 1; i < len(xs)-1; i++ {
		w := 4.0
		if i%2 == 0 {
			w = 2.0
		}
		sum += w * a.Eval(xs[i]) * b.Eval(xs[i])
	}
	return sum * h / 3
}

// addElasticCompliance adds 1/k to F[i][i] for every redundant i whose
// unit-load direction coincides with an elastic support's restrained
// direction (spec.md §4.6). Mixed terms between distinct elastic
// supports are left at zero, as specified.
func addElasticCompliance(m *model.Model, subs []*substructure.Substructure, f [][]float64) {
	for i := 1; i < len(subs); i++ {
		r := subs[i].Redundant
		if r == nil || r.Kind != model.ElasticSpringReaction {
			continue
		}
		s := m.SupportAt(r.Joint)
		if s == nil || s.Kind != model.Elastic {
			continue
		}
		k := 0.0
		switch r.Axis {
		case model.AxisTheta:
			k = s.Ktheta
		case model.AxisY:
			k = s.Ky
		case model.AxisX:
			k = s.Kx
		}
		if k > 0 {
			f[i-1][i-1] += 1 / k
		}
	}
}

// addRetainedSpringTerms adds the compliance of every elastic-support
// direction retained in the primary structure: the spring deforms by
// R/k under any load case, so its strain energy couples every pair of
// substructures, F[i][j] += R̄ᵢ·R̄ⱼ/k, and contributes R̄ᵢ·R⁰/k to
// e⁰[i]. A direction released as a redundant carries no support in the
// substructures (its reactions there are identically zero), so these
// terms and the released-diagonal 1/k of addElasticCompliance never
// double-count.
func addRetainedSpringTerms(m *model.Model, subs []*substructure.Substructure, sols []*isostatic.Solution, f [][]float64, e0 []float64) {
	gh := len(subs) - 1
	mask := subs[0].Mask
	for _, s := range m.Supports {
		if s.Kind != model.Elastic {
			continue
		}
		d := mask[s.Joint]
		for axis := 0; axis < 3; axis++ {
			if !d[axis] {
				continue
			}
			k := [3]float64{s.Kx, s.Ky, s.Ktheta}[axis]
			if k <= 0 {
				continue
			}
			r := make([]float64, gh+1)
			for i := 0; i <= gh; i++ {
				rr := sols[i].Reactions[s.Joint]
				r[i] = [3]float64{rr.Rx, rr.Ry, rr.Mz}[axis]
			}
			for i := 1; i <= gh; i++ {
				for j := 1; j <= gh; j++ {
					f[i-1][j-1] += r[i] * r[j] / k
				}
				e0[i-1] += r[i] * r[0] / k
			}
		}
	}
}

// thermalTerm adds the α·ΔT_u·∫Nᵢ dx + (α·ΔT_g/h)·∫Mᵢ dx contribution
// of every thermal load on bar to e⁰[i] (spec.md §4.6).
func thermalTerm(ni, mi *field.Field, bar *model.Bar, mat *model.Material, sec *model.Section, loads []model.Load, points int) (float64, error) {
	sum := 0.0
	for _, l := range loads {
		tl, ok := l.(*model.BarThermalLoad)
		if !ok || tl.Bar != bar.ID {
			continue
		}
		iN, err := integrateSingle(ni, bar.L, points)
		if err != nil {
			return 0, err
		}
		sum += mat.Alpha * tl.DeltaTUniform * iN
		if sec.H > 0 {
			iM, err := integrateSingle(mi, bar.L, points)
			if err != nil {
				return 0, err
			}
			sum += (mat.Alpha * tl.DeltaTGradient / sec.H) * iM
		}
	}
	return sum, nil
}

func integrateSingle(f *field.Field, l float64, points int) (float64, error) {
	one := constantField(l)
	return integrate(f, one, l, points)
}

func constantField(l float64) *field.Field {
	b := field.NewBuilder()
	b.Add(l, field.Poly{C: [4]float64{1, 0, 0, 0}})
	return b.Build()
}

// externalDisplacementTerm adds Σ(−R̄ᵢₖ·δₖ) over imposed displacement
// components that do not coincide with a redundant direction (spec.md
// §4.6), using the reactions the unit-load substructure i produces at
// joint k. No explicit direction filter is needed: a direction released
// as a redundant carries no support in the substructures, so its R̄ᵢₖ
// is identically zero and the component drops out on its own (it enters
// through eₕ instead).
func externalDisplacementTerm(m *model.Model, sols []*isostatic.Solution, i int) float64 {
	sum := 0.0
	for _, l := range m.Loads {
		idl, ok := l.(*model.ImposedDisplacementLoad)
		if !ok {
			continue
		}
		r := sols[i].Reactions[idl.Joint]
		sum += -(r.Rx*idl.Dx + r.Ry*idl.Dy + r.Mz*idl.Dtheta)
	}
	return sum
}

// redundantImposedDisplacement returns δᵢ for eₕ[i] when r's joint has
// a prescribed displacement in r's own direction, or 0 otherwise
// (spec.md §4.6).
func redundantImposedDisplacement(m *model.Model, r *model.Redundant) float64 {
	if r == nil || !r.Kind.IsReaction() {
		return 0
	}
	for _, l := range m.Loads {
		idl, ok := l.(*model.ImposedDisplacementLoad)
		if !ok || idl.Joint != r.Joint {
			continue
		}
		switch r.Kind {
		case model.ReactionRx:
			return idl.Dx
		case model.ReactionRy:
			return idl.Dy
		case model.ReactionMz:
			return idl.Dtheta
		case model.ElasticSpringReaction:
			switch r.Axis {
			case model.AxisX:
				return idl.Dx
			case model.AxisY:
				return idl.Dy
			default:
				return idl.Dtheta
			}
		}
	}
	return 0
}

// checkSymmetry enforces spec.md §4.6's Maxwell-Betti invariant:
// ||F-Fᵀ||∞/||F||∞ < 1e-8, otherwise integration or sign-handling is
// buggy and the engine must abort rather than silently proceed.
func checkSymmetry(f [][]float64) error {
	gh := len(f)
	maxDiff, maxAbs := 0.0, 0.0
	for i := 0; i < gh; i++ {
		for j := 0; j < gh; j++ {
			d := math.Abs(f[i][j] - f[j][i])
			if d > maxDiff {
				maxDiff = d
			}
			if math.Abs(f[i][j]) > maxAbs {
				maxAbs = math.Abs(f[i][j])
			}
		}
	}
	if maxAbs == 0 {
		return nil
	}
	if maxDiff/maxAbs >= symmetryTol {
		return ferr.New(ferr.SymmetryViolation, "", "flexibility matrix is not symmetric within tolerance: ||F-Fᵀ||∞/||F||∞ = %.3e", maxDiff/maxAbs)
	}
	return nil
}
