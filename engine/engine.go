// Package engine implements the Force-Method engine's single entry
// point, Analyze (spec.md §6): it drives the Determinacy Analyzer,
// Redundant Selector, Substructure Generator, Isostatic Solver,
// Flexibility Integrator and Compatibility Solver, then superposes and
// verifies the result.
package engine

import (
	"math"

	"github.com/cpmech/gosl/io"

	"github.com/go-structures/forceframe/compat"
	"github.com/go-structures/forceframe/determinacy"
	"github.com/go-structures/forceframe/ferr"
	"github.com/go-structures/forceframe/field"
	"github.com/go-structures/forceframe/flex"
	"github.com/go-structures/forceframe/isostatic"
	"github.com/go-structures/forceframe/model"
	"github.com/go-structures/forceframe/redundant"
	"github.com/go-structures/forceframe/substructure"
)

// equilibriumTol is the §4.8 / §8 global-verification tolerance.
const equilibriumTol = 1e-6

// Options recognizes the fields of spec.md §6, plus the cooperative
// progress/cancellation hooks of spec.md §5.
type Options struct {
	IncludeAxial     bool
	IncludeShear     bool
	ManualRedundants []model.Redundant
	SimpsonPoints    int
	Solver           compat.Solver
	Verbose          bool // emits progress lines via gosl/io, mirroring the teacher's solver logging

	// Progress, when non-nil, is called after each major pipeline stage
	// with the stage name and a monotonically increasing fraction in
	// (0, 1].
	Progress func(stage string, frac float64)
	// Cancel, when non-nil, is polled at stage boundaries; returning
	// true aborts the analysis with a Canceled error and no partial
	// results.
	Cancel func() bool
}

// DefaultOptions returns spec.md §6's documented defaults.
func DefaultOptions() Options {
	return Options{
		IncludeAxial:  true,
		IncludeShear:  false,
		SimpsonPoints: 21,
		Solver:        compat.Cholesky,
	}
}

// Diagnostics mirrors spec.md §6's result diagnostics block.
type Diagnostics struct {
	ConditionF    float64
	Residual      float64
	EquilibriumFx float64
	EquilibriumFy float64
	EquilibriumMz float64
	Warnings      []string
}

// Result is the serializable outcome of one analysis (spec.md §6).
type Result struct {
	Gh                 int
	Redundants         []model.Redundant
	X                  []float64
	Reactions          map[int]isostatic.Reaction
	BarFields          map[int]BarField
	JointDisplacements map[int]Displacement
	Diagnostics        Diagnostics
}

// BarField carries one bar's superposed internal-force fields.
type BarField struct {
	N, V, M *field.Field
}

// Displacement is a joint's translational and rotational displacement.
type Displacement struct {
	Ux, Uy, Theta float64
}

// Analyze runs the full pipeline of spec.md §2 on m with opts.
func Analyze(m *model.Model, opts Options) (*Result, error) {
	if opts.SimpsonPoints == 0 {
		opts.SimpsonPoints = 21
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := stageDone(opts, "validate", 0.05); err != nil {
		return nil, err
	}

	det, err := determinacy.Analyze(m)
	if err != nil {
		return nil, err
	}
	if opts.Verbose {
		io.Pf("engine: gh=%d (r=%d v=%d n=%d)\n", det.Gh, det.RestrainedDofs, det.ContinuityDofs, det.NumJoints)
	}
	if err := stageDone(opts, "determinacy", 0.15); err != nil {
		return nil, err
	}

	redundants, err := redundant.Select(m, det.Gh, opts.ManualRedundants)
	if err != nil {
		return nil, err
	}
	if err := stageDone(opts, "redundant selection", 0.25); err != nil {
		return nil, err
	}

	subs := substructure.Generate(m, redundants)
	if err := stageDone(opts, "substructures", 0.35); err != nil {
		return nil, err
	}
	sols := make([]*isostatic.Solution, len(subs))
	for i, sub := range subs {
		sol, err := isostatic.Solve(m, sub)
		if err != nil {
			return nil, err
		}
		sols[i] = sol
	}
	if err := stageDone(opts, "isostatic solves", 0.55); err != nil {
		return nil, err
	}

	flexOpts := flex.Options{IncludeAxial: opts.IncludeAxial, IncludeShear: opts.IncludeShear, SimpsonPoints: opts.SimpsonPoints}

	var x []float64
	var diag Diagnostics
	if det.Gh > 0 {
		asm, err := flex.Assemble(m, subs, sols, flexOpts)
		if err != nil {
			return nil, err
		}
		cs, err := compat.Solve(asm.F, asm.Eh, asm.E0, opts.Solver)
		if err != nil {
			return nil, err
		}
		x = cs.X
		diag.ConditionF = cs.Cond
		diag.Residual = cs.Residual
		diag.Warnings = append(diag.Warnings, cs.Warnings...)
	}
	if err := stageDone(opts, "compatibility", 0.75); err != nil {
		return nil, err
	}

	coeffs := append([]float64{1}, x...)

	reactions := make(map[int]isostatic.Reaction)
	for _, j := range m.Joints() {
		r := isostatic.Reaction{}
		for i, sol := range sols {
			c := coeffs[i]
			rr := sol.Reactions[j.ID]
			r.Rx += c * rr.Rx
			r.Ry += c * rr.Ry
			r.Mz += c * rr.Mz
		}
		reactions[j.ID] = r
	}
	// a released reaction direction carries no support in any
	// substructure; its final reaction is the redundant value itself.
	for i, r := range redundants {
		if !r.Kind.IsReaction() {
			continue
		}
		rr := reactions[r.Joint]
		switch r.Kind {
		case model.ReactionRx:
			rr.Rx += x[i]
		case model.ReactionRy:
			rr.Ry += x[i]
		case model.ReactionMz:
			rr.Mz += x[i]
		case model.ElasticSpringReaction:
			switch r.Axis {
			case model.AxisX:
				rr.Rx += x[i]
			case model.AxisY:
				rr.Ry += x[i]
			default:
				rr.Mz += x[i]
			}
		}
		reactions[r.Joint] = rr
	}

	barFields := make(map[int]BarField)
	for _, bar := range m.Bars() {
		nFields := make([]*field.Field, len(sols))
		vFields := make([]*field.Field, len(sols))
		mFields := make([]*field.Field, len(sols))
		for i, sol := range sols {
			nFields[i] = sol.N[bar.ID]
			vFields[i] = sol.V[bar.ID]
			mFields[i] = sol.M[bar.ID]
		}
		barFields[bar.ID] = BarField{
			N: field.Combine(nFields, coeffs),
			V: field.Combine(vFields, coeffs),
			M: field.Combine(mFields, coeffs),
		}
	}

	disp, err := jointDisplacements(m, subs[0], barFields, reactions, flexOpts)
	if err != nil {
		return nil, err
	}

	if err := verifyEquilibrium(m, reactions, &diag); err != nil {
		return nil, err
	}
	if err := stageDone(opts, "superposition and verification", 1.0); err != nil {
		return nil, err
	}

	return &Result{
		Gh:                 det.Gh,
		Redundants:         redundants,
		X:                  x,
		Reactions:          reactions,
		BarFields:          barFields,
		JointDisplacements: disp,
		Diagnostics:        diag,
	}, nil
}

// stageDone reports one finished pipeline stage and polls the
// cooperative cancellation flag (spec.md §5). Cancellation aborts with
// no partial results.
func stageDone(opts Options, stage string, frac float64) error {
	if opts.Progress != nil {
		opts.Progress(stage, frac)
	}
	if opts.Verbose {
		io.Pf("engine: %s done (%.0f%%)\n", stage, 100*frac)
	}
	if opts.Cancel != nil && opts.Cancel() {
		return ferr.New(ferr.Canceled, "", "analysis canceled after stage %q", stage)
	}
	return nil
}

// jointDisplacements computes (Ux, Uy, θz) at every joint by the unit-
// load method: apply a unit load at the joint DOF to the primary
// structure (same restraint/release pattern, zero other loads) and
// take the virtual work of its fields against the final superposed
// fields (spec.md §4.8's "Deflected shape" note, generalized from bars
// to joints). Support movements of the real structure — imposed
// displacements and elastic-spring deformations δ = −R/k — do
// rigid-body work on the unit system through its reactions, entering
// as −Σ R̄·Δ. The unit load applied directly at a retained support
// direction reduces to R̄ = −1 there, so an elastic support's own
// settlement −R/k falls out of the same term (spec.md §4.8).
func jointDisplacements(m *model.Model, primary *substructure.Substructure, final map[int]BarField, reactions map[int]isostatic.Reaction, opts flex.Options) (map[int]Displacement, error) {
	out := make(map[int]Displacement)
	bars := m.Bars()
	for _, j := range m.Joints() {
		d := Displacement{}
		for axis := 0; axis < 3; axis++ {
			unit := &model.JointPointLoad{Joint: j.ID}
			switch axis {
			case 0:
				unit.Fx = 1
			case 1:
				unit.Fy = 1
			case 2:
				unit.Mz = 1
			}
			unitSub := &substructure.Substructure{Mask: primary.Mask, Releases: primary.Releases, Loads: []model.Load{unit}}
			sol, err := isostatic.Solve(m, unitSub)
			if err != nil {
				return nil, ferr.Wrap(ferr.EquilibriumViolation, "", err, "unit-load solve failed while computing joint %d displacement", j.ID)
			}
			val := 0.0
			for _, bar := range bars {
				mat := m.Material(bar.Material)
				sec := m.Section(bar.Section)
				bf := final[bar.ID]
				iM, err := flex.Integrate(sol.M[bar.ID], bf.M, bar.L, opts.SimpsonPoints)
				if err != nil {
					return nil, ferr.Wrap(ferr.IntegrationFailure, "", err, "virtual-work integration failed while computing joint %d displacement", j.ID)
				}
				val += iM / (mat.E * sec.Iz)
				if opts.IncludeAxial {
					iN, err := flex.Integrate(sol.N[bar.ID], bf.N, bar.L, opts.SimpsonPoints)
					if err != nil {
						return nil, ferr.Wrap(ferr.IntegrationFailure, "", err, "virtual-work integration failed while computing joint %d displacement", j.ID)
					}
					val += iN / (mat.E * sec.A)
				}
			}
			val += supportMovementWork(m, primary, sol, reactions)
			switch axis {
			case 0:
				d.Ux = val
			case 1:
				d.Uy = val
			case 2:
				d.Theta = val
			}
		}
		out[j.ID] = d
	}
	return out, nil
}

// supportMovementWork returns −Σ R̄·Δ: the work of the unit system's
// reactions through the real structure's support movements (imposed
// displacements, elastic-spring deformations −R/k). Directions released
// as redundants carry no reaction in the unit system and drop out on
// their own.
func supportMovementWork(m *model.Model, primary *substructure.Substructure, sol *isostatic.Solution, reactions map[int]isostatic.Reaction) float64 {
	sum := 0.0
	for _, l := range m.Loads {
		idl, ok := l.(*model.ImposedDisplacementLoad)
		if !ok {
			continue
		}
		r := sol.Reactions[idl.Joint]
		sum += -(r.Rx*idl.Dx + r.Ry*idl.Dy + r.Mz*idl.Dtheta)
	}
	for _, s := range m.Supports {
		if s.Kind != model.Elastic {
			continue
		}
		d := primary.Mask[s.Joint]
		rBar := sol.Reactions[s.Joint]
		rReal := reactions[s.Joint]
		if s.Kx > 0 && d[0] {
			sum += -rBar.Rx * (-rReal.Rx / s.Kx)
		}
		if s.Ky > 0 && d[1] {
			sum += -rBar.Ry * (-rReal.Ry / s.Ky)
		}
		if s.Ktheta > 0 && d[2] {
			sum += -rBar.Mz * (-rReal.Mz / s.Ktheta)
		}
	}
	return sum
}

// verifyEquilibrium checks spec.md §4.8 / §8's universal invariant:
// external loads plus reactions sum to zero in every global direction
// and in moment about the origin.
func verifyEquilibrium(m *model.Model, reactions map[int]isostatic.Reaction, diag *Diagnostics) error {
	var fx, fy, mz float64
	for _, j := range m.Joints() {
		r := reactions[j.ID]
		fx += r.Rx
		fy += r.Ry
		mz += r.Mz + momentAbout(r.Rx, r.Ry, j.X, j.Y)
	}
	for _, l := range m.Loads {
		switch v := l.(type) {
		case *model.JointPointLoad:
			j := m.Joint(v.Joint)
			fx += v.Fx
			fy += v.Fy
			mz += v.Mz + momentAbout(v.Fx, v.Fy, j.X, j.Y)
		case *model.BarPointLoad:
			bar := m.Bar(v.Bar)
			gx, gy := pointAtBar(m, bar, v.A)
			galpha := bar.LocalToGlobalAngle(v.Angle)
			gfx, gfy := v.P*math.Cos(galpha), v.P*math.Sin(galpha)
			fx += gfx
			fy += gfy
			mz += momentAbout(gfx, gfy, gx, gy)
		case *model.BarDistributedLoad:
			bar := m.Bar(v.Bar)
			total := (v.Q1 + v.Q2) / 2 * bar.L
			xc := bar.L / 2
			if math.Abs(v.Q1+v.Q2) > 1e-12 {
				xc = bar.L * (v.Q1 + 2*v.Q2) / (3 * (v.Q1 + v.Q2))
			}
			gx, gy := pointAtBar(m, bar, xc)
			galpha := bar.LocalToGlobalAngle(v.Angle)
			gfx, gfy := total*math.Cos(galpha), total*math.Sin(galpha)
			fx += gfx
			fy += gfy
			mz += momentAbout(gfx, gfy, gx, gy)
		}
	}
	diag.EquilibriumFx, diag.EquilibriumFy, diag.EquilibriumMz = fx, fy, mz
	if math.Abs(fx) > equilibriumTol || math.Abs(fy) > equilibriumTol || math.Abs(mz) > equilibriumTol {
		return ferr.New(ferr.EquilibriumViolation, "", "global equilibrium residual (%.3e, %.3e, %.3e) exceeds tolerance %.0e", fx, fy, mz, equilibriumTol)
	}
	return nil
}

func pointAtBar(m *model.Model, bar *model.Bar, a float64) (x, y float64) {
	i := m.Joint(bar.IJoint)
	c, s := bar.CosSin()
	return i.X + a*c, i.Y + a*s
}

// momentAbout returns the moment of force (fx, fy) applied at (x, y)
// about the global origin, using the fixed rule M = -Fy·x + Fx·y
// (spec.md §4.5), consistent with Y+ down / clockwise+.
func momentAbout(fx, fy, x, y float64) float64 {
	return -fy*x + fx*y
}
