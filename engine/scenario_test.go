package engine

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/go-structures/forceframe/model"
)

// the section used across the fixed scenarios: E=200e6 kN/m²,
// Iz=2.772e-5 m⁴.
func scenarioBeam(l float64) *model.Model {
	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, l, 0)
	m.AddMaterial(1, 200e6, 1.2e-5, 0.3)
	m.AddSection(1, 0.01, 2.772e-5, 0.2)
	m.AddBar(1, 1, 2, 1, 1)
	return m
}

func Test_scenarioFixedFixedMidspanPointLoad(tst *testing.T) {

	chk.PrintTitle("scenarioFixedFixedMidspanPointLoad. end moments PL/8")

	m := scenarioBeam(6)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 2, Kind: model.FixedFull})
	m.AddLoad(&model.BarPointLoad{Bar: 1, P: 10, A: 3, Angle: math.Pi / 2})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	chk.Scalar(tst, "gh", 0, float64(res.Gh), 3)

	bf := res.BarFields[1]
	chk.Scalar(tst, "M(0) = +PL/8", 1e-6, bf.M.Eval(0), 7.5)
	chk.Scalar(tst, "M(3) = -PL/8", 1e-6, bf.M.Eval(3), -7.5)
	chk.Scalar(tst, "M(6) = +PL/8", 1e-6, bf.M.Eval(6), 7.5)
	chk.Scalar(tst, "|V| jump across the load equals P", 1e-6, bf.V.RightLimit(3)-bf.V.LeftLimit(3), 10)
	chk.Scalar(tst, "|V(3-)| = P/2", 1e-6, math.Abs(bf.V.LeftLimit(3)), 5)

	r1, r2 := res.Reactions[1], res.Reactions[2]
	chk.Scalar(tst, "Ry(i) balances half the load", 1e-6, r1.Ry, -5)
	chk.Scalar(tst, "Ry(j) balances half the load", 1e-6, r2.Ry, -5)
	chk.Scalar(tst, "Mz(i)", 1e-6, r1.Mz, 7.5)
	chk.Scalar(tst, "Mz(j)", 1e-6, r2.Mz, -7.5)
}

func Test_scenarioPortalSwayLoad(tst *testing.T) {

	chk.PrintTitle("scenarioPortalSwayLoad. base reactions carry the shear")

	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 0, -4)
	m.AddJoint(3, 6, -4)
	m.AddJoint(4, 6, 0)
	m.AddMaterial(1, 200e6, 1.2e-5, 0.3)
	m.AddSection(1, 0.01, 2.772e-5, 0.2)
	m.AddBar(1, 1, 2, 1, 1)
	m.AddBar(2, 2, 3, 1, 1)
	m.AddBar(3, 3, 4, 1, 1)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 4, Kind: model.FixedFull})
	m.AddLoad(&model.JointPointLoad{Joint: 2, Fx: 20})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	chk.Scalar(tst, "gh", 0, float64(res.Gh), 3)

	r1, r4 := res.Reactions[1], res.Reactions[4]
	chk.Scalar(tst, "sum Rx balances the sway load", 1e-6, r1.Rx+r4.Rx, -20)
	chk.Scalar(tst, "sum Ry vanishes", 1e-6, r1.Ry+r4.Ry, 0)
	chk.Scalar(tst, "equilibrium Fx residual", 1e-6, res.Diagnostics.EquilibriumFx, 0)
	chk.Scalar(tst, "equilibrium Mz residual", 1e-5, res.Diagnostics.EquilibriumMz, 0)
}

func Test_scenarioPortalWithKneeHinge(tst *testing.T) {

	chk.PrintTitle("scenarioPortalWithKneeHinge. released moment vanishes, gh drops by one")

	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 0, -4)
	m.AddJoint(3, 6, -4)
	m.AddJoint(4, 6, 0)
	m.AddMaterial(1, 200e6, 1.2e-5, 0.3)
	m.AddSection(1, 0.01, 2.772e-5, 0.2)
	m.AddBar(1, 1, 2, 1, 1)
	m.AddBar(2, 2, 3, 1, 1)
	m.AddBar(3, 3, 4, 1, 1)
	m.SetBarHinges(2, true, false) // pinned knee at the top-left corner
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 4, Kind: model.FixedFull})
	m.AddLoad(&model.JointPointLoad{Joint: 2, Fx: 20})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	chk.Scalar(tst, "gh drops to 2", 0, float64(res.Gh), 2)
	chk.Scalar(tst, "M at the released knee end", 1e-9, res.BarFields[2].M.Eval(0), 0)
	chk.Scalar(tst, "equilibrium Fx residual", 1e-6, res.Diagnostics.EquilibriumFx, 0)
}

func Test_scenarioUniformThermalOnFixedFixedBar(tst *testing.T) {

	chk.PrintTitle("scenarioUniformThermalOnFixedFixedBar. N = -E*A*alpha*dT")

	m := scenarioBeam(6)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 2, Kind: model.FixedFull})
	m.AddLoad(&model.BarThermalLoad{Bar: 1, DeltaTUniform: 30})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}

	// E*A*alpha*dT = 200e6 * 0.01 * 1.2e-5 * 30 = 720 kN of restrained
	// expansion, carried as uniform compression.
	bf := res.BarFields[1]
	chk.Scalar(tst, "N(0)", 1e-6, bf.N.Eval(0), -720)
	chk.Scalar(tst, "N(3)", 1e-6, bf.N.Eval(3), -720)
	chk.Scalar(tst, "N(6)", 1e-6, bf.N.Eval(6), -720)
	chk.Scalar(tst, "V stays zero", 1e-6, bf.V.Eval(3), 0)
	chk.Scalar(tst, "M stays zero", 1e-6, bf.M.Eval(3), 0)
}

func Test_scenarioElasticSpringSettlement(tst *testing.T) {

	chk.PrintTitle("scenarioElasticSpringSettlement. spring settles by -R/k")

	build := func(springK float64, rigid bool) *model.Model {
		m := scenarioBeam(6)
		m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
		if rigid {
			m.AddSupport(model.Support{Joint: 2, Kind: model.Roller, RollerAxis: math.Pi / 2})
		} else {
			m.AddSupport(model.Support{Joint: 2, Kind: model.Elastic, Ky: springK})
		}
		m.AddLoad(&model.BarPointLoad{Bar: 1, P: 10, A: 3, Angle: math.Pi / 2})
		return m
	}

	res, err := Analyze(build(5000, false), DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	chk.Scalar(tst, "gh", 0, float64(res.Gh), 1)
	settle := res.JointDisplacements[2].Uy
	chk.Scalar(tst, "spring settlement equals -Ry/k", 1e-9, settle, -res.Reactions[2].Ry/5000)

	// k -> very stiff converges to the rigid fixed-pinned result.
	stiff, err := Analyze(build(1e12, false), DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze with a very stiff spring failed: %v", err)
		return
	}
	rigidRes, err := Analyze(build(0, true), DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze of the rigid reference failed: %v", err)
		return
	}
	chk.Scalar(tst, "stiff-spring Ry converges to rigid Ry", 1e-6, stiff.Reactions[2].Ry, rigidRes.Reactions[2].Ry)
	chk.Scalar(tst, "stiff-spring root moment converges", 1e-6, stiff.BarFields[1].M.Eval(0), rigidRes.BarFields[1].M.Eval(0))
}

func Test_scenarioTwoSpanSettlement(tst *testing.T) {

	chk.PrintTitle("scenarioTwoSpanSettlement. center support settles with no loads")

	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 6, 0)
	m.AddJoint(3, 12, 0)
	m.AddMaterial(1, 200e6, 1.2e-5, 0.3)
	m.AddSection(1, 0.01, 2.772e-5, 0.2)
	m.AddBar(1, 1, 2, 1, 1)
	m.AddBar(2, 2, 3, 1, 1)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 2, Kind: model.Pinned})
	m.AddSupport(model.Support{Joint: 3, Kind: model.Pinned})
	m.AddLoad(&model.ImposedDisplacementLoad{Joint: 2, Dy: 0.010})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}

	var sumFy float64
	for _, r := range res.Reactions {
		sumFy += r.Ry
	}
	chk.Scalar(tst, "reactions sum to zero with no external load", 1e-6, sumFy, 0)

	if math.Abs(res.BarFields[1].M.Eval(0)) < 1e-9 {
		tst.Errorf("a settlement on an indeterminate beam must induce bending")
	}
	chk.Scalar(tst, "computed settlement matches the imposed one", 1e-6, res.JointDisplacements[2].Uy, 0.010)
}

func Test_superpositionLinearity(tst *testing.T) {

	chk.PrintTitle("superpositionLinearity. doubled loads double every output")

	build := func(p float64) *model.Model {
		m := scenarioBeam(6)
		m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
		m.AddSupport(model.Support{Joint: 2, Kind: model.Pinned})
		m.AddLoad(&model.BarPointLoad{Bar: 1, P: p, A: 2, Angle: math.Pi / 2})
		return m
	}
	r1, err := Analyze(build(10), DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	r2, err := Analyze(build(20), DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	chk.Scalar(tst, "doubled reaction", 1e-9, r2.Reactions[1].Ry, 2*r1.Reactions[1].Ry)
	chk.Scalar(tst, "doubled moment field", 1e-9, r2.BarFields[1].M.Eval(1.7), 2*r1.BarFields[1].M.Eval(1.7))
	chk.Scalar(tst, "doubled tip rotation", 1e-9, r2.JointDisplacements[2].Theta, 2*r1.JointDisplacements[2].Theta)
}

func Test_cancellationStopsThePipeline(tst *testing.T) {

	chk.PrintTitle("cancellationStopsThePipeline")

	m := scenarioBeam(6)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddLoad(&model.JointPointLoad{Joint: 2, Fy: 10})

	opts := DefaultOptions()
	opts.Cancel = func() bool { return true }
	_, err := Analyze(m, opts)
	if err == nil {
		tst.Errorf("expected a Canceled error")
	}
}

func Test_progressIsMonotonic(tst *testing.T) {

	chk.PrintTitle("progressIsMonotonic")

	m := scenarioBeam(6)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 2, Kind: model.Pinned})
	m.AddLoad(&model.JointPointLoad{Joint: 2, Mz: 5})

	var fracs []float64
	opts := DefaultOptions()
	opts.Progress = func(stage string, frac float64) { fracs = append(fracs, frac) }
	if _, err := Analyze(m, opts); err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	if len(fracs) == 0 {
		tst.Errorf("progress callback was never invoked")
		return
	}
	for i := 1; i < len(fracs); i++ {
		if fracs[i] <= fracs[i-1] {
			tst.Errorf("progress must increase monotonically: %v", fracs)
		}
	}
	chk.Scalar(tst, "final progress", 1e-12, fracs[len(fracs)-1], 1)
}

func Test_deflectedShapeAnchorsToJointDisplacements(tst *testing.T) {

	chk.PrintTitle("deflectedShapeAnchorsToJointDisplacements. cantilever elastic curve")

	m := scenarioBeam(4)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddLoad(&model.JointPointLoad{Joint: 2, Fy: 10})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	d, err := res.Deflection(m, 1)
	if err != nil {
		tst.Errorf("Deflection failed: %v", err)
		return
	}

	chk.Scalar(tst, "v(0) at the fixed end", 1e-9, d.V(0), 0)
	chk.Scalar(tst, "theta(0) at the fixed end", 1e-9, d.Theta(0), 0)
	chk.Scalar(tst, "v(L) matches the tip joint displacement", 1e-9, d.V(4), res.JointDisplacements[2].Uy)

	// tip deflection of a cantilever under a tip load: P*L^3/(3*E*I)
	pl3 := 10.0 * 64 / (3 * 200e6 * 2.772e-5)
	chk.Scalar(tst, "tip deflection P*L^3/(3EI)", 1e-9, d.V(4), pl3)

	if math.Abs(d.V(2)) >= math.Abs(d.V(4)) {
		tst.Errorf("deflection should grow toward the free tip")
	}
}

func Test_redundantChoiceInvariance(tst *testing.T) {

	chk.PrintTitle("redundantChoiceInvariance. two admissible selections, one physics")

	build := func() *model.Model {
		m := scenarioBeam(6)
		m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
		m.AddSupport(model.Support{Joint: 2, Kind: model.Roller, RollerAxis: math.Pi / 2})
		m.AddLoad(&model.BarDistributedLoad{Bar: 1, Q1: 12, Q2: 12, Angle: math.Pi / 2})
		return m
	}

	// automatic selection: the fixed-end moment, per the §4.3 priority.
	auto, err := Analyze(build(), DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze with automatic selection failed: %v", err)
		return
	}
	if auto.Redundants[0].Kind != model.ReactionMz || auto.Redundants[0].Joint != 1 {
		tst.Errorf("expected the automatic pick to be the fixed-end moment, got %+v", auto.Redundants[0])
	}

	// a different admissible choice: release the roller instead, leaving
	// a pure cantilever as the primary structure.
	opts := DefaultOptions()
	opts.ManualRedundants = []model.Redundant{{Kind: model.ReactionRy, Joint: 2}}
	manual, err := Analyze(build(), opts)
	if err != nil {
		tst.Errorf("Analyze with the manual selection failed: %v", err)
		return
	}

	for _, j := range []int{1, 2} {
		ra, rm := auto.Reactions[j], manual.Reactions[j]
		chk.Scalar(tst, "Rx invariant", 1e-6, ra.Rx, rm.Rx)
		chk.Scalar(tst, "Ry invariant", 1e-6, ra.Ry, rm.Ry)
		chk.Scalar(tst, "Mz invariant", 1e-6, ra.Mz, rm.Mz)
	}
	for _, x := range []float64{0, 1.5, 3, 4.5, 6} {
		chk.Scalar(tst, "N field invariant", 1e-6, auto.BarFields[1].N.Eval(x), manual.BarFields[1].N.Eval(x))
		chk.Scalar(tst, "V field invariant", 1e-6, auto.BarFields[1].V.Eval(x), manual.BarFields[1].V.Eval(x))
		chk.Scalar(tst, "M field invariant", 1e-6, auto.BarFields[1].M.Eval(x), manual.BarFields[1].M.Eval(x))
	}
	chk.Scalar(tst, "roller-end rotation invariant", 1e-9, auto.JointDisplacements[2].Theta, manual.JointDisplacements[2].Theta)
}
