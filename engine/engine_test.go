package engine

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/go-structures/forceframe/model"
)

func Test_determinateCantileverAnalyze(tst *testing.T) {

	chk.PrintTitle("determinateCantileverAnalyze. gh=0 pipeline shortcut")

	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 4, 0)
	m.AddMaterial(1, 2e7, 1e-5, 0.3)
	m.AddSection(1, 0.05, 0.001, 0.2)
	m.AddBar(1, 1, 2, 1, 1)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddLoad(&model.JointPointLoad{Joint: 2, Fy: 10})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	chk.Scalar(tst, "gh", 0, float64(res.Gh), 0)
	chk.Scalar(tst, "no redundants chosen", 0, float64(len(res.Redundants)), 0)
	chk.Scalar(tst, "equilibrium Fx residual", 1e-9, res.Diagnostics.EquilibriumFx, 0)
	chk.Scalar(tst, "equilibrium Fy residual", 1e-9, res.Diagnostics.EquilibriumFy, 0)
	chk.Scalar(tst, "equilibrium Mz residual", 1e-6, res.Diagnostics.EquilibriumMz, 0)

	d2 := res.JointDisplacements[2]
	if d2.Uy <= 0 {
		tst.Errorf("the free tip of a downward-loaded cantilever should deflect in the direction of the load (Uy=%g)", d2.Uy)
	}
	if bf, ok := res.BarFields[1]; !ok || bf.M == nil {
		tst.Errorf("expected a superposed moment field for bar 1")
	}
}

func Test_proppedCantileverHasOneRedundant(tst *testing.T) {

	chk.PrintTitle("proppedCantileverHasOneRedundant. gh=1 compatibility pipeline")

	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 6, 0)
	m.AddMaterial(1, 2e7, 1e-5, 0.3)
	m.AddSection(1, 0.06, 0.0018, 0.3)
	m.AddBar(1, 1, 2, 1, 1)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 2, Kind: model.Roller, RollerAxis: math.Pi / 2})
	m.AddLoad(&model.BarDistributedLoad{Bar: 1, Q1: 12, Q2: 12, Angle: math.Pi / 2})

	res, err := Analyze(m, DefaultOptions())
	if err != nil {
		tst.Errorf("Analyze failed: %v", err)
		return
	}
	chk.Scalar(tst, "gh", 0, float64(res.Gh), 1)
	chk.Scalar(tst, "one redundant chosen", 0, float64(len(res.Redundants)), 1)
	chk.Scalar(tst, "one compatibility unknown solved", 0, float64(len(res.X)), 1)
	chk.Scalar(tst, "equilibrium Fx residual", 1e-6, res.Diagnostics.EquilibriumFx, 0)
	chk.Scalar(tst, "equilibrium Fy residual", 1e-6, res.Diagnostics.EquilibriumFy, 0)
	chk.Scalar(tst, "equilibrium Mz residual", 1e-5, res.Diagnostics.EquilibriumMz, 0)

	// the roller end carries no moment resistance: the final bending
	// moment field there must vanish regardless of which redundant the
	// selector happened to choose.
	mAtRoller := res.BarFields[1].M.Eval(6)
	chk.Scalar(tst, "M at the roller end", 1e-6, mAtRoller, 0)
}

func Test_manualRedundantsAreHonored(tst *testing.T) {

	chk.PrintTitle("manualRedundantsAreHonored")

	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 6, 0)
	m.AddMaterial(1, 2e7, 1e-5, 0.3)
	m.AddSection(1, 0.06, 0.0018, 0.3)
	m.AddBar(1, 1, 2, 1, 1)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 2, Kind: model.Roller, RollerAxis: math.Pi / 2})
	m.AddLoad(&model.JointPointLoad{Joint: 2, Fy: 30})

	opts := DefaultOptions()
	opts.ManualRedundants = []model.Redundant{{Kind: model.ReactionRy, Joint: 2}}
	res, err := Analyze(m, opts)
	if err != nil {
		tst.Errorf("Analyze with a manual redundant failed: %v", err)
		return
	}
	if res.Redundants[0].Kind != model.ReactionRy || res.Redundants[0].Joint != 2 {
		tst.Errorf("manual redundant choice was not honored: %+v", res.Redundants[0])
	}
}

func Test_modelValidationFailsEarly(tst *testing.T) {

	chk.PrintTitle("modelValidationFailsEarly")

	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 4, 0)
	m.AddMaterial(1, 2e7, 1e-5, 0.3)
	m.AddSection(1, 0.05, 0.001, 0.2)
	m.AddBar(1, 1, 2, 1, 1)
	// no supports at all: hypostatic

	_, err := Analyze(m, DefaultOptions())
	if err == nil {
		tst.Errorf("expected an error analyzing a completely unsupported structure")
	}
}
