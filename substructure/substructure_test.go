package substructure

import (
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/go-structures/forceframe/model"
)

func singleBarFixedFixed() *model.Model {
	m := model.New()
	m.AddJoint(1, 0, 0)
	m.AddJoint(2, 6, 0)
	m.AddMaterial(1, 2e7, 1e-5, 0.3)
	m.AddSection(1, 0.05, 0.001, 0.2)
	m.AddBar(1, 1, 2, 1, 1)
	m.AddSupport(model.Support{Joint: 1, Kind: model.FixedFull})
	m.AddSupport(model.Support{Joint: 2, Kind: model.FixedFull})
	m.AddLoad(&model.BarDistributedLoad{Bar: 1, Q1: 10, Q2: 10, Angle: -1.5707963267948966})
	return m
}

func Test_generateOneSubstructurePerRedundant(tst *testing.T) {

	chk.PrintTitle("generateOneSubstructurePerRedundant. gh=3 fixed-fixed beam")

	m := singleBarFixedFixed()
	redundants := []model.Redundant{
		{Kind: model.ReactionMz, Joint: 1},
		{Kind: model.ReactionMz, Joint: 2},
		{Kind: model.ReactionRx, Joint: 2},
	}
	subs := Generate(m, redundants)
	chk.Scalar(tst, "substructure count", 0, float64(len(subs)), 4)
	if subs[0].Redundant != nil {
		tst.Errorf("primary substructure must carry no Redundant")
	}
	for i := 1; i < len(subs); i++ {
		if subs[i].Redundant == nil {
			tst.Errorf("unit-load substructure %d should reference its redundant", i)
		}
		if len(subs[i].Loads) != 1 {
			tst.Errorf("unit-load substructure %d should carry exactly one unit load, got %d", i, len(subs[i].Loads))
		}
	}

	mask := subs[0].Mask
	d1, d2 := mask[1], mask[2]
	if d1[2] || d2[2] {
		tst.Errorf("released moment directions should be cleared from the primary mask")
	}
	if d2[0] {
		tst.Errorf("released Rx at joint 2 should be cleared")
	}
	if !d1[0] || !d1[1] || !d2[1] {
		tst.Errorf("non-released directions should remain restrained: %v %v", d1, d2)
	}
}

func Test_primaryExcludesImposedDisplacementAtRedundantJoint(tst *testing.T) {

	chk.PrintTitle("primaryExcludesImposedDisplacementAtRedundantJoint")

	m := singleBarFixedFixed()
	m.AddLoad(&model.ImposedDisplacementLoad{Joint: 2, Dtheta: 0.001})
	redundants := []model.Redundant{
		{Kind: model.ReactionMz, Joint: 1},
		{Kind: model.ReactionMz, Joint: 2},
		{Kind: model.ReactionRx, Joint: 2},
	}
	subs := Generate(m, redundants)
	for _, l := range subs[0].Loads {
		if _, ok := l.(*model.ImposedDisplacementLoad); ok {
			tst.Errorf("imposed displacement at a redundant joint must not appear in the primary structure's loads")
		}
	}
}

func Test_internalReleaseBecomesReleaseNotMaskChange(tst *testing.T) {

	chk.PrintTitle("internalReleaseBecomesReleaseNotMaskChange")

	m := singleBarFixedFixed()
	redundants := []model.Redundant{
		{Kind: model.ReactionMz, Joint: 1},
		{Kind: model.ReactionMz, Joint: 2},
		{Kind: model.InternalMomentRelease, Bar: 1, X: 3},
	}
	subs := Generate(m, redundants)
	if len(subs[0].Releases) != 1 {
		tst.Errorf("expected one interior release in the primary structure, got %d", len(subs[0].Releases))
	}
	mask := subs[0].Mask
	if mask[2][0] == false {
		tst.Errorf("an internal release must not clear a reaction direction")
	}
}
