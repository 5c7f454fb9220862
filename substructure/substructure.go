// Package substructure implements the Substructure Generator (spec.md
// §4.4): given the chosen redundants it builds the primary structure
// and the gh unit-load structures the Isostatic Solver and Flexibility
// Integrator operate on.
package substructure

import (
	"github.com/go-structures/forceframe/determinacy"
	"github.com/go-structures/forceframe/model"
)

// Release names one internal release introduced on a bar by a chosen
// internal redundant, at local distance X from the i-end. Kind is one
// of the three internal-release redundant kinds and decides which
// section quantity (M, V or N) is prescribed at the cut. It is distinct
// from a bar's built-in IHinge/JHinge, which are physical features of
// the model rather than a solution device.
type Release struct {
	Bar  int
	X    float64
	Kind model.RedundantKind
}

// Substructure is one of the gh+1 statically determinate structures
// sharing the model's geometry: the primary (Index == 0, Redundant ==
// nil) or a unit-load structure for redundant i (Index == i).
type Substructure struct {
	Index     int
	Redundant *model.Redundant // nil for the primary
	Mask      determinacy.Mask // retained (non-released) restraint directions
	Releases  []Release        // internal releases from internal-redundant choices
	Loads     []model.Load     // loads this substructure carries
}

// Generate builds the primary structure (loaded with every real load
// except imposed displacements at redundant locations) and one
// unit-load structure per chosen redundant (spec.md §4.4).
func Generate(m *model.Model, redundants []model.Redundant) []*Substructure {
	baseMask := determinacy.RestraintMask(m)
	var releases []Release
	mask := cloneMask(baseMask)

	for _, r := range redundants {
		if r.Kind.IsReaction() {
			clearDirection(mask, r)
		} else {
			releases = append(releases, Release{Bar: r.Bar, X: r.X, Kind: r.Kind})
		}
	}

	redundantJoints := make(map[int]bool)
	for _, r := range redundants {
		if r.Kind.IsReaction() {
			redundantJoints[r.Joint] = true
		}
	}

	out := make([]*Substructure, 0, len(redundants)+1)
	out = append(out, &Substructure{
		Index:    0,
		Mask:     mask,
		Releases: releases,
		Loads:    primaryLoads(m, redundantJoints),
	})

	for i, r := range redundants {
		rCopy := r
		var loads []model.Load
		if ul := unitLoad(rCopy); ul != nil {
			loads = append(loads, ul)
		}
		out = append(out, &Substructure{
			Index:     i + 1,
			Redundant: &rCopy,
			Mask:      mask,
			Releases:  releases,
			Loads:     loads,
		})
	}
	return out
}

// primaryLoads returns every real load except imposed displacements
// whose joint coincides with a chosen redundant's direction: those
// become part of eₕ in the Flexibility Integrator instead (spec.md
// §4.4, §4.6).
func primaryLoads(m *model.Model, redundantJoints map[int]bool) []model.Load {
	var out []model.Load
	for _, l := range m.Loads {
		if idl, ok := l.(*model.ImposedDisplacementLoad); ok && redundantJoints[idl.Joint] {
			continue
		}
		out = append(out, l)
	}
	return out
}

// unitLoad builds the generalized unit load for redundant r: a unit
// force/moment at a support direction for reaction redundants. Internal
// releases have no joint load; unitLoad returns nil for them.
func unitLoad(r model.Redundant) model.Load {
	switch r.Kind {
	case model.ReactionRx:
		return &model.JointPointLoad{Joint: r.Joint, Fx: 1}
	case model.ReactionRy:
		return &model.JointPointLoad{Joint: r.Joint, Fy: 1}
	case model.ReactionMz:
		return &model.JointPointLoad{Joint: r.Joint, Mz: 1}
	case model.ElasticSpringReaction:
		switch r.Axis {
		case model.AxisX:
			return &model.JointPointLoad{Joint: r.Joint, Fx: 1}
		case model.AxisY:
			return &model.JointPointLoad{Joint: r.Joint, Fy: 1}
		default:
			return &model.JointPointLoad{Joint: r.Joint, Mz: 1}
		}
	default:
		// InternalMomentRelease, InternalShearRelease, InternalAxialRelease:
		// the equal-and-opposite unit pair across the cut is not a joint
		// load; the Isostatic Solver applies it as a prescribed unit
		// section value in the release-condition row of this redundant's
		// own substructure, recognized from Substructure.Redundant.
		return nil
	}
}

func cloneMask(mask determinacy.Mask) determinacy.Mask {
	out := make(determinacy.Mask, len(mask))
	for k, v := range mask {
		out[k] = v
	}
	return out
}

func clearDirection(mask determinacy.Mask, r model.Redundant) {
	d := mask[r.Joint]
	switch r.Kind {
	case model.ReactionRx:
		d[0] = false
	case model.ReactionRy:
		d[1] = false
	case model.ReactionMz:
		d[2] = false
	case model.ElasticSpringReaction:
		d[r.Axis] = false
	}
	mask[r.Joint] = d
}
