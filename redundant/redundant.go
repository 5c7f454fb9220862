// Package redundant implements the Redundant Selector (spec.md §4.3):
// it chooses gh restraints/continuity conditions to release so the
// remaining primary structure is statically determinate and stable.
package redundant

import (
	"sort"

	"github.com/go-structures/forceframe/determinacy"
	"github.com/go-structures/forceframe/ferr"
	"github.com/go-structures/forceframe/model"
)

// Select returns gh redundants for m. When manual is non-empty it is
// used verbatim after an admissibility check; otherwise candidates are
// generated in priority order and searched for an admissible subset of
// size gh (spec.md §4.3):
//
//  1. support moments at fully-fixed joints
//  2. vertical support reactions
//  3. horizontal support reactions
//  4. internal moment releases at the midspan of the longest bars
//
// Ties within a tier break by ascending joint (or bar) id.
func Select(m *model.Model, gh int, manual []model.Redundant) ([]model.Redundant, error) {
	if gh == 0 {
		return nil, nil
	}
	if len(manual) > 0 {
		if len(manual) != gh {
			return nil, ferr.New(ferr.RedundantChoiceUnstable, "", "manual redundant list has %d entries, need gh=%d", len(manual), gh)
		}
		if !admissible(m, manual) {
			return nil, ferr.New(ferr.RedundantChoiceUnstable, "", "manual redundant selection leaves the primary structure unstable")
		}
		return manual, nil
	}

	candidates := buildCandidates(m)
	chosen, ok := search(m, candidates, gh, nil)
	if !ok {
		return nil, ferr.New(ferr.RedundantChoiceUnstable, "", "no admissible set of %d redundants found among %d candidates", gh, len(candidates))
	}
	return chosen, nil
}

// search performs a depth-first include/exclude walk over candidates
// in priority order, returning the first admissible subset of size gh.
// Because candidates are already priority-ordered and the include
// branch is tried before the exclude branch, the result is the
// highest-priority admissible combination reachable, which is the
// backtracking behaviour spec.md §4.3 asks for.
func search(m *model.Model, candidates []model.Redundant, gh int, chosen []model.Redundant) ([]model.Redundant, bool) {
	if len(chosen) == gh {
		if admissible(m, chosen) {
			out := make([]model.Redundant, len(chosen))
			copy(out, chosen)
			return out, true
		}
		return nil, false
	}
	if len(candidates) < gh-len(chosen) {
		return nil, false
	}
	if res, ok := search(m, candidates[1:], gh, append(chosen, candidates[0])); ok {
		return res, true
	}
	return search(m, candidates[1:], gh, chosen)
}

// buildCandidates enumerates every releasable restraint in priority
// order. Reaction-type candidates come from restrained support
// directions; the final tier offers one internal-moment-release
// candidate at the midspan of each bar, longest first.
func buildCandidates(m *model.Model) []model.Redundant {
	var tier1, tier2, tier3 []model.Redundant

	supports := append([]model.Support(nil), m.Supports...)
	sort.Slice(supports, func(i, j int) bool { return supports[i].Joint < supports[j].Joint })

	for _, s := range supports {
		rx, ry, rz := supportDirections(s)
		kind := model.ReactionRx
		if s.Kind == model.Elastic {
			kind = model.ElasticSpringReaction
		}
		if rz {
			tier1 = append(tier1, model.Redundant{Kind: pick(kind, model.ReactionMz), Joint: s.Joint, Axis: model.AxisTheta})
		}
		if ry {
			tier2 = append(tier2, model.Redundant{Kind: pick(kind, model.ReactionRy), Joint: s.Joint, Axis: model.AxisY})
		}
		if rx {
			tier3 = append(tier3, model.Redundant{Kind: pick(kind, model.ReactionRx), Joint: s.Joint, Axis: model.AxisX})
		}
	}

	bars := append([]*model.Bar(nil), m.Bars()...)
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].L != bars[j].L {
			return bars[i].L > bars[j].L
		}
		return bars[i].ID < bars[j].ID
	})
	var tier4 []model.Redundant
	for _, b := range bars {
		tier4 = append(tier4, model.Redundant{Kind: model.InternalMomentRelease, Bar: b.ID, X: b.L / 2})
	}

	out := make([]model.Redundant, 0, len(tier1)+len(tier2)+len(tier3)+len(tier4))
	out = append(out, tier1...)
	out = append(out, tier2...)
	out = append(out, tier3...)
	out = append(out, tier4...)
	return out
}

// pick returns elastic when the support is elastic (a single
// elastic_spring_reaction kind stands for whichever direction is being
// released; the candidate's Axis field names that direction) and the
// directional kind otherwise.
func pick(elastic, directional model.RedundantKind) model.RedundantKind {
	if elastic == model.ElasticSpringReaction {
		return elastic
	}
	return directional
}

func supportDirections(s model.Support) (rx, ry, rz bool) {
	switch s.Kind {
	case model.FixedFull:
		return true, true, true
	case model.Pinned:
		return true, true, false
	case model.Roller:
		return true, true, false // conservative: offer either axis as a candidate
	case model.Guide:
		return true, false, true
	case model.Elastic:
		return s.Kx > 0, s.Ky > 0, s.Ktheta > 0
	}
	return false, false, false
}

// admissible reports whether removing every restraint direction named
// by chosen (and leaving internal-release candidates as-is, since they
// do not change joint-level equilibrium columns) leaves a structure
// whose equilibrium matrix has full rank: no mechanism, and exactly as
// many unknowns as equations.
func admissible(m *model.Model, chosen []model.Redundant) bool {
	mask := determinacy.RestraintMask(m)
	removed := 0
	for _, c := range chosen {
		if !c.Kind.IsReaction() {
			continue
		}
		d := mask[c.Joint]
		switch c.Kind {
		case model.ReactionRx:
			if !d[0] {
				return false
			}
			d[0] = false
		case model.ReactionRy:
			if !d[1] {
				return false
			}
			d[1] = false
		case model.ReactionMz:
			if !d[2] {
				return false
			}
			d[2] = false
		case model.ElasticSpringReaction:
			if !d[c.Axis] {
				return false
			}
			d[c.Axis] = false
		}
		mask[c.Joint] = d
		removed++
	}
	rank, rows, cols := determinacy.EquilibriumRank(m, mask)
	need := rows
	if cols < need {
		need = cols
	}
	return rank == need
}
