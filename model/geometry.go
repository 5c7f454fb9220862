package model

import (
	"math"

	"github.com/cpmech/gosl/la"
)

// CosSin returns the direction cosine and sine of the bar's local x'
// axis in the global frame.
func (b *Bar) CosSin() (c, s float64) {
	return math.Cos(b.Theta), math.Sin(b.Theta)
}

// RotationMatrix returns the 3x3 block used to rotate a (x,y,rz) triple
// from local to global coordinates: global = R * local. Built the same
// way the teacher's beam element builds its per-node transformation
// block in e_beam.go's Recompute (cosθ,−sinθ / sinθ,cosθ on the
// diagonal, 1 on the rotational term).
func (b *Bar) RotationMatrix() [][]float64 {
	c, s := b.CosSin()
	r := la.MatAlloc(3, 3)
	r[0][0], r[0][1] = c, -s
	r[1][0], r[1][1] = s, c
	r[2][2] = 1
	return r
}

// LocalToGlobalAngle converts a load angle alpha, measured from the
// bar's local x' axis and positive clockwise, into a global-frame
// direction angle (spec.md §4.1).
func (b *Bar) LocalToGlobalAngle(alpha float64) float64 {
	return b.Theta + alpha
}
