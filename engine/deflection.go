package engine

import (
	"strconv"

	"github.com/go-structures/forceframe/ferr"
	"github.com/go-structures/forceframe/field"
	"github.com/go-structures/forceframe/model"
)

// Deflection is the elastic curve of one bar in its local frame:
// rotation θ(x) and transverse deflection v(x) along local y', obtained
// by integrating the superposed bending moment, θ(x) = θ(0) + ∫M/(EI)
// and v(x) = v(0) + ∫θ, with the initial values anchored to the
// end-joint displacements projected into the bar's local frame
// (spec.md §4.8, "Deflected shape").
type Deflection struct {
	bar    *model.Bar
	ei     float64
	moment *field.Field
	theta0 float64
	v0     float64
}

// Deflection builds the elastic curve of bar barID from the analysis
// result. m must be the model the result was computed from.
func (r *Result) Deflection(m *model.Model, barID int) (*Deflection, error) {
	bar := m.Bar(barID)
	if bar == nil {
		return nil, ferr.New(ferr.ModelInvalid, "bar "+strconv.Itoa(barID), "deflection requested for non-existent bar")
	}
	bf, ok := r.BarFields[barID]
	if !ok {
		return nil, ferr.New(ferr.ModelInvalid, "bar "+strconv.Itoa(barID), "no superposed field for bar; model edited after analysis?")
	}
	mat := m.Material(bar.Material)
	sec := m.Section(bar.Section)
	ei := mat.E * sec.Iz

	c, s := bar.CosSin()
	di := r.JointDisplacements[bar.IJoint]
	dj := r.JointDisplacements[bar.JJoint]
	v0 := -s*di.Ux + c*di.Uy
	vL := -s*dj.Ux + c*dj.Uy

	// v(L) = v(0) + θ(0)·L + ∫₀^L (L−s)·M(s)/(EI) ds fixes θ(0).
	aL, saL := momentIntegrals(bf.M, bar.L)
	bL := (bar.L*aL - saL) / ei
	theta0 := (vL - v0 - bL) / bar.L

	return &Deflection{bar: bar, ei: ei, moment: bf.M, theta0: theta0, v0: v0}, nil
}

// Theta returns the rotation of the elastic curve at local x.
func (d *Deflection) Theta(x float64) float64 {
	a, _ := momentIntegrals(d.moment, x)
	return d.theta0 + a/d.ei
}

// V returns the transverse deflection along local y' at local x.
func (d *Deflection) V(x float64) float64 {
	a, sa := momentIntegrals(d.moment, x)
	return d.v0 + d.theta0*x + (x*a-sa)/d.ei
}

// momentIntegrals returns (∫₀ˣ M ds, ∫₀ˣ s·M ds) evaluated exactly
// from the piecewise-polynomial segments.
func momentIntegrals(f *field.Field, x float64) (a, sa float64) {
	for k := 0; k < len(f.Segments); k++ {
		x0, x1 := f.Breakpoints[k], f.Breakpoints[k+1]
		if x <= x0 {
			break
		}
		t := x1 - x0
		if x < x1 {
			t = x - x0
		}
		p := f.Segments[k]
		p1 := t * (p.C[0] + t*(p.C[1]/2+t*(p.C[2]/3+t*p.C[3]/4)))
		pt := t * t * (p.C[0]/2 + t*(p.C[1]/3+t*(p.C[2]/4+t*p.C[3]/5)))
		a += p1
		sa += x0*p1 + pt
	}
	return a, sa
}

