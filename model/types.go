// Package model holds the geometric and loading data of a 2D planar
// frame: joints, materials, sections, bars, supports and loads. The
// model owns every entity; bars, supports, loads and redundants refer
// to joints and bars by their stable integer id rather than by pointer,
// so there is never a back-reference to keep in sync (spec.md §9).
//
// Sign convention (fixed, global, "TERNA"): X+ right, Y+ down, rotation
// positive clockwise. A bar's local x' axis runs from its i-end to its
// j-end; local y' is x' rotated +90° clockwise.
package model

// Joint is a node of the frame: its id and its coordinates. Supports
// and prescribed displacements at a joint are held separately, in the
// model's Supports and Loads, and refer to the joint by id.
type Joint struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Material holds the elastic and thermal properties shared by one or
// more bars.
type Material struct {
	ID    int     `json:"id"`
	E     float64 `json:"e"`     // Young's modulus, kN/m²
	Nu    float64 `json:"nu"`    // Poisson's ratio, used only to derive G for shear flexibility
	Alpha float64 `json:"alpha"` // thermal expansion coefficient, 1/°C
}

// G returns the shear modulus E/(2(1+ν)), used by the Timoshenko shear
// flexibility term (spec.md §4.6) instead of E itself.
func (mt *Material) G() float64 {
	return mt.E / (2 * (1 + mt.Nu))
}

// Section holds the cross-sectional properties shared by one or more
// bars. H (section depth) is only needed for thermal-gradient loading
// and may be left zero when no bar on this section carries one.
type Section struct {
	ID int     `json:"id"`
	A  float64 `json:"a"`  // cross-sectional area, m²
	Iz float64 `json:"iz"` // moment of inertia about the bending axis, m⁴
	H  float64 `json:"h"`  // section depth, m (optional)
}

// Bar is a prismatic straight member between two joints. L and Theta
// are derived by the model from the endpoint coordinates (Geometry &
// Kinematics, spec.md §4.1) and kept in sync whenever endpoints are
// read through the model rather than cached independently by callers.
type Bar struct {
	ID       int `json:"id"`
	IJoint   int `json:"i_joint"`
	JJoint   int `json:"j_joint"`
	Material int `json:"material"`
	Section  int `json:"section"`

	L     float64 `json:"-"` // length, m (derived)
	Theta float64 `json:"-"` // angle of local x' from global +X, radians (derived)

	IHinge bool `json:"i_hinge,omitempty"` // built-in moment release at the i-end
	JHinge bool `json:"j_hinge,omitempty"` // built-in moment release at the j-end
}

// HingeCount returns how many of the bar's two ends carry a built-in
// moment release.
func (b *Bar) HingeCount() int {
	n := 0
	if b.IHinge {
		n++
	}
	if b.JHinge {
		n++
	}
	return n
}

// SupportKind tags the kind of restraint a Support applies.
type SupportKind int

const (
	FixedFull SupportKind = iota
	Pinned
	Roller
	Guide
	Elastic
)

func (k SupportKind) String() string {
	switch k {
	case FixedFull:
		return "fixed-full"
	case Pinned:
		return "pinned"
	case Roller:
		return "roller"
	case Guide:
		return "guide"
	case Elastic:
		return "elastic"
	}
	return "unknown"
}

// Support restrains one joint. RollerAxis is the global-frame angle
// (radians) of the translational direction a Roller or Guide restrains;
// it is meaningful only for those two kinds. Kx, Ky, Ktheta are spring stiffnesses
// (kN/m, kN/m, kNm/rad); they are meaningful only when Kind == Elastic,
// where at least one of the three must be positive.
type Support struct {
	Joint      int         `json:"joint"`
	Kind       SupportKind `json:"kind"`
	RollerAxis float64     `json:"roller_axis,omitempty"`
	Kx         float64     `json:"kx,omitempty"`
	Ky         float64     `json:"ky,omitempty"`
	Ktheta     float64     `json:"ktheta,omitempty"`
}

// DistShape tags the shape of a distributed load along a bar.
type DistShape int

const (
	Uniform DistShape = iota
	Trapezoidal
	Triangular
)

// LoadKind tags the concrete type behind the Load interface.
type LoadKind int

const (
	LoadJointPoint LoadKind = iota
	LoadBarPoint
	LoadBarDistributed
	LoadBarThermal
	LoadImposedDisplacement
)

// Load is the tagged-union interface every load variant implements.
// Kind() names the concrete variant; the engine's consumers select a
// variant with a Go type switch on the concrete load type, so adding a
// variant never requires touching existing switch cases it does not
// apply to (spec.md §9, "Polymorphic entities").
type Load interface {
	Kind() LoadKind
}

// JointPointLoad applies a concentrated force/moment directly at a
// joint, in global components.
type JointPointLoad struct {
	Joint int     `json:"joint"`
	Fx    float64 `json:"fx"`
	Fy    float64 `json:"fy"`
	Mz    float64 `json:"mz"`
}

func (l *JointPointLoad) Kind() LoadKind { return LoadJointPoint }

// BarPointLoad applies a concentrated force at local distance A from
// the bar's i-end, in a direction Angle measured from the bar's local
// x' axis, positive clockwise in the global frame (spec.md §4.1).
type BarPointLoad struct {
	Bar   int     `json:"bar"`
	P     float64 `json:"p"`
	A     float64 `json:"a"`
	Angle float64 `json:"angle"`
}

func (l *BarPointLoad) Kind() LoadKind { return LoadBarPoint }

// BarDistributedLoad applies a distributed load over the full length
// of a bar. Q1 is the intensity at the i-end, Q2 at the j-end; for
// Uniform shape Q1 == Q2 is expected (not enforced: a caller passing a
// uniform shape with Q1 != Q2 gets the trapezoidal integral anyway).
type BarDistributedLoad struct {
	Bar   int       `json:"bar"`
	Q1    float64   `json:"q1"`
	Q2    float64   `json:"q2"`
	Shape DistShape `json:"shape"`
	Angle float64   `json:"angle"`
}

func (l *BarDistributedLoad) Kind() LoadKind { return LoadBarDistributed }

// BarThermalLoad applies a uniform temperature change DeltaTUniform
// (expands/contracts the whole section) and a linear gradient
// DeltaTGradient (top-to-bottom temperature difference, inducing
// curvature) to a bar.
type BarThermalLoad struct {
	Bar            int     `json:"bar"`
	DeltaTUniform  float64 `json:"delta_t_uniform"`
	DeltaTGradient float64 `json:"delta_t_gradient"`
}

func (l *BarThermalLoad) Kind() LoadKind { return LoadBarThermal }

// ImposedDisplacementLoad prescribes a displacement at a joint. When
// the joint coincides with a chosen redundant's location, the
// component in the redundant's direction becomes part of eₕ rather
// than a primary-structure load (spec.md §4.4, §4.6).
type ImposedDisplacementLoad struct {
	Joint  int     `json:"joint"`
	Dx     float64 `json:"dx"`
	Dy     float64 `json:"dy"`
	Dtheta float64 `json:"dtheta"`
}

func (l *ImposedDisplacementLoad) Kind() LoadKind { return LoadImposedDisplacement }

// RedundantKind tags what a Redundant releases.
type RedundantKind int

const (
	ReactionRx RedundantKind = iota
	ReactionRy
	ReactionMz
	ElasticSpringReaction
	InternalMomentRelease
	InternalShearRelease
	InternalAxialRelease
)

func (k RedundantKind) String() string {
	switch k {
	case ReactionRx:
		return "reaction_Rx"
	case ReactionRy:
		return "reaction_Ry"
	case ReactionMz:
		return "reaction_Mz"
	case ElasticSpringReaction:
		return "elastic_spring_reaction"
	case InternalMomentRelease:
		return "internal_moment_release"
	case InternalShearRelease:
		return "internal_shear_release"
	case InternalAxialRelease:
		return "internal_axial_release"
	}
	return "unknown"
}

// IsReaction reports whether k releases a support restraint (as
// opposed to an internal continuity condition).
func (k RedundantKind) IsReaction() bool {
	return k == ReactionRx || k == ReactionRy || k == ReactionMz || k == ElasticSpringReaction
}

// Axis names one of a joint's three restraint directions. It is only
// meaningful on a Redundant whose Kind is ElasticSpringReaction: every
// other reaction kind already names its own direction, and internal
// releases do not have one.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisTheta
)

// Redundant is one released constraint: a support reaction component
// (Joint meaningful) or an internal release at a point along a bar
// (Bar, X meaningful). X is the local distance from the bar's i-end.
type Redundant struct {
	Kind  RedundantKind `json:"kind"`
	Joint int           `json:"joint,omitempty"`
	Axis  Axis          `json:"axis,omitempty"` // ElasticSpringReaction only: which restrained direction was released
	Bar   int           `json:"bar,omitempty"`
	X     float64       `json:"x,omitempty"`
}
