package model

import (
	"math"
	"sort"
	"strconv"

	"github.com/go-structures/forceframe/ferr"
)

// geomTol is the minimum admissible bar length (spec.md §4.1).
const geomTol = 1e-9

// Model owns every entity of one frame. It is built incrementally
// (AddJoint, AddMaterial, ... AddLoad) and is treated as read-only
// once handed to engine.Analyze: the engine never mutates it, and a
// caller who mutates it concurrently with an in-flight Analyze call is
// outside the concurrency contract of spec.md §5.
type Model struct {
	joints    map[int]*Joint
	materials map[int]*Material
	sections  map[int]*Section
	bars      map[int]*Bar

	Supports []Support
	Loads    []Load
}

// New returns an empty Model ready for incremental construction.
func New() *Model {
	return &Model{
		joints:    make(map[int]*Joint),
		materials: make(map[int]*Material),
		sections:  make(map[int]*Section),
		bars:      make(map[int]*Bar),
	}
}

// AddJoint adds a joint. Returns ModelInvalid if the id already exists
// or the coordinates are not finite.
func (m *Model) AddJoint(id int, x, y float64) error {
	if _, exists := m.joints[id]; exists {
		return ferr.New(ferr.ModelInvalid, jointEntity(id), "duplicate joint id")
	}
	if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
		return ferr.New(ferr.ModelInvalid, jointEntity(id), "joint coordinates must be finite")
	}
	m.joints[id] = &Joint{ID: id, X: x, Y: y}
	return nil
}

// AddMaterial adds a material. E must be strictly positive, nu must lie
// in [0, 0.5), and Alpha must be non-negative (spec.md §3). nu is only
// consumed when a bar carries Timoshenko shear flexibility.
func (m *Model) AddMaterial(id int, e, alpha, nu float64) error {
	if _, exists := m.materials[id]; exists {
		return ferr.New(ferr.ModelInvalid, materialEntity(id), "duplicate material id")
	}
	if e <= 0 {
		return ferr.New(ferr.ModelInvalid, materialEntity(id), "E must be positive, got %g", e)
	}
	if nu < 0 || nu >= 0.5 {
		return ferr.New(ferr.ModelInvalid, materialEntity(id), "nu must lie in [0, 0.5), got %g", nu)
	}
	if alpha < 0 {
		return ferr.New(ferr.ModelInvalid, materialEntity(id), "alpha must be non-negative, got %g", alpha)
	}
	m.materials[id] = &Material{ID: id, E: e, Nu: nu, Alpha: alpha}
	return nil
}

// AddSection adds a section. A and Iz must be strictly positive; H may
// be zero if no bar on this section carries a thermal-gradient load.
func (m *Model) AddSection(id int, a, iz, h float64) error {
	if _, exists := m.sections[id]; exists {
		return ferr.New(ferr.ModelInvalid, sectionEntity(id), "duplicate section id")
	}
	if a <= 0 {
		return ferr.New(ferr.ModelInvalid, sectionEntity(id), "A must be positive, got %g", a)
	}
	if iz <= 0 {
		return ferr.New(ferr.ModelInvalid, sectionEntity(id), "Iz must be positive, got %g", iz)
	}
	if h < 0 {
		return ferr.New(ferr.ModelInvalid, sectionEntity(id), "H must be non-negative, got %g", h)
	}
	m.sections[id] = &Section{ID: id, A: a, Iz: iz, H: h}
	return nil
}

// AddBar adds a bar between iJoint and jJoint, referencing an existing
// material and section by id. Length and angle are derived immediately
// from the current joint coordinates (Geometry & Kinematics, spec.md
// §4.1); a bar shorter than the geometric tolerance is rejected.
func (m *Model) AddBar(id, iJoint, jJoint, material, section int) error {
	if _, exists := m.bars[id]; exists {
		return ferr.New(ferr.ModelInvalid, barEntity(id), "duplicate bar id")
	}
	if iJoint == jJoint {
		return ferr.New(ferr.ModelInvalid, barEntity(id), "i-joint and j-joint must be distinct")
	}
	ij, ok := m.joints[iJoint]
	if !ok {
		return ferr.New(ferr.ModelInvalid, barEntity(id), "i-joint %d does not exist", iJoint)
	}
	jj, ok := m.joints[jJoint]
	if !ok {
		return ferr.New(ferr.ModelInvalid, barEntity(id), "j-joint %d does not exist", jJoint)
	}
	if _, ok := m.materials[material]; !ok {
		return ferr.New(ferr.ModelInvalid, barEntity(id), "material %d does not exist", material)
	}
	if _, ok := m.sections[section]; !ok {
		return ferr.New(ferr.ModelInvalid, barEntity(id), "section %d does not exist", section)
	}
	dx, dy := jj.X-ij.X, jj.Y-ij.Y
	l := math.Hypot(dx, dy)
	if l < geomTol {
		return ferr.New(ferr.ModelInvalid, barEntity(id), "bar length %.3e is below tolerance %.3e", l, geomTol)
	}
	m.bars[id] = &Bar{
		ID: id, IJoint: iJoint, JJoint: jJoint, Material: material, Section: section,
		L: l, Theta: math.Atan2(dy, dx),
	}
	return nil
}

// SetBarHinges marks built-in moment releases at either end of an
// existing bar (e.g. a pinned knee connection), as used in scenario S6
// of spec.md §8. These are physical features of the structure, present
// before any redundant is chosen, unlike the Redundant-kind internal
// releases the selector may introduce as a solution device.
func (m *Model) SetBarHinges(barID int, iHinge, jHinge bool) error {
	b, ok := m.bars[barID]
	if !ok {
		return ferr.New(ferr.ModelInvalid, barEntity(barID), "cannot set hinges: bar does not exist")
	}
	b.IHinge, b.JHinge = iHinge, jHinge
	return nil
}

// AddSupport registers a support on an existing joint.
func (m *Model) AddSupport(s Support) error {
	if _, ok := m.joints[s.Joint]; !ok {
		return ferr.New(ferr.ModelInvalid, jointEntity(s.Joint), "support references non-existent joint")
	}
	if s.Kind == Elastic {
		if s.Kx < 0 || s.Ky < 0 || s.Ktheta < 0 {
			return ferr.New(ferr.ModelInvalid, jointEntity(s.Joint), "elastic support stiffnesses must be non-negative")
		}
		if s.Kx <= 0 && s.Ky <= 0 && s.Ktheta <= 0 {
			return ferr.New(ferr.ModelInvalid, jointEntity(s.Joint), "elastic support needs at least one positive stiffness")
		}
	}
	m.Supports = append(m.Supports, s)
	return nil
}

// AddLoad registers a load, validating its joint/bar references and,
// for bar-point loads, that 0 ≤ a ≤ L.
func (m *Model) AddLoad(l Load) error {
	switch v := l.(type) {
	case *JointPointLoad:
		if _, ok := m.joints[v.Joint]; !ok {
			return ferr.New(ferr.ModelInvalid, jointEntity(v.Joint), "load references non-existent joint")
		}
	case *BarPointLoad:
		bar, ok := m.bars[v.Bar]
		if !ok {
			return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "load references non-existent bar")
		}
		if v.A < 0 || v.A > bar.L {
			return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "bar-point load distance a=%g outside [0,%g]", v.A, bar.L)
		}
	case *BarDistributedLoad:
		if _, ok := m.bars[v.Bar]; !ok {
			return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "load references non-existent bar")
		}
	case *BarThermalLoad:
		if _, ok := m.bars[v.Bar]; !ok {
			return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "load references non-existent bar")
		}
	case *ImposedDisplacementLoad:
		if _, ok := m.joints[v.Joint]; !ok {
			return ferr.New(ferr.ModelInvalid, jointEntity(v.Joint), "load references non-existent joint")
		}
	default:
		return ferr.New(ferr.ModelInvalid, "", "unknown load variant %T", l)
	}
	m.Loads = append(m.Loads, l)
	return nil
}

// Joint returns the joint with the given id, or nil.
func (m *Model) Joint(id int) *Joint { return m.joints[id] }

// Material returns the material with the given id, or nil.
func (m *Model) Material(id int) *Material { return m.materials[id] }

// Section returns the section with the given id, or nil.
func (m *Model) Section(id int) *Section { return m.sections[id] }

// Bar returns the bar with the given id, or nil.
func (m *Model) Bar(id int) *Bar { return m.bars[id] }

// Joints returns every joint ordered by ascending id (deterministic
// iteration is required throughout the engine, spec.md §8 "Round-trip
// / idempotence").
func (m *Model) Joints() []*Joint {
	out := make([]*Joint, 0, len(m.joints))
	for _, j := range m.joints {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// Bars returns every bar ordered by ascending id.
func (m *Model) Bars() []*Bar {
	out := make([]*Bar, 0, len(m.bars))
	for _, b := range m.bars {
		out = append(out, b)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

// NumJoints returns the number of joints (n in spec.md §4.2's gh formula).
func (m *Model) NumJoints() int { return len(m.joints) }

// SupportAt returns the support on joint id, or nil if unsupported.
func (m *Model) SupportAt(joint int) *Support {
	for i := range m.Supports {
		if m.Supports[i].Joint == joint {
			return &m.Supports[i]
		}
	}
	return nil
}

// Validate checks every invariant spec.md §7 requires to be caught
// before analysis starts. It re-derives nothing already enforced by
// the Add* methods; it exists mainly to validate a Model assembled by
// a caller that bypassed the builder (e.g. deserialized directly).
func (m *Model) Validate() error {
	for _, b := range m.bars {
		if b.L < geomTol {
			return ferr.New(ferr.ModelInvalid, barEntity(b.ID), "bar length %.3e is below tolerance", b.L)
		}
		mat := m.materials[b.Material]
		if mat == nil || mat.E <= 0 {
			return ferr.New(ferr.ModelInvalid, barEntity(b.ID), "bar references material with non-positive E")
		}
		sec := m.sections[b.Section]
		if sec == nil || sec.A <= 0 || sec.Iz <= 0 {
			return ferr.New(ferr.ModelInvalid, barEntity(b.ID), "bar references section with non-positive A or Iz")
		}
	}
	for _, l := range m.Loads {
		switch v := l.(type) {
		case *BarPointLoad:
			bar := m.bars[v.Bar]
			if bar == nil {
				return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "bar-point load references non-existent bar")
			}
			if v.A < 0 || v.A > bar.L {
				return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "bar-point load distance a=%g outside [0,%g]", v.A, bar.L)
			}
		case *BarThermalLoad:
			bar := m.bars[v.Bar]
			if bar == nil {
				return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "thermal load references non-existent bar")
			}
			if v.DeltaTGradient != 0 && m.sections[bar.Section].H <= 0 {
				return ferr.New(ferr.ModelInvalid, barEntity(v.Bar), "thermal-gradient load needs a section with positive depth H")
			}
		}
	}
	return nil
}

func jointEntity(id int) string    { return "joint " + strconv.Itoa(id) }
func materialEntity(id int) string { return "material " + strconv.Itoa(id) }
func sectionEntity(id int) string  { return "section " + strconv.Itoa(id) }
func barEntity(id int) string      { return "bar " + strconv.Itoa(id) }
