// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bound

import (
	"fmt"
	"math"
	"slices"

	"go.uber.org/multierr"

	"github.com/curioloop/optimpack/vector"
)

type limitKind int

const (
	unbounded limitKind = iota
	scalar
	componentwise
)

// Limit is one side of a box: absent, the same value for every variable or
// one value per variable.
type Limit struct {
	kind   limitKind
	value  float64
	values *vector.Vector
}

// NoLimit returns an absent bound.
func NoLimit() Limit { return Limit{} }

// ScalarLimit returns the same bound v for every variable. An infinite v is
// equivalent to NoLimit on the side it points to.
func ScalarLimit(v float64) Limit { return Limit{kind: scalar, value: v} }

// VectorLimit returns one bound per variable. v is copied.
func VectorLimit(v *vector.Vector) Limit {
	if v == nil {
		return Limit{kind: componentwise}
	}
	return Limit{kind: componentwise, values: v.Clone()}
}

// side is a validated Limit with an O(1) component accessor.
type side struct {
	kind   limitKind
	value  float64
	values []float64
}

func (s side) at(i int) float64 {
	if s.values != nil {
		return s.values[i]
	}
	return s.value
}

// newSide validates l as the lower (sign=-1) or upper (sign=+1) side.
func newSide(sp *vector.Space, l Limit, sign float64, name string) (side, error) {
	none := side{kind: unbounded, value: math.Inf(int(sign))}
	switch l.kind {
	case unbounded:
		return none, nil
	case scalar:
		switch {
		case math.IsNaN(l.value):
			return none, fmt.Errorf("%w: %s bound is NaN", ErrInvalidArgument, name)
		case math.IsInf(l.value, int(sign)):
			return none, nil
		case math.IsInf(l.value, -int(sign)):
			return none, fmt.Errorf("%w: %s bound is %g", ErrInfeasible, name, l.value)
		}
		return side{kind: scalar, value: l.value}, nil
	case componentwise:
		if l.values == nil {
			return none, fmt.Errorf("%w: nil %s bound vector", ErrInvalidArgument, name)
		}
		if l.values.Space() != sp {
			return none, fmt.Errorf("%s bound: %w", name, vector.ErrIncorrectSpace)
		}
		data := slices.Clone(l.values.Data())
		for i, v := range data {
			if math.IsNaN(v) {
				return none, fmt.Errorf("%w: %s bound %d is NaN", ErrInvalidArgument, name, i)
			}
			if math.IsInf(v, -int(sign)) {
				return none, fmt.Errorf("%w: %s bound %d is %g", ErrInfeasible, name, i, v)
			}
		}
		return side{kind: componentwise, values: data}, nil
	}
	return none, fmt.Errorf("%w: unknown %s bound kind", ErrInvalidArgument, name)
}

// Box is the feasible set {x : lower ≤ x ≤ upper}. Every operation accepts
// an output vector equal to one of its inputs.
type Box struct {
	space        *vector.Space
	lower, upper side
}

// NewLowerBound returns the set {x : x ≥ lower}.
func NewLowerBound(space *vector.Space, lower Limit) (*Box, error) {
	return NewGeneralBounds(space, lower, NoLimit())
}

// NewUpperBound returns the set {x : x ≤ upper}.
func NewUpperBound(space *vector.Space, upper Limit) (*Box, error) {
	return NewGeneralBounds(space, NoLimit(), upper)
}

// NewBounds returns the set {x : lower ≤ xᵢ ≤ upper}.
func NewBounds(space *vector.Space, lower, upper float64) (*Box, error) {
	return NewGeneralBounds(space, ScalarLimit(lower), ScalarLimit(upper))
}

// NewGeneralBounds returns the set {x : lower ≤ x ≤ upper} for any
// combination of absent, scalar and vector limits.
func NewGeneralBounds(space *vector.Space, lower, upper Limit) (*Box, error) {
	if space == nil {
		return nil, fmt.Errorf("%w: nil space", ErrInvalidArgument)
	}
	b := &Box{space: space}
	if err := b.set(lower, upper); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Box) set(lower, upper Limit) error {
	lo, errLo := newSide(b.space, lower, -1, "lower")
	hi, errHi := newSide(b.space, upper, +1, "upper")
	if err := multierr.Combine(errLo, errHi); err != nil {
		return err
	}
	for i := 0; i < b.space.Dimension(); i++ {
		if lo.at(i) > hi.at(i) {
			return fmt.Errorf("%w: lower bound %g > upper bound %g at %d", ErrInfeasible, lo.at(i), hi.at(i), i)
		}
		if lo.kind != componentwise && hi.kind != componentwise {
			break
		}
	}
	b.lower, b.upper = lo, hi
	return nil
}

func (b *Box) Space() *vector.Space { return b.space }

// Lower returns the lower bound of variable i, -Inf when absent.
func (b *Box) Lower(i int) float64 { return b.lower.at(i) }

// Upper returns the upper bound of variable i, +Inf when absent.
func (b *Box) Upper(i int) float64 { return b.upper.at(i) }

// Bounded reports whether at least one side is present.
func (b *Box) Bounded() bool {
	return b.lower.kind != unbounded || b.upper.kind != unbounded
}

// Contains reports whether x is feasible.
func (b *Box) Contains(x *vector.Vector) bool {
	if !b.space.Owns(x) {
		return false
	}
	for i, xi := range x.Data() {
		if xi < b.lower.at(i) || xi > b.upper.at(i) {
			return false
		}
	}
	return true
}

// Activity returns the number of components of x lying on or beyond a bound
// and whether x is feasible.
func (b *Box) Activity(x *vector.Vector) (active int, feasible bool, err error) {
	if err = b.space.Check(x); err != nil {
		return 0, false, err
	}
	feasible = true
	for i, xi := range x.Data() {
		lo, hi := b.lower.at(i), b.upper.at(i)
		if xi <= lo || xi >= hi {
			active++
			feasible = feasible && xi >= lo && xi <= hi
		}
	}
	return active, feasible, nil
}

// ProjectVariables clamps x into the box:
//
//	𝚙𝚛𝚘𝚓 xᵢ = uᵢ    if xᵢ > uᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = lᵢ    if xᵢ < lᵢ
//	𝚙𝚛𝚘𝚓 xᵢ = xᵢ    otherwise
func (b *Box) ProjectVariables(dst, x *vector.Vector) error {
	if err := b.space.Check(dst, x); err != nil {
		return err
	}
	out := dst.Data()
	for i, xi := range x.Data() {
		out[i] = math.Min(math.Max(xi, b.lower.at(i)), b.upper.at(i))
	}
	return nil
}

// ProjectDirection zeroes the components of d pushing a variable already on
// its bound outside of the box.
func (b *Box) ProjectDirection(dst, x, d *vector.Vector, ascent bool) error {
	if err := b.space.Check(dst, x, d); err != nil {
		return err
	}
	out, xs := dst.Data(), x.Data()
	for i, di := range d.Data() {
		move := di
		if ascent {
			move = -di
		}
		if (move < 0 && xs[i] <= b.lower.at(i)) || (move > 0 && xs[i] >= b.upper.at(i)) {
			di = 0
		}
		out[i] = di
	}
	return nil
}

// StepBounds implements BoundProjector.
func (b *Box) StepBounds(x, d *vector.Vector, ascent bool) (smin, smax float64, err error) {
	if err = b.space.Check(x, d); err != nil {
		return 0, 0, err
	}
	smin, smax = math.Inf(1), 0
	moving := false
	xs := x.Data()
	for i, di := range d.Data() {
		move := di
		if ascent {
			move = -di
		}
		var s float64
		switch {
		case move < 0:
			s = (xs[i] - b.lower.at(i)) / -move
		case move > 0:
			s = (b.upper.at(i) - xs[i]) / move
		default:
			continue
		}
		moving = true
		s = math.Max(s, 0)
		smin = math.Min(smin, s)
		smax = math.Max(smax, s)
	}
	if !moving {
		smax = math.Inf(1)
	}
	return smin, smax, nil
}

// BoxedSet is a Box whose bounds can be replaced between solves.
type BoxedSet struct {
	Box
}

// NewBoxedSet returns an unbounded set of the space.
func NewBoxedSet(space *vector.Space) (*BoxedSet, error) {
	b, err := NewGeneralBounds(space, NoLimit(), NoLimit())
	if err != nil {
		return nil, err
	}
	return &BoxedSet{Box: *b}, nil
}

// SetLower replaces the lower bound. The set is unchanged on error.
func (b *BoxedSet) SetLower(lower Limit) error {
	return b.set(lower, b.limit(b.upper))
}

// SetUpper replaces the upper bound. The set is unchanged on error.
func (b *BoxedSet) SetUpper(upper Limit) error {
	return b.set(b.limit(b.lower), upper)
}

func (b *BoxedSet) limit(s side) Limit {
	switch s.kind {
	case scalar:
		return ScalarLimit(s.value)
	case componentwise:
		v, _ := b.space.Wrap(s.values)
		return VectorLimit(v)
	}
	return NoLimit()
}
