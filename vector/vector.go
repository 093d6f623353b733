// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vector

import "slices"

// Vector is an element of a Space.
type Vector struct {
	space *Space
	data  []float64
}

// Space returns the space the vector belongs to.
func (v *Vector) Space() *Space { return v.space }

// Data returns the backing slice of the vector.
func (v *Vector) Data() []float64 { return v.data }

// Len returns the number of components.
func (v *Vector) Len() int { return len(v.data) }

// At returns the i-th component.
func (v *Vector) At(i int) float64 { return v.data[i] }

// Set sets the i-th component.
func (v *Vector) Set(i int, val float64) { v.data[i] = val }

// Fill sets every component to val.
func (v *Vector) Fill(val float64) {
	for i := range v.data {
		v.data[i] = val
	}
}

// Clone returns a copy of v in the same space.
func (v *Vector) Clone() *Vector {
	return &Vector{space: v.space, data: slices.Clone(v.data)}
}
