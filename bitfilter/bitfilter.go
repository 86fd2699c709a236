// Copyright 2021 Optakt Labs OÜ
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

// Package bitfilter implements the fixed-length bit vector that backs every
// node filter in the tree (Base.bf, Split.sim/rem, HowDe.how/det/union).
package bitfilter

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Filter is a fixed-length bit vector. All filters that participate in the
// same tree share the same length; mixing filters of different lengths is a
// caller error and is rejected by the operations that combine two filters.
type Filter struct {
	bits *bitset.BitSet
	m    uint
}

// New returns a filter of length m with every bit cleared.
func New(m uint) *Filter {
	return &Filter{bits: bitset.New(m), m: m}
}

// Len returns the filter's fixed bit length.
func (f *Filter) Len() uint {
	return f.m
}

// Set turns bit i on.
func (f *Filter) Set(i uint) {
	f.bits.Set(i)
}

// Test reports whether bit i is on.
func (f *Filter) Test(i uint) bool {
	return f.bits.Test(i)
}

// Copy returns a deep copy that shares no storage with f.
func (f *Filter) Copy() *Filter {
	return &Filter{bits: f.bits.Clone(), m: f.m}
}

// Popcount returns the number of bits set.
func (f *Filter) Popcount() uint {
	return f.bits.Count()
}

// Slice returns a new filter holding only bits [0, n) of f, padded with
// cleared bits up to n if n exceeds f.Len(). Used by similarity kernels'
// prefix argument during clustering insertion.
func (f *Filter) Slice(n uint) *Filter {
	out := New(n)
	limit := n
	if f.m < limit {
		limit = f.m
	}
	for i := uint(0); i < limit; i++ {
		if f.bits.Test(i) {
			out.bits.Set(i)
		}
	}
	return out
}

func (f *Filter) checkCompatible(other *Filter) error {
	if f.m != other.m {
		return fmt.Errorf("filter length mismatch: %d != %d", f.m, other.m)
	}
	return nil
}

// Or ORs other into f in place (f |= other).
func (f *Filter) Or(other *Filter) error {
	if err := f.checkCompatible(other); err != nil {
		return err
	}
	f.bits.InPlaceUnion(other.bits)
	return nil
}

// And ANDs other into f in place (f &= other).
func (f *Filter) And(other *Filter) error {
	if err := f.checkCompatible(other); err != nil {
		return err
	}
	f.bits.InPlaceIntersection(other.bits)
	return nil
}

// Xor XORs other into f in place (f ^= other).
func (f *Filter) Xor(other *Filter) error {
	if err := f.checkCompatible(other); err != nil {
		return err
	}
	f.bits.InPlaceSymmetricDifference(other.bits)
	return nil
}

// AndNot clears every bit in f that is set in other (f &= ^other).
func (f *Filter) AndNot(other *Filter) error {
	if err := f.checkCompatible(other); err != nil {
		return err
	}
	f.bits.InPlaceDifference(other.bits)
	return nil
}

// Not returns the bitwise complement of f as a new filter.
func (f *Filter) Not() *Filter {
	return &Filter{bits: f.bits.Complement(), m: f.m}
}

// Or2 returns a new filter holding a | b without mutating either operand.
func Or2(a, b *Filter) (*Filter, error) {
	if err := a.checkCompatible(b); err != nil {
		return nil, err
	}
	return &Filter{bits: a.bits.Union(b.bits), m: a.m}, nil
}

// And2 returns a new filter holding a & b without mutating either operand.
func And2(a, b *Filter) (*Filter, error) {
	if err := a.checkCompatible(b); err != nil {
		return nil, err
	}
	return &Filter{bits: a.bits.Intersection(b.bits), m: a.m}, nil
}

// Bytes returns the raw little-endian word bytes, for serialization.
func (f *Filter) Bytes() []byte {
	words := f.bits.Bytes()
	out := make([]byte, len(words)*8)
	for i, w := range words {
		for b := 0; b < 8; b++ {
			out[i*8+b] = byte(w >> (8 * b))
		}
	}
	return out
}

// FromBytes rebuilds a filter of length m from the byte layout produced by
// Bytes.
func FromBytes(m uint, raw []byte) *Filter {
	nWords := (len(raw) + 7) / 8
	words := make([]uint64, nWords)
	for i := range words {
		var w uint64
		for b := 0; b < 8 && i*8+b < len(raw); b++ {
			w |= uint64(raw[i*8+b]) << (8 * b)
		}
		words[i] = w
	}
	return &Filter{bits: bitset.From(words), m: m}
}

// String renders the filter as a dense "0101..." bitstring in bit index
// order (bit 0 first), for debug dumps and Graphviz bit-mode rendering.
func (f *Filter) String() string {
	buf := make([]byte, f.m)
	for i := uint(0); i < f.m; i++ {
		if f.bits.Test(i) {
			buf[i] = '1'
		} else {
			buf[i] = '0'
		}
	}
	return string(buf)
}
