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

// Package khash supplies the deterministic, seedable hash functions that
// nodes use to map k-mers onto filter bit positions.
//
// The reference implementation this module was distilled from used
// language-native string hashing, which is explicitly non-portable and
// unsuited to a serialized index that must remain queryable across
// processes. This package replaces it with seeded xxhash checksums, the same
// hash family the teacher project uses for its event-type lookup tables.
package khash

import "github.com/OneOfOne/xxhash"

// Func maps a k-mer to an unbounded 64-bit digest. Node filters reduce the
// digest modulo the filter length themselves; Func never knows m.
type Func func(kmer []byte) uint64

// Seeded returns a Func that computes a seeded xxhash64 checksum. Two Funcs
// built from different seeds are independent for the purposes of a
// multi-hash-function filter (Base node, H>1).
func Seeded(seed uint64) Func {
	return func(kmer []byte) uint64 {
		return xxhash.Checksum64S(kmer, seed)
	}
}

// Family returns n independent seeded hash functions, seeded 0..n-1. This is
// the default hash family for a new tree: deterministic across runs and
// across processes, unlike the reference's use of Python's hash().
func Family(n int) []Func {
	fns := make([]Func, n)
	for i := range fns {
		fns[i] = Seeded(uint64(i))
	}
	return fns
}

// Index reduces a k-mer's digest under fn to a bit position in [0, m).
func Index(fn Func, kmer []byte, m uint) uint {
	if m == 0 {
		return 0
	}
	return uint(fn(kmer) % uint64(m))
}
