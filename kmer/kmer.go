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

// Package kmer extracts the overlapping length-k substrings of a sequence.
package kmer

import "math/rand"

// Extract returns the ordered, non-deduplicated k-mers of seq: seq[i:i+k]
// for i in [0, len(seq)-k]. It panics if k is not positive or larger than
// len(seq), since the count would be non-positive. The sbt package's insert
// and query methods pass their input through without checking its length.
func Extract(seq []byte, k int) [][]byte {
	if k <= 0 || k > len(seq) {
		panic("kmer: k must be in (0, len(seq)]")
	}
	n := len(seq) - k + 1
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		out[i] = seq[i : i+k]
	}
	return out
}

// Sample independently keeps each k-mer of seq with probability rho, using
// rng to draw the keep/drop decision per position. rng is an explicit,
// caller-owned source so that sampled extraction stays reproducible under
// test; Sample never reaches for a package-global generator.
//
// rho must be in (0, 1]. rho == 1 is equivalent to Extract.
func Sample(seq []byte, k int, rho float64, rng *rand.Rand) [][]byte {
	if rho >= 1 {
		return Extract(seq, k)
	}
	if k <= 0 || k > len(seq) {
		panic("kmer: k must be in (0, len(seq)]")
	}
	n := len(seq) - k + 1
	out := make([][]byte, 0, int(float64(n)*rho)+1)
	for i := 0; i < n; i++ {
		if rng.Float64() < rho {
			out = append(out, seq[i:i+k])
		}
	}
	return out
}

// Count returns the number of k-mers a sequence of length L yields for a
// given k, i.e. L-k+1, or 0 when k is not positive or exceeds L.
func Count(seqLen, k int) int {
	if k <= 0 || k > seqLen {
		return 0
	}
	return seqLen - k + 1
}
