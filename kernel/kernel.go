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

// Package kernel provides the pluggable bit-vector similarity functions used
// to decide, during greedy and clustering insertion, which child subtree a
// new leaf is most alike.
package kernel

import (
	"math"
	"math/rand"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
)

// perturbScale bounds the tie-breaking jitter every kernel call adds, per
// the source's "small pertubations to break ties" comment on its SSBT
// similarity function. It is the only source of randomness in insertion
// ordering, and it is always drawn from a caller-supplied *rand.Rand so that
// tree construction stays reproducible across runs given the same seed.
const perturbScale = 1e-9

// Kernel computes a similarity score between two equal-length filters;
// higher means more similar. prefix, when non-zero, restricts the
// comparison to the first prefix bits of each filter. rng supplies the
// tie-breaking perturbation.
type Kernel func(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64

func clip(a, b *bitfilter.Filter, prefix uint) (*bitfilter.Filter, *bitfilter.Filter) {
	if prefix == 0 {
		return a, b
	}
	return a.Slice(prefix), b.Slice(prefix)
}

func perturb(rng *rand.Rand) float64 {
	return (rng.Float64()*2 - 1) * perturbScale
}

// Hamming returns the negative popcount of the XOR of a and b: the fewer
// bits differ, the higher (less negative) the score.
func Hamming(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64 {
	a, b = clip(a, b, prefix)
	diff := a.Copy()
	_ = diff.Xor(b)
	return -float64(diff.Popcount()) + perturb(rng)
}

// Cosine returns |A∩B| / sqrt(|A|*|B|), or 0 (plus jitter) if either operand
// is empty.
func Cosine(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64 {
	a, b = clip(a, b, prefix)
	ca, cb := float64(a.Popcount()), float64(b.Popcount())
	if ca == 0 || cb == 0 {
		return perturb(rng)
	}
	inter := a.Copy()
	_ = inter.And(b)
	return float64(inter.Popcount())/math.Sqrt(ca*cb) + perturb(rng)
}

// Jaccard returns 1 - |A∩B|/|A∪B| as stated by the source (lower set
// overlap yields a higher raw value there); callers that want the
// conventional Jaccard index should negate the comparison sense, but this
// implementation preserves the source's literal formula so greedy insertion
// descends exactly as the reference does.
func Jaccard(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64 {
	a, b = clip(a, b, prefix)
	inter := a.Copy()
	_ = inter.And(b)
	union, _ := bitfilter.Or2(a, b)
	un := float64(union.Popcount())
	if un == 0 {
		return 1 + perturb(rng)
	}
	return 1-float64(inter.Popcount())/un + perturb(rng)
}

// Manhattan returns the negative of |A| + |B| - 2*|A∩B|, the number of bit
// positions that differ between the two sets when counted as set sizes: the
// fewer bits differ, the higher (less negative) the score.
func Manhattan(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64 {
	a, b = clip(a, b, prefix)
	inter := a.Copy()
	_ = inter.And(b)
	return -(float64(a.Popcount()+b.Popcount()) - 2*float64(inter.Popcount())) + perturb(rng)
}

// Euclidean returns the negative of sqrt(|A|+|B|-2|A∩B|).
func Euclidean(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64 {
	a, b = clip(a, b, prefix)
	inter := a.Copy()
	_ = inter.And(b)
	m := float64(a.Popcount()+b.Popcount()) - 2*float64(inter.Popcount())
	if m < 0 {
		m = 0
	}
	return -math.Sqrt(m) + perturb(rng)
}

// Dice returns 2*|A∩B| / (|A|+|B|).
func Dice(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64 {
	a, b = clip(a, b, prefix)
	inter := a.Copy()
	_ = inter.And(b)
	denom := float64(a.Popcount() + b.Popcount())
	if denom == 0 {
		return perturb(rng)
	}
	return 2*float64(inter.Popcount())/denom + perturb(rng)
}

// Tanimoto returns |A∩B| / (|A|+|B|-|A∩B|).
func Tanimoto(a, b *bitfilter.Filter, prefix uint, rng *rand.Rand) float64 {
	a, b = clip(a, b, prefix)
	inter := a.Copy()
	_ = inter.And(b)
	c := float64(inter.Popcount())
	denom := float64(a.Popcount()) + float64(b.Popcount()) - c
	if denom == 0 {
		return perturb(rng)
	}
	return c/denom + perturb(rng)
}

// ByName resolves one of the required kernels by the names the CLI harness
// and parameter maps use ("hamming", "cosine", "jaccard", "manhattan",
// "euclidean", "dice", "tanimoto"). ok is false for an unrecognized name.
func ByName(name string) (Kernel, bool) {
	switch name {
	case "hamming":
		return Hamming, true
	case "cosine":
		return Cosine, true
	case "jaccard":
		return Jaccard, true
	case "manhattan":
		return Manhattan, true
	case "euclidean":
		return Euclidean, true
	case "dice":
		return Dice, true
	case "tanimoto":
		return Tanimoto, true
	default:
		return nil, false
	}
}
