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

package sbt

import (
	"math/rand"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kernel"
)

// Kernel binds a similarity kernel function to the caller-supplied random
// source used for deterministic tie-breaking (Design Notes: "take the RNG
// as an explicit parameter ... do not use a hidden global").
type Kernel struct {
	Fn     kernel.Kernel
	Rng    *rand.Rand
	Prefix uint
}

// Sim compares a and b under the bound kernel and prefix.
func (k Kernel) Sim(a, b *bitfilter.Filter) float64 {
	return k.Fn(a, b, k.Prefix, k.Rng)
}

// WithPrefix returns a copy of k restricted to the first n bits of any
// filter it compares. The tree's own kernel has no prefix set, so greedy
// and clustering insertion compare filters over their full length.
func (k Kernel) WithPrefix(n uint) Kernel {
	k.Prefix = n
	return k
}
