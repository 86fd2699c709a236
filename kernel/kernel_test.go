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

package kernel_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kernel"
)

func filterFromBits(m uint, bits ...uint) *bitfilter.Filter {
	f := bitfilter.New(m)
	for _, b := range bits {
		f.Set(b)
	}
	return f
}

func Test_HammingIdenticalIsHighest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(8, 0, 1, 2)
	b := filterFromBits(8, 0, 1, 2)
	c := filterFromBits(8, 7)

	same := kernel.Hamming(a, b, 0, rng)
	diff := kernel.Hamming(a, c, 0, rng)
	assert.Greater(t, same, diff)
}

func Test_CosineIdenticalIsOne(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(8, 0, 1, 2)
	b := filterFromBits(8, 0, 1, 2)

	sim := kernel.Cosine(a, b, 0, rng)
	assert.InDelta(t, 1.0, sim, 1e-6)
}

func Test_CosineEmptyIsJitterOnly(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := bitfilter.New(8)
	b := bitfilter.New(8)
	sim := kernel.Cosine(a, b, 0, rng)
	assert.InDelta(t, 0, sim, 1e-8)
}

func Test_JaccardDisjointIsNearOne(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(8, 0, 1)
	b := filterFromBits(8, 6, 7)
	sim := kernel.Jaccard(a, b, 0, rng)
	assert.InDelta(t, 1.0, sim, 1e-6)
}

func Test_ManhattanAndEuclideanConsistency(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(8, 0, 1, 2, 3)
	b := filterFromBits(8, 2, 3, 4, 5)

	m := kernel.Manhattan(a, b, 0, rng)
	e := kernel.Euclidean(a, b, 0, rng)
	assert.Less(t, m, 0.0)
	assert.Less(t, e, 0.0)
}

func Test_ManhattanIdenticalIsHighest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(8, 0, 1, 2)
	b := filterFromBits(8, 0, 1, 2)
	c := filterFromBits(8, 7)

	same := kernel.Manhattan(a, b, 0, rng)
	diff := kernel.Manhattan(a, c, 0, rng)
	assert.Greater(t, same, diff)
}

func Test_EuclideanIdenticalIsHighest(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(8, 0, 1, 2)
	b := filterFromBits(8, 0, 1, 2)
	c := filterFromBits(8, 7)

	same := kernel.Euclidean(a, b, 0, rng)
	diff := kernel.Euclidean(a, c, 0, rng)
	assert.Greater(t, same, diff)
}

func Test_DiceAndTanimotoBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(8, 0, 1, 2)
	b := filterFromBits(8, 0, 1, 2)

	dice := kernel.Dice(a, b, 0, rng)
	tanimoto := kernel.Tanimoto(a, b, 0, rng)
	assert.InDelta(t, 1.0, dice, 1e-6)
	assert.InDelta(t, 1.0, tanimoto, 1e-6)
}

func Test_PrefixRestrictsComparison(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a := filterFromBits(16, 0, 15)
	b := filterFromBits(16, 0)

	full := kernel.Hamming(a, b, 0, rng)
	prefixed := kernel.Hamming(a, b, 4, rng)
	assert.Greater(t, prefixed, full)
}

func Test_ByName(t *testing.T) {
	for _, name := range []string{"hamming", "cosine", "jaccard", "manhattan", "euclidean", "dice", "tanimoto"} {
		fn, ok := kernel.ByName(name)
		assert.True(t, ok, name)
		assert.NotNil(t, fn)
	}
	_, ok := kernel.ByName("nonexistent")
	assert.False(t, ok)
}
