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

package kmer_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kmer"
)

func Test_Extract(t *testing.T) {
	kmers := kmer.Extract([]byte("ACGTACGT"), 3)
	require.Len(t, kmers, 6)
	assert.Equal(t, "ACG", string(kmers[0]))
	assert.Equal(t, "CGT", string(kmers[1]))
	assert.Equal(t, "CGT", string(kmers[5]))
}

func Test_ExtractPanicsOnBadK(t *testing.T) {
	assert.Panics(t, func() { kmer.Extract([]byte("AC"), 0) })
	assert.Panics(t, func() { kmer.Extract([]byte("AC"), 5) })
}

func Test_SampleFullRhoMatchesExtract(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seq := []byte("ACGTACGTACGT")
	extracted := kmer.Extract(seq, 4)
	sampled := kmer.Sample(seq, 4, 1.0, rng)
	assert.Equal(t, len(extracted), len(sampled))
}

func Test_SampleZeroRhoYieldsNone(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seq := []byte("ACGTACGTACGT")
	sampled := kmer.Sample(seq, 4, 0, rng)
	assert.Empty(t, sampled)
}

func Test_SampleDeterministicPerSeed(t *testing.T) {
	seq := []byte("ACGTACGTACGTACGTACGT")
	a := kmer.Sample(seq, 4, 0.5, rand.New(rand.NewSource(42)))
	b := kmer.Sample(seq, 4, 0.5, rand.New(rand.NewSource(42)))
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, string(a[i]), string(b[i]))
	}
}

func Test_Count(t *testing.T) {
	assert.Equal(t, 6, kmer.Count(8, 3))
	assert.Equal(t, 0, kmer.Count(2, 3))
}
