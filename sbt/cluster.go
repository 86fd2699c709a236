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
	"fmt"
	"math"
)

// Experiment is a single named input to a batch/cluster build: one
// sequence's k-mers become one leaf.
type Experiment struct {
	Name string
	Seq  []byte
}

// clusterAllSome implements Method 1 (AllSome): repeatedly merge the two
// currently most-similar nodes, anywhere in the working set, until one
// remains. It is the highest-quality, highest-cost bulk-builder: O(n^2)
// comparisons per round, O(n) rounds.
func clusterAllSome[T any](items []T, sim func(a, b T) float64, merge func(id uint64, a, b T) (T, error), nextID func() uint64) (T, error) {
	nodes := append([]T(nil), items...)
	for len(nodes) > 1 {
		bestI, bestJ := 0, 1
		bestSim := math.Inf(-1)
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				if s := sim(nodes[i], nodes[j]); s > bestSim {
					bestSim, bestI, bestJ = s, i, j
				}
			}
		}
		merged, err := merge(nextID(), nodes[bestI], nodes[bestJ])
		if err != nil {
			var zero T
			return zero, err
		}
		nodes = append(nodes[:bestJ], nodes[bestJ+1:]...)
		nodes[bestI] = merged
	}
	return nodes[0], nil
}

// clusterLevelPairing implements Method 2 (LevelPairing): each round
// greedily pairs off every node with its best still-unused partner in the
// same round, halving the working set each time. This bounds the resulting
// tree's height at ceil(log2 n), trading AllSome's global optimality for
// a single O(n^2) pass per level instead of per merge.
func clusterLevelPairing[T any](items []T, sim func(a, b T) float64, merge func(id uint64, a, b T) (T, error), nextID func() uint64) (T, error) {
	level := append([]T(nil), items...)
	for len(level) > 1 {
		used := make([]bool, len(level))
		next := make([]T, 0, (len(level)+1)/2)
		for i := range level {
			if used[i] {
				continue
			}
			bestJ := -1
			bestSim := math.Inf(-1)
			for j := i + 1; j < len(level); j++ {
				if used[j] {
					continue
				}
				if s := sim(level[i], level[j]); s > bestSim {
					bestSim, bestJ = s, j
				}
			}
			used[i] = true
			if bestJ == -1 {
				next = append(next, level[i])
				continue
			}
			used[bestJ] = true
			merged, err := merge(nextID(), level[i], level[bestJ])
			if err != nil {
				var zero T
				return zero, err
			}
			next = append(next, merged)
		}
		level = next
	}
	return level[0], nil
}

func (t *Tree) buildBaseLeaves(exps []Experiment) []*BaseNode {
	leaves := make([]*BaseNode, len(exps))
	for i, exp := range exps {
		leaf := newBaseLeaf(t.newID(), exp.Name, t.m)
		for _, km := range t.extractKmers(exp.Seq) {
			leaf.insertKmer(t.hashFns, t.m, km)
		}
		t.persistLeaf(exp.Name, leaf.bf.Bytes())
		leaves[i] = leaf
	}
	return leaves
}

func (t *Tree) buildSplitLeaves(exps []Experiment) []*SplitNode {
	leaves := make([]*SplitNode, len(exps))
	for i, exp := range exps {
		leaf := newSplitLeaf(t.newID(), exp.Name, t.m)
		for _, km := range t.extractKmers(exp.Seq) {
			leaf.insertKmer(t.hashFns[0], t.m, km)
		}
		t.persistLeaf(exp.Name, leaf.sim.Bytes())
		leaves[i] = leaf
	}
	return leaves
}

func (t *Tree) buildHowDeLeaves(exps []Experiment) []*HowDeNode {
	leaves := make([]*HowDeNode, len(exps))
	for i, exp := range exps {
		leaf := newHowDeLeaf(t.newID(), exp.Name, t.m)
		for _, km := range t.extractKmers(exp.Seq) {
			leaf.insertKmer(t.hashFns[0], t.m, km)
		}
		t.persistLeaf(exp.Name, leaf.how.Bytes())
		leaves[i] = leaf
	}
	return leaves
}

// InsertClusterAllSome discards any existing tree and bulk-builds a new one
// from exps using Method 1 (AllSome): repeatedly merge the globally
// most-similar pair of roots. It returns ErrInvalidConfiguration if exps is
// empty.
func (t *Tree) InsertClusterAllSome(exps []Experiment) error {
	if len(exps) == 0 {
		return fmt.Errorf("%w: cluster build requires at least one experiment", ErrInvalidConfiguration)
	}
	t.log.Debug().Int("experiments", len(exps)).Msg("clustering tree (AllSome)")
	switch t.variant {
	case Base:
		leaves := t.buildBaseLeaves(exps)
		root, err := clusterAllSome(leaves,
			func(a, b *BaseNode) float64 { return t.kernel.Sim(a.bf, b.bf) },
			baseFromChildren, t.newID)
		if err != nil {
			return err
		}
		t.rootBase = root
	case Split:
		leaves := t.buildSplitLeaves(exps)
		root, err := clusterAllSome(leaves,
			func(a, b *SplitNode) float64 { return t.kernel.Sim(a.sim, b.sim) },
			splitFromChildren, t.newID)
		if err != nil {
			return err
		}
		t.rootSplit = root
	case HowDe:
		leaves := t.buildHowDeLeaves(exps)
		root, err := clusterAllSome(leaves,
			func(a, b *HowDeNode) float64 { return t.kernel.Sim(a.how, b.how) },
			howdeFromChildren, t.newID)
		if err != nil {
			return err
		}
		t.rootHowDe = root
	default:
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
	return nil
}

// InsertClusterLevelPairing discards any existing tree and bulk-builds a new
// one from exps using Method 2 (LevelPairing), bounding tree height at
// ceil(log2 len(exps)). It returns ErrInvalidConfiguration if exps is empty.
func (t *Tree) InsertClusterLevelPairing(exps []Experiment) error {
	if len(exps) == 0 {
		return fmt.Errorf("%w: cluster build requires at least one experiment", ErrInvalidConfiguration)
	}
	t.log.Debug().Int("experiments", len(exps)).Msg("clustering tree (LevelPairing)")
	switch t.variant {
	case Base:
		leaves := t.buildBaseLeaves(exps)
		root, err := clusterLevelPairing(leaves,
			func(a, b *BaseNode) float64 { return t.kernel.Sim(a.bf, b.bf) },
			baseFromChildren, t.newID)
		if err != nil {
			return err
		}
		t.rootBase = root
	case Split:
		leaves := t.buildSplitLeaves(exps)
		root, err := clusterLevelPairing(leaves,
			func(a, b *SplitNode) float64 { return t.kernel.Sim(a.sim, b.sim) },
			splitFromChildren, t.newID)
		if err != nil {
			return err
		}
		t.rootSplit = root
	case HowDe:
		leaves := t.buildHowDeLeaves(exps)
		root, err := clusterLevelPairing(leaves,
			func(a, b *HowDeNode) float64 { return t.kernel.Sim(a.how, b.how) },
			howdeFromChildren, t.newID)
		if err != nil {
			return err
		}
		t.rootHowDe = root
	default:
		return fmt.Errorf("%w: unknown variant %d", ErrInvalidConfiguration, t.variant)
	}
	return nil
}
