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

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/bitfilter"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/khash"
)

// SplitNode is the Split-SBT (SSBT) node variant: a leaf holds only sim
// (its own bits); an inner node holds sim (bits set in every descendant
// leaf and not already resolved by an ancestor) and rem (bits set in some
// but not all descendants, relative to bits not already resolved above).
type SplitNode struct {
	id    uint64
	name  string
	sim   *bitfilter.Filter
	rem   *bitfilter.Filter // nil at a leaf
	left  *SplitNode
	right *SplitNode
}

func newSplitLeaf(id uint64, name string, m uint) *SplitNode {
	return &SplitNode{id: id, name: name, sim: bitfilter.New(m)}
}

func (n *SplitNode) ID() uint64   { return n.id }
func (n *SplitNode) Name() string { return n.name }

func (n *SplitNode) LeftChild() Node {
	if n.left == nil {
		return nil
	}
	return n.left
}

func (n *SplitNode) RightChild() Node {
	if n.right == nil {
		return nil
	}
	return n.right
}

func (n *SplitNode) copyLeaf() *SplitNode {
	return &SplitNode{id: n.id, name: n.name, sim: n.sim.Copy()}
}

func (n *SplitNode) insertKmer(hashFn khash.Func, m uint, kmer []byte) {
	n.sim.Set(khash.Index(hashFn, kmer, m))
}

// insertExperiment implements the SSBT greedy fold-and-descend of §4.D.
func (n *SplitNode) insertExperiment(leaf *SplitNode, nextID func() uint64) error {
	if n.left == nil && n.right == nil {
		clone := n.copyLeaf()
		n.id = nextID()
		n.name = fmt.Sprintf("I%d", n.id)

		newSim, err := bitfilter.And2(n.sim, leaf.sim)
		if err != nil {
			return err
		}
		notNewSim := newSim.Not()
		leftRem := n.sim.Copy()
		_ = leftRem.And(notNewSim)
		rightRem := leaf.sim.Copy()
		_ = rightRem.And(notNewSim)
		rem, err := bitfilter.Or2(leftRem, rightRem)
		if err != nil {
			return err
		}

		_ = clone.sim.And(notNewSim)
		_ = leaf.sim.And(notNewSim)

		n.sim = newSim
		n.rem = rem
		n.left = clone
		n.right = leaf
		return nil
	}

	oldSim := n.sim.Copy()
	newSim, err := bitfilter.And2(n.sim, leaf.sim)
	if err != nil {
		return err
	}
	xorSim := n.sim.Copy()
	if err := xorSim.Xor(leaf.sim); err != nil {
		return err
	}
	newRem, err := bitfilter.Or2(n.rem, xorSim)
	if err != nil {
		return err
	}
	// push down bits in (old sim & ~leaf.sim) to both children.
	pushed := oldSim.Copy()
	_ = pushed.AndNot(leaf.sim)
	if err := n.left.sim.Or(pushed); err != nil {
		return err
	}
	if err := n.right.sim.Or(pushed); err != nil {
		return err
	}
	// strip bits resolved at this level from the incoming leaf.
	leafSim := leaf.sim.Copy()
	_ = leafSim.AndNot(oldSim)

	n.sim = newSim
	n.rem = newRem
	leaf.sim = leafSim
	return nil
}

// descend picks the child more similar to leaf (by sim filter) using the
// already-stripped leaf.sim, matching the source's post-fold comparison.
func (n *SplitNode) descend(leaf *SplitNode, k Kernel) *SplitNode {
	if k.Sim(n.left.sim, leaf.sim) >= k.Sim(n.right.sim, leaf.sim) {
		return n.left
	}
	return n.right
}

func splitFromChildren(id uint64, left, right *SplitNode) (*SplitNode, error) {
	newSim, err := bitfilter.And2(left.sim, right.sim)
	if err != nil {
		return nil, err
	}
	unionSim, err := bitfilter.Or2(left.sim, right.sim)
	if err != nil {
		return nil, err
	}
	rem := unionSim.Copy()
	_ = rem.AndNot(newSim)
	if left.rem != nil {
		if err := rem.Or(left.rem); err != nil {
			return nil, err
		}
	}
	if right.rem != nil {
		if err := rem.Or(right.rem); err != nil {
			return nil, err
		}
	}

	if err := left.sim.AndNot(newSim); err != nil {
		return nil, err
	}
	if err := right.sim.AndNot(newSim); err != nil {
		return nil, err
	}

	return &SplitNode{id: id, name: fmt.Sprintf("I%d", id), sim: newSim, rem: rem, left: left, right: right}, nil
}

type splitClass int

const (
	splitMiss splitClass = iota
	splitHit
	splitPartial
)

func (n *SplitNode) classify(hashFn khash.Func, m uint, kmer []byte) splitClass {
	idx := khash.Index(hashFn, kmer, m)
	if n.sim.Test(idx) {
		return splitHit
	}
	if n.rem != nil && n.rem.Test(idx) {
		return splitPartial
	}
	return splitMiss
}

func (n *SplitNode) classifyIndex(idx uint) splitClass {
	if n.sim.Test(idx) {
		return splitHit
	}
	if n.rem != nil && n.rem.Test(idx) {
		return splitPartial
	}
	return splitMiss
}

// queryExperiment implements the SSBT pruning descent of §4.D.
func (n *SplitNode) queryExperiment(hashFn khash.Func, m uint, kmers [][]byte, tau int) []string {
	completeHits, completeMisses := 0, 0
	partial := make([][]byte, 0, len(kmers))
	for _, kmer := range kmers {
		switch n.classify(hashFn, m, kmer) {
		case splitHit:
			completeHits++
			if completeHits >= tau {
				return n.allLeafNames()
			}
		case splitPartial:
			partial = append(partial, kmer)
		default:
			completeMisses++
			if completeMisses > len(kmers)-tau {
				return nil
			}
		}
	}
	if IsLeaf(n) {
		return nil
	}
	remaining := tau - completeHits
	return append(n.left.queryExperiment(hashFn, m, partial, remaining), n.right.queryExperiment(hashFn, m, partial, remaining)...)
}

func (n *SplitNode) queryExperimentFast(hashFn khash.Func, indices []uint, tau int) []string {
	completeHits, completeMisses := 0, 0
	partial := make([]uint, 0, len(indices))
	for _, idx := range indices {
		switch n.classifyIndex(idx) {
		case splitHit:
			completeHits++
			if completeHits >= tau {
				return n.allLeafNames()
			}
		case splitPartial:
			partial = append(partial, idx)
		default:
			completeMisses++
			if completeMisses > len(indices)-tau {
				return nil
			}
		}
	}
	if IsLeaf(n) {
		return nil
	}
	remaining := tau - completeHits
	return append(n.left.queryExperimentFast(hashFn, partial, remaining), n.right.queryExperimentFast(hashFn, partial, remaining)...)
}

func (n *SplitNode) allLeafNames() []string {
	if IsLeaf(n) {
		return []string{n.name}
	}
	return append(n.left.allLeafNames(), n.right.allLeafNames()...)
}

// queryExperimentWeighted is the deduplicated, multiplicity-weighted fast
// path supplemented from the reference's fast_query_experiment.
func (n *SplitNode) queryExperimentWeighted(idx []uint, weight map[uint]int, tau int) []string {
	completeHits, completeMisses, total := 0, 0, 0
	for _, i := range idx {
		total += weight[i]
	}
	partial := make([]uint, 0, len(idx))
	for _, i := range idx {
		switch n.classifyIndex(i) {
		case splitHit:
			completeHits += weight[i]
			if completeHits >= tau {
				return n.allLeafNames()
			}
		case splitPartial:
			partial = append(partial, i)
		default:
			completeMisses += weight[i]
			if completeMisses > total-tau {
				return nil
			}
		}
	}
	if IsLeaf(n) {
		return nil
	}
	remaining := tau - completeHits
	return append(n.left.queryExperimentWeighted(partial, weight, remaining), n.right.queryExperimentWeighted(partial, weight, remaining)...)
}
