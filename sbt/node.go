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

// Node is implemented by every node variant (Base, Split, HowDe). A node is
// a leaf iff both LeftChild and RightChild are nil; the "exactly one child"
// state that appears transiently in the reference implementation's
// in-place mutation never arises here, because each variant's
// insertExperiment promotes a leaf to an inner node by setting both
// children in the same step (a copy of the old leaf as left, the new leaf
// as right) (see (I5) in the design notes).
type Node interface {
	ID() uint64
	Name() string
	LeftChild() Node
	RightChild() Node
}

// IsLeaf reports whether n has no children.
func IsLeaf(n Node) bool {
	return n.LeftChild() == nil && n.RightChild() == nil
}

// Variant selects which node scheme a tree is built from.
type Variant int

const (
	// Base holds a single OR-aggregated filter per node.
	Base Variant = iota
	// Split (SSBT) holds sim/rem filters per node.
	Split
	// HowDe holds how/det/union filters per node.
	HowDe
)

func (v Variant) String() string {
	switch v {
	case Base:
		return "Base"
	case Split:
		return "Split"
	case HowDe:
		return "HowDe"
	default:
		return "Unknown"
	}
}

// maxHashFuncs returns how many hash functions a variant tolerates. Base
// supports any H >= 1; Split and HowDe store a single filter per semantic
// role and only ever hash with one function each.
func (v Variant) maxHashFuncs() int {
	if v == Base {
		return -1 // unbounded
	}
	return 1
}
