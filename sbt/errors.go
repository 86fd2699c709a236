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

import "errors"

// Sentinel errors surfaced at API boundaries. Traversal itself never
// returns an error: a fully pruned subtree yields an empty name slice, and a
// match yields the matched names, exactly as spec'd.
var (
	// ErrEmptyTree is returned by a query against a tree with no inserts.
	ErrEmptyTree = errors.New("sbt: query on empty tree")

	// ErrInvalidConfiguration is returned when a caller mixes a node
	// variant and a hash-function count incompatibly, or uses the
	// fast-query path with more than one hash function.
	ErrInvalidConfiguration = errors.New("sbt: invalid configuration")

	// ErrDimensionMismatch is returned when a node or filter of the wrong
	// length is supplied to a tree.
	ErrDimensionMismatch = errors.New("sbt: filter dimension mismatch")

	// ErrIOFailure wraps failures from Save/Load.
	ErrIOFailure = errors.New("sbt: io failure")
)
