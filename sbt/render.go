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
	"io"
)

// RenderMode selects what render_graph labels each node with.
type RenderMode int

const (
	// Names labels every node with its experiment/inner-node name.
	Names RenderMode = iota
	// Bits labels every node with its filter bit-string(s).
	Bits
)

func nodeLabel(n Node, mode RenderMode) string {
	if mode == Names {
		return n.Name()
	}
	switch v := n.(type) {
	case *BaseNode:
		return v.bf.String()
	case *SplitNode:
		if v.rem == nil {
			return v.sim.String()
		}
		return v.sim.String() + "\\n" + v.rem.String()
	case *HowDeNode:
		if v.union == nil {
			return v.how.String()
		}
		return v.how.String() + "\\n" + v.det.String()
	default:
		return n.Name()
	}
}

// RenderGraph writes a Graphviz DOT description of the tree to w: one node
// statement per tree node (id = node.id, label per mode), one edge statement
// per parent/child relationship.
func (t *Tree) RenderGraph(w io.Writer, mode RenderMode) error {
	root := t.Root()
	if root == nil {
		return ErrEmptyTree
	}
	if _, err := fmt.Fprintln(w, "digraph SBT {"); err != nil {
		return err
	}
	var err error
	bfs(root, func(n Node, _ int) {
		if err != nil {
			return
		}
		if _, werr := fmt.Fprintf(w, "\t%d [label=\"%s\"];\n", n.ID(), nodeLabel(n, mode)); werr != nil {
			err = werr
			return
		}
		if left := n.LeftChild(); left != nil {
			if _, werr := fmt.Fprintf(w, "\t%d -> %d;\n", n.ID(), left.ID()); werr != nil {
				err = werr
				return
			}
		}
		if right := n.RightChild(); right != nil {
			if _, werr := fmt.Fprintf(w, "\t%d -> %d;\n", n.ID(), right.ID()); werr != nil {
				err = werr
				return
			}
		}
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, "}")
	return err
}

// Dump writes a human-readable, indented text dump of the tree to w: one
// line per node, indented by depth, showing id, name, and leaf/inner
// status. Supplemented for interactive debugging; not part of the on-disk
// format.
func (t *Tree) Dump(w io.Writer) error {
	root := t.Root()
	if root == nil {
		return ErrEmptyTree
	}
	var err error
	bfs(root, func(n Node, depth int) {
		if err != nil {
			return
		}
		kind := "leaf"
		if !IsLeaf(n) {
			kind = "inner"
		}
		indent := ""
		for i := 0; i < depth; i++ {
			indent += "  "
		}
		_, err = fmt.Fprintf(w, "%s[%s] id=%d name=%s\n", indent, kind, n.ID(), n.Name())
	})
	return err
}
