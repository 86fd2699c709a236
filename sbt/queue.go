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
	"github.com/gammazero/deque"
)

// queue is a FIFO of Nodes backed by a ring-buffer deque, used for
// breadth-first traversal during rendering and dumping.
type queue struct {
	nodes *deque.Deque
}

func newQueue() *queue {
	return &queue{nodes: deque.New(256)}
}

func (q *queue) Push(n Node) {
	q.nodes.PushBack(n)
}

func (q *queue) Pop() Node {
	return q.nodes.PopFront().(Node)
}

func (q *queue) Len() int {
	return q.nodes.Len()
}

// bfs walks root breadth-first, invoking visit on every node in level order.
func bfs(root Node, visit func(n Node, depth int)) {
	if root == nil {
		return
	}
	q := newQueue()
	depths := map[Node]int{root: 0}
	q.Push(root)
	for q.Len() > 0 {
		n := q.Pop()
		visit(n, depths[n])
		if left := n.LeftChild(); left != nil {
			depths[left] = depths[n] + 1
			q.Push(left)
		}
		if right := n.RightChild(); right != nil {
			depths[right] = depths[n] + 1
			q.Push(right)
		}
	}
}

// leaves returns every leaf under root in level order.
func leaves(root Node) []Node {
	var out []Node
	bfs(root, func(n Node, _ int) {
		if IsLeaf(n) {
			out = append(out, n)
		}
	})
	return out
}
