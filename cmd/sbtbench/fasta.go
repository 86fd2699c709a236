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

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// record is one named sequence read from a FASTA file.
type record struct {
	Name string
	Seq  []byte
}

// readFasta parses a minimal FASTA stream: lines starting with '>' open a
// new record whose name is the rest of the line, and every following line
// up to the next '>' (or EOF) is appended to that record's sequence.
// Blank lines and surrounding whitespace are ignored.
func readFasta(r io.Reader) ([]record, error) {
	var (
		out     []record
		current *record
		builder strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Seq = []byte(builder.String())
			out = append(out, *current)
		}
		builder.Reset()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			name := strings.TrimSpace(strings.TrimPrefix(line, ">"))
			current = &record{Name: name}
			continue
		}
		builder.WriteString(line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read FASTA stream: %w", err)
	}
	return out, nil
}
