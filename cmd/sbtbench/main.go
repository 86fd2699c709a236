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

// Command sbtbench is the external CLI/benchmarking harness: it reads
// experiment sequence files and a query file from disk, builds a tree per
// the given parameter map, runs the requested query method against every
// query, and writes one CSV row of timing and accuracy metrics per query.
// None of this lives inside the sbt package itself: the tree never reads a
// file or writes a report.
package main

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/daniel-h-chu/Sequence-Bloom-Tree/kernel"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/khash"
	"github.com/daniel-h-chu/Sequence-Bloom-Tree/sbt"
)

func main() {
	var (
		flagExperiments string
		flagQueries     string
		flagOut         string
		flagLog         string
		flagK           int
		flagM           uint
		flagHashes      int
		flagTheta       float64
		flagSeqLen      int
		flagSeed        int64
		flagKernel      string
		flagVariant     string
		flagInsert      string
		flagQuery       string
	)

	pflag.StringVarP(&flagExperiments, "experiments", "e", "", "directory holding one sequence file per experiment")
	pflag.StringVarP(&flagQueries, "queries", "q", "", "FASTA file of query sequences")
	pflag.StringVarP(&flagOut, "out", "o", "-", "CSV output path (- for stdout)")
	pflag.StringVarP(&flagLog, "log", "l", "info", "log output level")
	pflag.IntVarP(&flagK, "k", "k", 20, "k-mer length")
	pflag.UintVarP(&flagM, "bloom-length", "m", 1_000_000, "bloom filter length in bits")
	pflag.IntVar(&flagHashes, "hashes", 1, "number of hash functions (Base variant only)")
	pflag.Float64VarP(&flagTheta, "threshold", "t", 0.9, "similarity threshold theta")
	pflag.IntVar(&flagSeqLen, "seq-len", 100_000, "truncate each experiment sequence to this length")
	pflag.Int64Var(&flagSeed, "seed", 1, "seed for the tie-breaking/sampling RNG")
	pflag.StringVar(&flagKernel, "kernel", "hamming", "similarity kernel: hamming, cosine, jaccard, manhattan, euclidean, dice, tanimoto")
	pflag.StringVar(&flagVariant, "variant", "howde", "node variant: base, split, howde")
	pflag.StringVar(&flagInsert, "insert-method", "greedy", "insert method: greedy, cluster1 (AllSome), cluster2 (LevelPairing)")
	pflag.StringVar(&flagQuery, "query-method", "normal", "query method: normal, fast, faster")
	pflag.Parse()

	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(flagLog)
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse log level")
	}
	log = log.Level(level)

	if flagExperiments == "" || flagQueries == "" {
		log.Fatal().Msg("both --experiments and --queries are required")
	}

	kern, ok := kernel.ByName(flagKernel)
	if !ok {
		log.Fatal().Str("kernel", flagKernel).Msg("unknown similarity kernel")
	}
	variant, err := parseVariant(flagVariant)
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse variant")
	}
	hashCount := flagHashes
	if variant != sbt.Base {
		hashCount = 1
	}

	experiments, err := readExperimentDir(flagExperiments, flagSeqLen)
	if err != nil {
		log.Fatal().Err(err).Msg("could not read experiment directory")
	}
	queryFile, err := os.Open(flagQueries)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open query file")
	}
	queries, err := readFasta(queryFile)
	_ = queryFile.Close()
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse query file")
	}

	rng := rand.New(rand.NewSource(flagSeed))
	tree, err := sbt.New(flagK, flagM, khash.Family(hashCount), flagTheta, kern, variant,
		sbt.WithLogger(log), sbt.WithRand(rng))
	if err != nil {
		log.Fatal().Err(err).Msg("could not construct tree")
	}

	start := time.Now()
	if err := buildTree(tree, experiments, flagInsert); err != nil {
		log.Fatal().Err(err).Msg("could not build tree")
	}
	buildDuration := time.Since(start)
	log.Info().Int("experiments", len(experiments)).Str("duration", buildDuration.String()).Msg("tree built")

	out := os.Stdout
	if flagOut != "-" {
		f, err := os.Create(flagOut)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create output file")
		}
		defer f.Close()
		out = f
	}
	writer := csv.NewWriter(out)
	defer writer.Flush()
	if err := writer.Write([]string{"query", "variant", "insert_method", "query_method", "kernel", "matched", "matches", "elapsed_ns", "oops"}); err != nil {
		log.Fatal().Err(err).Msg("could not write CSV header")
	}

	// Ground truth for the recall check (Design Notes: the reference's
	// print-"oops" branch marks an unreachable state; here it becomes an
	// assertion failure that a query's pruned result is missing a match the
	// brute-force per-experiment scan confirms).
	kmerSets := buildKmerSets(experiments, flagK)

	for _, q := range queries {
		matched, elapsed, err := runQuery(tree, q.Seq, flagQuery)
		if err != nil {
			log.Fatal().Err(err).Str("query", q.Name).Msg("query failed")
		}

		brute := bruteForceMatch(q.Seq, flagK, flagTheta, kmerSets)
		oops := falseNegative(matched, brute)
		if oops {
			log.Fatal().Str("query", q.Name).Strs("matched", matched).Strs("expected", brute).
				Msg("oops: pruned query result dropped a true match")
		}

		sort.Strings(matched)
		row := []string{
			q.Name,
			variant.String(),
			flagInsert,
			flagQuery,
			flagKernel,
			strconv.Itoa(len(matched)),
			strings.Join(matched, "|"),
			strconv.FormatInt(elapsed.Nanoseconds(), 10),
			strconv.FormatBool(oops),
		}
		if err := writer.Write(row); err != nil {
			log.Fatal().Err(err).Msg("could not write CSV row")
		}
	}
}

func parseVariant(s string) (sbt.Variant, error) {
	switch strings.ToLower(s) {
	case "base":
		return sbt.Base, nil
	case "split", "ssbt":
		return sbt.Split, nil
	case "howde":
		return sbt.HowDe, nil
	default:
		return 0, fmt.Errorf("unknown variant %q", s)
	}
}

func buildTree(tree *sbt.Tree, experiments []record, method string) error {
	switch strings.ToLower(method) {
	case "greedy":
		for _, exp := range experiments {
			if err := tree.InsertSequence(exp.Seq, exp.Name); err != nil {
				return err
			}
		}
		return nil
	case "cluster1", "allsome":
		return tree.InsertClusterAllSome(toExperiments(experiments))
	case "cluster2", "levelpairing":
		return tree.InsertClusterLevelPairing(toExperiments(experiments))
	default:
		return fmt.Errorf("unknown insert method %q", method)
	}
}

func toExperiments(records []record) []sbt.Experiment {
	out := make([]sbt.Experiment, len(records))
	for i, r := range records {
		out[i] = sbt.Experiment{Name: r.Name, Seq: r.Seq}
	}
	return out
}

func runQuery(tree *sbt.Tree, seq []byte, method string) ([]string, time.Duration, error) {
	start := time.Now()
	var (
		matched []string
		err     error
	)
	switch strings.ToLower(method) {
	case "normal":
		matched, err = tree.QuerySequence(seq)
	case "fast":
		matched, err = tree.QueryFast(seq)
	case "faster":
		matched, err = tree.QueryFaster(seq)
	default:
		return nil, 0, fmt.Errorf("unknown query method %q", method)
	}
	return matched, time.Since(start), err
}

// readExperimentDir reads one sequence per file in dir (the file's first
// line, truncated to maxLen), named for the file's name without its
// extension. Files whose first line is empty are skipped.
func readExperimentDir(dir string, maxLen int) ([]record, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []record
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		var line string
		if scanner.Scan() {
			line = strings.TrimSpace(scanner.Text())
		}
		_ = f.Close()
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		if len(line) > maxLen {
			line = line[:maxLen]
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		out = append(out, record{Name: name, Seq: []byte(line)})
	}
	return out, nil
}

func buildKmerSets(experiments []record, k int) map[string]map[string]struct{} {
	sets := make(map[string]map[string]struct{}, len(experiments))
	for _, exp := range experiments {
		if len(exp.Seq) < k {
			sets[exp.Name] = map[string]struct{}{}
			continue
		}
		set := make(map[string]struct{}, len(exp.Seq)-k+1)
		for i := 0; i+k <= len(exp.Seq); i++ {
			set[string(exp.Seq[i:i+k])] = struct{}{}
		}
		sets[exp.Name] = set
	}
	return sets
}

func bruteForceMatch(seq []byte, k int, theta float64, sets map[string]map[string]struct{}) []string {
	if len(seq) < k {
		return nil
	}
	var qkmers []string
	for i := 0; i+k <= len(seq); i++ {
		qkmers = append(qkmers, string(seq[i:i+k]))
	}
	tau := int(theta * float64(len(qkmers)))
	if float64(tau) < theta*float64(len(qkmers)) {
		tau++
	}
	var out []string
	for name, set := range sets {
		hits := 0
		for _, km := range qkmers {
			if _, ok := set[km]; ok {
				hits++
			}
		}
		if hits >= tau {
			out = append(out, name)
		}
	}
	return out
}

// falseNegative reports whether expected contains a name absent from got:
// a pruned query result that dropped a true match.
func falseNegative(got, expected []string) bool {
	present := make(map[string]struct{}, len(got))
	for _, name := range got {
		present[name] = struct{}{}
	}
	for _, name := range expected {
		if _, ok := present[name]; !ok {
			return true
		}
	}
	return false
}
