// Copyright 2025 Nordholm Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"crypto/rand"
	"flag"
	"log"
	"math"
	"math/big"

	"github.com/nordholm-labs/smcpf/smc"
)

var cfg *config = new(config)

type config struct {
	n          int
	steps      int
	worker     int
	threshold  float64
	mode       string
	seed       int64
	pprofmode  string
	graphDump  bool
}

func bindVar() {
	flag.IntVar(&cfg.n, "n", 2000, "particle population size")
	flag.IntVar(&cfg.steps, "steps", 64, "number of tempering iterations")
	flag.IntVar(&cfg.worker, "worker", 1, "number of move/MCMC workers")
	flag.Float64Var(&cfg.threshold, "threshold", 0.5, "resample threshold, fraction of N or absolute count")
	flag.StringVar(&cfg.mode, "resample", "systematic", "multinomial|residual|stratified|systematic|fribble")
	flag.Int64Var(&cfg.seed, "seed", -1, "int64 seed for the random number generator")
	flag.StringVar(&cfg.pprofmode, "p", "", "pprof: '', cpu, heap, allocs")
	flag.BoolVar(&cfg.graphDump, "graph", false, "dump the ancestry graph as DOT to stdout after the run")

	flag.Parse()

	if cfg.seed < 1 {
		seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
		if err != nil {
			log.Fatal(err)
		}
		cfg.seed = seed.Int64()
	}
}

func (cfg *config) valid() {
	if cfg.n < 1 {
		log.Fatal("value err : n must > 0")
	}
	if cfg.steps < 1 {
		log.Fatal("value err : steps must > 0")
	}
	if cfg.worker < 1 {
		log.Fatal("value err : worker must > 0")
	}
}

func (cfg *config) resampleMode() smc.ResampleMode {
	switch cfg.mode {
	case "multinomial":
		return smc.Multinomial
	case "residual":
		return smc.Residual
	case "stratified":
		return smc.Stratified
	case "systematic":
		return smc.Systematic
	case "fribble":
		return smc.Fribble
	default:
		log.Fatalf("unknown resample mode: %s", cfg.mode)
		return smc.Systematic
	}
}
