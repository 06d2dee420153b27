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

// cmd/bench 是開發期的效能/分佈檢查工具：跑一條高斯退火 SMC 路徑，
// 用 pb 畫進度條，選配 pprof profiling 與 ancestry graph 的 DOT 傾印。
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/cheggaaa/pb/v3"

	"github.com/nordholm-labs/smcpf/graph"
	"github.com/nordholm-labs/smcpf/history"
	"github.com/nordholm-labs/smcpf/logging"
	"github.com/nordholm-labs/smcpf/sdk/perf"
	"github.com/nordholm-labs/smcpf/smc"
)

func main() {
	bindVar()
	perf.RunPProf(runBench, cfg.pprofmode)
}

func runBench() {
	cfg.valid()

	logger := logging.NewDefaultAsyncLogger(logging.ModeDev)
	slog.SetDefault(logger)

	s := smc.New[float64](cfg.n, history.InMemory, cfg.seed)
	mv := newGaussianTempering(cfg.steps)
	s.SetMoveSet(mv)
	s.SetNumThreads(cfg.worker)
	s.SetLogger(logger)

	if err := s.SetResampleParams(cfg.resampleMode(), cfg.threshold); err != nil {
		log.Fatal(err)
	}

	var rec *graph.Recorder
	if cfg.graphDump {
		rec = s.EnableGraphRecording()
	}

	s.Initialise()

	bar := pb.StartNew(cfg.steps)
	bar.SetWriter(os.Stderr)

	for t := 0; t < cfg.steps; t++ {
		ess, err := s.IterateESS()
		if err != nil {
			log.Fatalf("iterate %d: %v", t, err)
		}
		slog.Debug("iterate", "t", s.Time(), "ess", ess)
		bar.Increment()
	}
	bar.Finish()

	s.Dump(os.Stdout)

	if rec != nil {
		if err := rec.Export(os.Stdout); err != nil {
			log.Fatalf("graph export: %v", err)
		}
	}
}
