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

package smc

import (
	"sync"

	"github.com/nordholm-labs/smcpf/sdk/core"
)

// syncWorkerRNGs 確保 workerRNGs 的長度等於目前設定的 worker 數，每個 worker
// 擁有自己私有的 *core.Core 子串流（用 seedMaker.next() 派生），彼此互不共享
// 可變狀態——這是 Move/MCMC 並行迴圈安全的前提（見 sim.go 的 SimMP 模式）。
func (s *Sampler[S]) syncWorkerRNGs() {
	want := s.numWorkers
	if want <= 0 {
		want = 1
	}
	if len(s.workerRNGs) == want {
		return
	}
	rngs := make([]*core.Core, want)
	for i := range rngs {
		rngs[i] = core.NewDefault(s.seeds.next())
	}
	s.workerRNGs = rngs
}

// forEachParticle 把 [0, n) 靜態切分成最多 numWorkers 段連續區間（grounded on
// sim.go 的 SimMP：goroutine-per-worker、sync.WaitGroup 匯合，沒有工作竊取），
// 每段由專屬的 *core.Core 子串流執行 fn。n 很小或 numWorkers<=1 時走序列路徑，
// 省掉 goroutine 開銷。
func (s *Sampler[S]) forEachParticle(n int, fn func(i int, rng *core.Core)) {
	s.syncWorkerRNGs()
	workers := len(s.workerRNGs)
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		rng := s.workerRNGs[0]
		for i := 0; i < n; i++ {
			fn(i, rng)
		}
		return
	}

	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			lo := w * chunk
			hi := lo + chunk
			if hi > n {
				hi = n
			}
			rng := s.workerRNGs[w]
			for i := lo; i < hi; i++ {
				fn(i, rng)
			}
		}(w)
	}
	wg.Wait()
}
