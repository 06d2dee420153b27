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
	"math"
	"sync/atomic"

	"github.com/nordholm-labs/smcpf/errs"
	"github.com/nordholm-labs/smcpf/history"
	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/resample"
	"github.com/nordholm-labs/smcpf/sdk/core"
)

// Initialise 把 Sampler 重置到 T=0：每個 slot 各呼叫一次 MoveSet.Init，清空
// 歷史堆疊。必須在第一次 Iterate 之前呼叫，且必須在 SetMoveSet 之後；不會碰
// 圖紀錄器——圖只有 IterateESS 內的單一呼叫點（見下方）。
//
// Init 本身不走 forEachParticle 並行——spec 只要求 Move/MCMC 並行，初始化走
// 單一 RNG 序列執行以保持「給定 seed 則population 決定性」的最簡單路徑。
func (s *Sampler[S]) Initialise() {
	if s.mv == nil {
		panic("smc: SetMoveSet must be called before Initialise")
	}
	s.particles = make([]particle.Particle[S], s.n)
	for i := range s.particles {
		s.particles[i] = s.mv.Init(s.mainRNG)
	}
	s.t = 0
	s.ess = 0
	s.lastNAccepted = 0
	s.lastResampled = false
	s.hist.Clear()
}

// Iterate 是 IterateESS 的別名，對應 spec §6 的 iterate() 入口。
func (s *Sampler[S]) Iterate() (float64, error) {
	return s.IterateESS()
}

// IterateESS 推進一個世代：push 歷史、並行傳播、做數值穩定的 log-weight
// 正規化、計算 ESS，ESS 低於門檻時重採樣，重採樣模式為 Fribble 時改走
// iterateFribble 的成長迴圈；非 Fribble 模式下接著並行跑一輪 MCMC。
//
// 回傳這一代（重採樣「之前」量測的）ESS。
func (s *Sampler[S]) IterateESS() (float64, error) {
	nextT := s.t + 1

	flags := history.Flags(0)
	if s.lastResampled {
		flags = history.FlagResampled
	}
	s.hist.Push(len(s.particles), s.particles, s.lastNAccepted, flags)

	s.forEachParticle(len(s.particles), func(i int, rng *core.Core) {
		s.mv.Move(nextT, &s.particles[i], rng)
	})
	normalizeForStability(s.particles)

	if s.resampleMode == Fribble {
		ess, nAccepted, resampled, err := s.iterateFribble(nextT)
		if err != nil {
			return 0, err
		}
		s.ess = ess
		s.lastNAccepted = nAccepted
		s.lastResampled = resampled
		s.t = nextT
		return ess, nil
	}

	ess := computeESS(s.particles)
	s.ess = ess

	resampled := ess < s.threshold
	var parent []int
	if resampled {
		resample.Apply(s.resampleMode.baseMode(), s.mainRNG, s.particles, s.ws)
		parent = append([]int(nil), s.ws.Indices...)
		s.log.Info("smc: resampled", "t", nextT, "ess", ess, "threshold", s.threshold, "mode", s.resampleMode.String())
	} else {
		parent = identity(len(s.particles))
	}

	var accepted atomic.Int64
	s.forEachParticle(len(s.particles), func(i int, rng *core.Core) {
		if s.mv.MCMC(nextT, &s.particles[i], rng) {
			accepted.Add(1)
		}
	})

	if s.graphRec != nil {
		s.graphRec.RecordIteration(s.t, parent)
	}

	s.t = nextT
	s.lastNAccepted = int(accepted.Load())
	s.lastResampled = resampled
	return ess, nil
}

// IterateBack 撤銷最近一次 Iterate：彈出歷史堆疊頂端，還原 population 與
// T。歷史模式為 Disabled，或堆疊已經空了（已經回退到 T=0 之前），都回傳
// MISSING_HISTORY——兩者在 Stack.Pop() 的回傳值上是同一種狀況，不需要分開
// 判斷（history.Mode 為 Disabled 時 Push 是 no-op，故堆疊永遠是空的）。
func (s *Sampler[S]) IterateBack() error {
	snap, ok := s.hist.Pop()
	if !ok {
		return errs.NewCode(errs.CodeMissingHistory, "IterateBack: no history to roll back to")
	}
	s.particles = snap.Particles
	s.n = snap.N
	s.lastNAccepted = snap.NAccepted
	s.lastResampled = snap.Resampled()
	s.t--
	s.ws.Resize(s.n)
	return nil
}

// IterateUntil 重複呼叫 Iterate 直到 T >= tTarget；tTarget <= 目前 T 時是
// no-op。回傳最後一次 Iterate 的 ESS（若完全沒有迭代，回傳目前的 ESS）。
func (s *Sampler[S]) IterateUntil(tTarget int) (float64, error) {
	for s.t < tTarget {
		ess, err := s.IterateESS()
		if err != nil {
			return ess, err
		}
	}
	return s.ess, nil
}

// maxLogWeight 回傳目前 population 中最大的 log-weight；population 全數為
// -Inf（所有粒子權重皆為 0）時回傳 -Inf。
func maxLogWeight[S any](particles []particle.Particle[S]) float64 {
	m := math.Inf(-1)
	for i := range particles {
		if w := particles[i].LogWeight(); w > m {
			m = w
		}
	}
	return m
}

// normalizeForStability 把所有 log-weight 減去目前最大值，讓後續的
// exp(log_weight) 不會在大量負向平移的情況下全數下溢為 0——ESS 與加權積分
// 只依賴「相對」權重，減去常數不改變任何歸一化後的結果。
//
// population 全數為 -Inf 時沒有合理的平移量，直接跳過（減 -Inf 會產生 NaN）。
func normalizeForStability[S any](particles []particle.Particle[S]) {
	m := maxLogWeight(particles)
	if math.IsInf(m, -1) {
		return
	}
	for i := range particles {
		particles[i].AddToLogWeight(-m)
	}
}

// computeESS 回傳 Kish 有效樣本數 (Σw)²/Σw²；exp(-Inf) 自然得到 0，不需要
// 額外特判。population 權重全為 0 時回傳 0（而不是 NaN）。
func computeESS[S any](particles []particle.Particle[S]) float64 {
	var sumW, sumW2 float64
	for i := range particles {
		w := particles[i].Weight()
		sumW += w
		sumW2 += w * w
	}
	if sumW2 == 0 {
		return 0
	}
	return sumW * sumW / sumW2
}

// identity 回傳 [0, n) 的恆等排列，代表「沒有 resample 發生」時每個 slot
// 的來源就是自己。
func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
