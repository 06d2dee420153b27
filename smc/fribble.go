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
	"sync/atomic"

	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/resample"
	"github.com/nordholm-labs/smcpf/sdk/core"
)

// fribbleBatchSize 是每輪成長迴圈新增的粒子數——固定為建構時的 N，讓人口
// 以 N 為粒度成長，成長速度與基準 population 大小成比例。
func (s *Sampler[S]) fribbleBatchSize() int {
	return s.n
}

// iterateFribble 實作 SPEC_FULL §4.7 的可變人口重採樣：
//
//  1. 把剛做完 Move/正規化的 population 存一份快照（startingParticles），
//     然後清空成長池——池子從空的開始，之後每一輪成長批次都是這份快照的
//     複本，不是重新 Init 出來的獨立樣本，也不是尚未清空的舊 population。
//  2. 只要 ESS 還低於門檻且池子沒達到 N_max，就把 startingParticles 複製一批
//     （並行地對每個複本呼叫一次 Move 到時間 t）加入池子；新一批有自己的區域
//     最大 log-weight（m_local），與累積池子的全域最大值（m_global）分屬不同
//     的正規化基準，合併前必須把兩邊的 log-weight 平移到同一個基準，否則
//     exp() 後的權重會不可比：m_local 比 m_global 大時，連同舊池子一起往下
//     平移到新的全域基準（池子平移 m_global-m_local，新批次平移 -m_local，
//     再把 m_global 更新成 m_local）；否則只平移新批次（平移 -m_global）。
//     池子一開始是空的：mergeFribbleBatch 對空池子先把 m_global 設成這一批的
//     m_local，因此第一批走「否則」那一支，只平移新批次（平移 -m_local）。
//  3. 池子大小超過 N 才需要下採樣回 N（SPEC_FULL §9 決議：剛好等於 N 時跳過
//     下採樣，避免做一次沒有必要的 resample）。
//  4. 對最終的 N 個粒子照常跑一輪並行 MCMC。
//
// 回傳值：成長開始前（即呼叫端已經做完 Move/正規化、尚未清空那一刻）量測的
// ESS、本輪 MCMC 接受數、是否真的發生了下採樣（供歷史堆疊的 FlagResampled
// 使用）。
//
// 圖紀錄器在 fribble 模式下不會被呼叫：成長批次雖然是 startingParticles 的
// 複本，但一輪成長可能把同一個來源粒子複製進好幾個新 slot，沒有一個不失真的
// 1:1 parent slot 映射方式把它們接進 parent→child 圖（見 DESIGN.md 的限制
// 說明）。
func (s *Sampler[S]) iterateFribble(t int) (ess float64, nAccepted int, resampled bool, err error) {
	startingParticles := append([]particle.Particle[S](nil), s.particles...)
	startEss := computeESS(startingParticles)

	pool := make([]particle.Particle[S], 0, s.n)
	currentEss := computeESS(pool)
	mGlobal := maxLogWeight(pool)

	for currentEss < s.threshold && len(pool) < defaultNMax {
		grow := s.fribbleBatchSize()
		if len(pool)+grow > defaultNMax {
			grow = defaultNMax - len(pool)
		}
		if grow <= 0 {
			break
		}

		batch := make([]particle.Particle[S], grow)
		s.forEachParticle(grow, func(i int, rng *core.Core) {
			src := startingParticles[i]
			batch[i] = particle.New(src.Value(), src.LogWeight())
			s.mv.Move(t, &batch[i], rng)
		})
		mGlobal = mergeFribbleBatch(pool, batch, mGlobal)
		pool = append(pool, batch...)
		currentEss = computeESS(pool)
		s.log.Info("smc: fribble growth", "t", t, "pool_size", len(pool), "ess", currentEss, "threshold", s.threshold)
	}

	final := pool
	if len(pool) > s.n {
		weights := make([]float64, len(pool))
		for i := range pool {
			weights[i] = pool[i].Weight()
		}
		idx := resample.SampleIndices(resample.Stratified, s.mainRNG, weights, s.n)
		final = make([]particle.Particle[S], s.n)
		for i, j := range idx {
			final[i] = particle.New(pool[j].Value(), 0)
		}
		resampled = true
	}
	s.particles = final
	s.n = len(final)
	s.ws.Resize(s.n)

	var accepted atomic.Int64
	s.forEachParticle(len(s.particles), func(i int, rng *core.Core) {
		if s.mv.MCMC(t, &s.particles[i], rng) {
			accepted.Add(1)
		}
	})

	return startEss, int(accepted.Load()), resampled, nil
}

// mergeFribbleBatch 把剛長出來的一批 batch 併入累積池 pool 之前，依
// SPEC_FULL §4.7 step 2b 的規則把兩邊的 log-weight 平移到同一個全域基準
// （原始來源：sampler.hh 的 IterateEssVariable，dGlobalMaxWeight/
// dLocalMaxWeight 那一段），回傳更新後的 m_global。
//
// pool 是空的（成長迴圈的第一批）時，直接把 m_global 設成這一批的
// m_local，等價於原始程式碼「池子是空的就把 dGlobalMaxWeight 設成
// dLocalMaxWeight」的特判，讓後面的比較必然走到 else 分支、只平移這一批。
//
// 呼叫後應維持的不變量：append 後的 pool 最大 log-weight 恆為 0
// （SPEC_FULL testable property：max_i log_weight_i == 0 after every batch
// append）——pool 裡原本已經是 0 的最大值在 m_local 更大時被往下平移到
// m_global-m_local（小於等於 0），同時新批次被平移到以 m_local 為 0 的基準，
// 兩者合併後的最大值仍是 0；m_local 沒有更大時 pool 維持原樣，新批次被
// 平移到不超過現有基準的 0。
func mergeFribbleBatch[S any](pool []particle.Particle[S], batch []particle.Particle[S], mGlobal float64) float64 {
	mLocal := maxLogWeight(batch)
	if len(pool) == 0 {
		mGlobal = mLocal
	}

	if mLocal > mGlobal {
		shift := mGlobal - mLocal
		for i := range pool {
			pool[i].AddToLogWeight(shift)
		}
		for i := range batch {
			batch[i].AddToLogWeight(-mLocal)
		}
		return mLocal
	}

	for i := range batch {
		batch[i].AddToLogWeight(-mGlobal)
	}
	return mGlobal
}
