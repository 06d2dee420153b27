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

// Package resample 實作四種 SMC resampling 演算法（multinomial、residual、
// stratified、systematic）以及共用的 child-count → index 平坦化與就地複製。
//
// 四個演算法簽章完全相同：吃目前（未正規化）的權重，產出 child-count 陣列
// `counts[0..N)`，滿足 Σcounts_i = N；差異只在變異數特性。
package resample

import (
	"math"

	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/sdk/core"
	"github.com/nordholm-labs/smcpf/sdk/sampler"
)

// Mode 列舉 resample 演算法種類。fribble 不在此列——它是 driver 層的可變人口
// 模式，內部仍然借用 Stratified 做最終下採樣（見 smc 套件）。
type Mode uint8

const (
	Multinomial Mode = iota
	Residual
	Stratified
	Systematic
)

var modeNames = map[Mode]string{
	Multinomial: "multinomial",
	Residual:    "residual",
	Stratified:  "stratified",
	Systematic:  "systematic",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return "unknown"
}

// lutSwitchThreshold 之下用 LUT 量化殘差做餘數抽樣；之上改用 alias table
// 以避免 LUT 展開陣列過大。
const lutSwitchThreshold = 64

// residualQuantizePrecision 是 BuildLUTFromResiduals 的量化精度：殘差落在
// [0,1)，乘上 1e6 後四捨五入成整數張數，遠低於任何統計上有意義的抽樣噪訊。
const residualQuantizePrecision = 1e6

// Workspace 是 resample 套件重用的三條 scratch 陣列，由呼叫端（smc.Sampler）
// 持有並跨迭代重複使用，避免每次 resample 都重新配置記憶體。
//
// 內容在呼叫之間沒有保證的語意——只在單次 ChildCounts 呼叫內有效。
type Workspace struct {
	Weights []float64
	Counts  []int
	Indices []int
}

// NewWorkspace 配置容量為 n 的 Workspace。
func NewWorkspace(n int) *Workspace {
	return &Workspace{
		Weights: make([]float64, n),
		Counts:  make([]int, n),
		Indices: make([]int, n),
	}
}

// Resize 確保 Workspace 的三條陣列長度為 n（重用底層記憶體，不足才重新配置）。
func (w *Workspace) Resize(n int) {
	if cap(w.Weights) < n {
		w.Weights = make([]float64, n)
	} else {
		w.Weights = w.Weights[:n]
	}
	if cap(w.Counts) < n {
		w.Counts = make([]int, n)
	} else {
		w.Counts = w.Counts[:n]
	}
	if cap(w.Indices) < n {
		w.Indices = make([]int, n)
	} else {
		w.Indices = w.Indices[:n]
	}
}

// ChildCounts 依指定模式計算 child-count 陣列，寫入 ws.Counts 並回傳。
//
// weights 為目前各粒子的（未正規化）weight = exp(log_weight)；長度決定 N。
func ChildCounts(mode Mode, c *core.Core, weights []float64, ws *Workspace) []int {
	n := len(weights)
	ws.Resize(n)
	switch mode {
	case Multinomial:
		multinomialCounts(c, weights, ws.Counts)
	case Residual:
		residualCounts(c, weights, ws.Counts)
	case Stratified:
		cumulativeWalk(c, weights, ws.Counts, true)
	case Systematic:
		cumulativeWalk(c, weights, ws.Counts, false)
	default:
		panic("resample: unknown mode " + mode.String())
	}
	return ws.Counts
}

// multinomialCounts 建一次 Vose alias table，抽 n 次 O(1) 落點並計數——
// 這等價於對正規化權重做一次 multinomial(n, n, probs) 抽樣。
func multinomialCounts(c *core.Core, weights []float64, counts []int) {
	n := len(weights)
	for i := range counts {
		counts[i] = 0
	}
	at := sampler.BuildAliasTable(weights)
	for i := 0; i < n; i++ {
		counts[at.Pick(c)]++
	}
}

// residualCounts 實作 residual resampling：
//
//  1. q_i = N·w_i/W，floor_i = ⌊q_i⌋ 為確定性配額。
//  2. R = N - Σfloor_i 為剩餘名額，依殘差 q_i - floor_i 做一次 multinomial 抽樣。
//  3. 兩者相加即為最終 child count。
func residualCounts(c *core.Core, weights []float64, counts []int) {
	n := len(weights)
	total := sum(weights)

	q := make([]float64, n)
	residual := make([]float64, n)
	floorSum := 0
	for i, w := range weights {
		qi := float64(n) * w / total
		q[i] = qi
		f := math.Floor(qi)
		counts[i] = int(f)
		residual[i] = qi - f
		floorSum += int(f)
	}

	r := n - floorSum
	if r <= 0 {
		return
	}

	extra := drawMultinomialFromResiduals(c, residual, r)
	for i, v := range extra {
		counts[i] += v
	}
}

// drawMultinomialFromResiduals 對殘差權重抽 r 次並計數。
//
// r 相對 n 很小時，透過量化殘差成整數張數建 LUT 再抽樣更省事；r 較大時改用
// alias table，避免 LUT 展開陣列隨精度線性增長。
func drawMultinomialFromResiduals(c *core.Core, residual []float64, r int) []int {
	n := len(residual)
	counts := make([]int, n)

	if allZero(residual) {
		return counts
	}

	if r <= lutSwitchThreshold {
		lut := sampler.BuildLUTFromResiduals(residual, residualQuantizePrecision)
		if len(lut) > 0 {
			for i := 0; i < r; i++ {
				counts[lut.Pick(c)]++
			}
			return counts
		}
		// 量化後總張數為 0（殘差極小）或超過 LUT 容量上限時 LUT 為空，退回 alias table。
	}

	at := sampler.BuildAliasTable(residual)
	for i := 0; i < r; i++ {
		counts[at.Pick(c)]++
	}
	return counts
}

// cumulativeWalk 是 stratified 與 systematic 共用的游標走位演算法。
//
// 維護一個累積機率 cum，游標 k 指向「目前正在累積的粒子」，游標 j 指向「下一個
// 待分配的名額」。當 cum 第一次超過 j/N + u，把名額 j 分給 k，並前進 j
// （stratified 重新抽 u；systematic 保留同一個 u）；否則前進 k，累加 w_k/W。
func cumulativeWalk(c *core.Core, weights []float64, counts []int, stratified bool) {
	n := len(weights)
	for i := range counts {
		counts[i] = 0
	}
	total := sum(weights)
	step := 1.0 / float64(n)

	u := c.Uniform(0, step)
	k := 0
	cum := weights[0] / total

	for j := 0; j < n; j++ {
		target := float64(j)*step + u
		for cum <= target && k < n-1 {
			k++
			cum += weights[k] / total
		}
		counts[k]++
		if stratified {
			u = c.Uniform(0, step)
		}
	}
}

func sum(xs []float64) float64 {
	s := 0.0
	for _, x := range xs {
		s += x
	}
	return s
}

func allZero(xs []float64) bool {
	for _, x := range xs {
		if x != 0 {
			return false
		}
	}
	return true
}

// FlattenCounts 把 child-count 陣列轉換成置換 π：slot i 最終內容來自 π[i]。
//
// 規則：若 c_i ≥ 1，slot i 保留自己的粒子（π[i] = i），以最小化複製數；c_i > 1
// 的多餘複製依序填入下一個 c_j = 0 的 slot j（j 單調遞增），確保就地複製時
// 來源 slot π[i] 在被寫入前尚未被覆寫（見 Replicate）。
func FlattenCounts(counts []int) []int {
	pi := make([]int, len(counts))
	FlattenCountsInto(counts, pi)
	return pi
}

// FlattenCountsInto 與 FlattenCounts 相同，但寫入呼叫端提供的 pi（長度須等於
// len(counts)），供 Apply 重用 Workspace.Indices 而不配置新切片。
func FlattenCountsInto(counts []int, pi []int) {
	for i, c := range counts {
		if c >= 1 {
			pi[i] = i
		}
	}

	j := 0
	for i, c := range counts {
		for extra := 1; extra < c; extra++ {
			for counts[j] != 0 {
				j++
			}
			pi[j] = i
			j++
		}
	}
}

// Replicate 依置換 π 就地改寫 particles 的值，並把所有 log-weight 清零
// （resample 的 post-condition，屬於 resample 的契約，不是 driver 的責任）。
//
// 依序掃描 i = 0..N-1：π 的單調游標性質保證來源 slot π[i] 尚未被覆寫。
func Replicate[S any](particles []particle.Particle[S], pi []int) {
	for i, src := range pi {
		if src != i {
			particles[i].SetValue(particles[src].Value())
		}
	}
	for i := range particles {
		particles[i].SetLogWeight(0)
	}
}

// Apply 是 ChildCounts → FlattenCounts → Replicate 的便利組合，driver 的每次
// resample 呼叫都走這條路徑。
func Apply[S any](mode Mode, c *core.Core, particles []particle.Particle[S], ws *Workspace) {
	n := len(particles)
	ws.Resize(n)
	for i := range particles {
		ws.Weights[i] = particles[i].Weight()
	}
	counts := ChildCounts(mode, c, ws.Weights, ws)
	FlattenCountsInto(counts, ws.Indices)
	Replicate(particles, ws.Indices)
}
