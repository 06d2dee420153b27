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

// Package sampler 提供一系列高效能的加權抽樣演算法與工具，供 resample 與 dump
// 套件共用。
//
// 本檔案 (aliastable.go) 實作了 Vose's Alias Method 加權抽樣演算法，浮點權重版。
//
// 演算法原理：
//   - 將任意離散分佈轉換為均勻分佈的組合。
//   - 每個槽位 (Bucket) 只存放「自己」和「別名 (Alias)」兩個選項。
//   - 抽樣時先選槽位，再用一次均勻亂數決定是自己還是別名。
//
// 特性：
//   - 建表時間：O(N)，線性時間。
//   - 抽樣時間：O(1)，固定 2 次亂數呼叫。
//   - 空間複雜度：O(N)，與權重數量成正比，與權重總和無關——這對 multinomial
//     resampling 很重要：粒子權重 exp(log_weight) 未經正規化（減去最大值後
//     最大者為 1），個別權重的數量級可能相差數個 order，整數 scaling 版本在
//     此場景下沒有優勢。
//
// 適用場景：
//   - resample 套件的 multinomial resampling：對 N 個未正規化權重建一次表，
//     抽 N 次 O(1) 落點並計數，等價於一次 multinomial 抽樣。
//   - resample.SampleIndices 的 multinomial 模式：同一顆表抽 k 個索引。
//   - residual resampling 的餘數抽樣（LUT 不適用時）。

package sampler

import (
	"math"

	"github.com/nordholm-labs/smcpf/sdk/core"
)

// AliasTable 是 Vose Alias Method 的浮點權重版本，適用於對任意非負權重
// （不需事先正規化）做 O(1) 加權抽樣。
//
// 結構欄位說明：
//   - Prob: 每個槽位「選自己」的機率（已經過 n 倍縮放，落在 [0,1]）。
//   - Alias: 別名索引，機率不足 1 的槽位由此補齊。
//   - Size: 元素數量。
type AliasTable struct {
	Prob  []float64
	Alias []int
	Size  int
}

// BuildAliasTable 依輸入權重建立 AliasTable。
//
// weights 為任意非負浮點權重，不需事先正規化；全部為零或含負值會 panic。
//
// 建表流程：
//  1. 對每個權重正規化後乘上 n，得到 scaled 機率 p_i（均值為 1）。
//  2. 依 p_i 與 1 的大小分入 small / large 兩桶。
//  3. 從兩桶各取一個元素 s, l，令 l 成為 s 的 alias，並扣除 l 的機率餘額。
//  4. 重複直到其中一桶清空；剩餘元素機率視為恰好 1（允許浮點誤差）。
func BuildAliasTable(weights []float64) *AliasTable {
	n := len(weights)
	if n == 0 {
		return &AliasTable{Prob: []float64{}, Alias: []int{}, Size: 0}
	}

	total := 0.0
	for _, w := range weights {
		if w < 0 || math.IsNaN(w) {
			panic("sampler: AliasTable: negative or NaN weight encountered")
		}
		total += w
	}
	if total <= 0 {
		panic("sampler: AliasTable: total weight is zero")
	}

	prob := make([]float64, n)
	alias := make([]int, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)

	scale := float64(n) / total
	for i, w := range weights {
		prob[i] = w * scale
		if prob[i] < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		alias[s] = l
		prob[l] = prob[l] + prob[s] - 1

		if prob[l] < 1 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}

	// 浮點誤差可能讓剩餘的 small/large 沒有兩兩配對完；把殘留機率夾回 1，
	// 確保 Pick 永遠落在 [0,1) 的比較不會因為 1.0000000002 之類的誤差失敗。
	for _, i := range small {
		prob[i] = 1
	}
	for _, i := range large {
		prob[i] = 1
	}

	return &AliasTable{Prob: prob, Alias: alias, Size: n}
}

// Pick 從 AliasTable 抽取一個索引，若表為空回傳 -1。
//
// 抽樣步驟：
//  1. 以 c.IntN(Size) 均勻選出一個槽位 idx。
//  2. 以 c.Float64() < Prob[idx] 決定回傳 idx 本身還是其 Alias。
func (at *AliasTable) Pick(c *core.Core) int {
	if at.Size == 0 {
		return -1
	}
	idx := c.IntN(at.Size)
	if c.Float64() < at.Prob[idx] {
		return idx
	}
	return at.Alias[idx]
}
