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

// Package sampler 提供一系列高效能的加權抽樣演算法與工具。
//
// 本檔案 (weightitem.go) 定義了加權不放回抽樣所需的內部輔助結構，供 dump
// 套件在 population 過大時選出具代表性的子集使用。
//
// 設計目的：
//   - 提供一個輕量的容器，封裝原始索引 (Index) 與計算後的隨機分數 (Score)。
//   - 支援 WeightedShuffle 與 WeightedSample 中的排序與堆積操作。
//
// 注意：若某個權重為 0，在 WeightedShuffle 當中會被排到最後，但 WeightedSample
// 則永不入選。
package sampler

import (
	"cmp"
	"container/heap"
	"math"
	"slices"

	"github.com/nordholm-labs/smcpf/sdk/core"
)

// weightItem 是加權排序中的基本單元。
// 它封裝了原始數據的索引 (Index) 與計算出的隨機權重分數 (Score)。
type weightItem struct {
	idx   int     // 原始數據的 Index
	score float64 // 根據權重與隨機數計算出的排序分數
}

// weightHeap 實作了 heap.Interface，用於維護一個 Max-Heap (最大堆)。
//
// 用途：在 WeightedSample 中，我們需要保留分數「最小」的前 K 個元素。
// 為此，我們維護一個容量為 K 的 Max-Heap。
// 堆頂 (heap[0]) 存儲的是這 K 個元素中「分數最大」(最該被淘汰) 的那個。
// 當新元素的分數比堆頂還小時，代表新元素比堆頂更優秀，我們就將堆頂替換掉。
type weightHeap []weightItem

func (h weightHeap) Len() int { return len(h) }

// Less 實作 Max-Heap 的關鍵：
// Go 的 heap 實作預設讓 h[0] 是最小值（Min-Heap）。
// 為了反轉這個行為，當 i 的分數大於 j 時回傳 true，
// 讓「分數大」的元素被視為「更小(更優先)」，進而浮到堆頂。
func (h weightHeap) Less(i, j int) bool { return h[i].score > h[j].score }

func (h weightHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *weightHeap) Push(x any) {
	*h = append(*h, x.(weightItem))
}

func (h *weightHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// -----------------------------------------------------------------------------
// 公開 API (Public APIs)
// -----------------------------------------------------------------------------

// WeightedShuffle 加權不放回抽樣 - 全排列 (Weighted Shuffle without Replacement)
//
// 演算法：Efraimidis-Spirakis Algorithm A-ExpJ
// 參考文獻：2006, "Weighted random sampling with a reservoir"
//
// 核心邏輯：
//  1. 為每個元素 i 生成一個特徵分數 Score_i = -ln(U_i) / w_i。
//     -ln(U_i) 即為標準指數分佈 (ExpFloat64)。
//  2. 權重 w_i 越大，分母越大，分數 Score_i 越小。
//  3. 將所有元素按 Score 由小到大排序，排序後的順序即為加權隨機排列的結果。
//
// 特殊處理：
//   - 權重 < 0：Panic。
//   - 權重 == 0：分數設為 +Inf，保證排在列表最後。
//
// 複雜度：時間 O(N log N)（瓶頸在排序），空間 O(N)。
func WeightedShuffle(c *core.Core, weights []int) []int {
	n := len(weights)
	if n == 0 {
		return []int{}
	}

	items := make([]weightItem, n)
	for i, w := range weights {
		if w < 0 {
			panic("sampler: WeightedShuffle: negative weight")
		}
		if w == 0 {
			items[i] = weightItem{idx: i, score: math.Inf(1)}
			continue
		}
		score := c.ExpFloat64() / float64(w)
		items[i] = weightItem{idx: i, score: score}
	}

	slices.SortFunc(items, func(a, b weightItem) int {
		return cmp.Compare(a.score, b.score)
	})

	result := make([]int, n)
	for i, item := range items {
		result[i] = item.idx
	}
	return result
}

// WeightedShuffleWithFilter 與 WeightedShuffle 相同，但排除權重為 0 的項目。
//
// 回傳長度 M <= N，僅包含權重 > 0 的項目；用於不該出現無效項目的場景（例如
// dump 套件挑選代表粒子時，權重為 0 的粒子不該被顯示為「有被選中」）。
func WeightedShuffleWithFilter(c *core.Core, weights []int) []int {
	n := len(weights)
	if n == 0 {
		return []int{}
	}

	items := make([]weightItem, 0, n)
	for i, w := range weights {
		if w < 0 {
			panic("sampler: WeightedShuffleWithFilter: negative weight")
		}
		if w == 0 {
			continue
		}
		score := c.ExpFloat64() / float64(w)
		items = append(items, weightItem{idx: i, score: score})
	}

	slices.SortFunc(items, func(a, b weightItem) int {
		return cmp.Compare(a.score, b.score)
	})

	result := make([]int, len(items))
	for i, item := range items {
		result[i] = item.idx
	}
	return result
}

// WeightedSample 加權不放回抽樣 - 只取前 K 個 (Weighted Reservoir Sampling)
//
// 演算法：Efraimidis-Spirakis Algorithm A-Res。維護一個容量為 K 的 Max-Heap，
// 存放目前分數最小的 K 個元素；堆頂是這 K 個裡分數最大（最該被淘汰）的那個。
//
// 用於 dump 套件在 population 很大時，依粒子權重挑出 K 個具代表性的粒子顯示，
// 而不是截斷前 K 個索引（截斷會系統性偏向索引小的粒子，與權重無關）。
//
// 相比 WeightedShuffle 的優勢：空間 O(K) 而非 O(N)，時間 O(N log K)。
func WeightedSample(c *core.Core, weights []int, k int) []int {
	n := len(weights)
	if k <= 0 || n == 0 {
		return []int{}
	}
	if k > n {
		k = n
	}

	h := make(weightHeap, 0, k)
	for i, w := range weights {
		if w < 0 {
			panic("sampler: WeightedSample: negative weight")
		}
		if w == 0 {
			continue
		}

		score := c.ExpFloat64() / float64(w)
		if h.Len() < k {
			heap.Push(&h, weightItem{idx: i, score: score})
		} else if score < h[0].score {
			h[0] = weightItem{idx: i, score: score}
			heap.Fix(&h, 0)
		}
	}

	actualCount := h.Len()
	if actualCount == 0 {
		return []int{}
	}

	result := make([]int, actualCount)
	for i := actualCount - 1; i >= 0; i-- {
		item := heap.Pop(&h).(weightItem)
		result[i] = item.idx
	}
	return result
}

// WeightedSampleFloat64 與 WeightedSample 相同的演算法，但直接吃 float64
// 權重——dump 套件的粒子權重是連續的 exp(log_weight)，量化成整數再抽樣沒有
// 必要：ExpFloat64()/w 的分數計算本身就是浮點運算。
func WeightedSampleFloat64(c *core.Core, weights []float64, k int) []int {
	n := len(weights)
	if k <= 0 || n == 0 {
		return []int{}
	}
	if k > n {
		k = n
	}

	h := make(weightHeap, 0, k)
	for i, w := range weights {
		if w < 0 {
			panic("sampler: WeightedSampleFloat64: negative weight")
		}
		if w == 0 {
			continue
		}

		score := c.ExpFloat64() / w
		if h.Len() < k {
			heap.Push(&h, weightItem{idx: i, score: score})
		} else if score < h[0].score {
			h[0] = weightItem{idx: i, score: score}
			heap.Fix(&h, 0)
		}
	}

	actualCount := h.Len()
	if actualCount == 0 {
		return []int{}
	}

	result := make([]int, actualCount)
	for i := actualCount - 1; i >= 0; i-- {
		item := heap.Pop(&h).(weightItem)
		result[i] = item.idx
	}
	return result
}

// Shuffle 對任意切片做就地 Fisher-Yates (Knuth Shuffle) 均勻隨機重排。
//
// 與 core.Core.ShuffleInts 相同的演算法，但泛型化，可用於任意元素型別的切片。
func Shuffle[T any](c *core.Core, src []T) {
	for i := len(src) - 1; i > 0; i-- {
		j := c.IntN(i + 1)
		src[i], src[j] = src[j], src[i]
	}
}
