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
// 本檔案 (lut.go) 實作了查找表 (Look-Up Table) 加權抽樣演算法，供 resample
// 套件在 residual resampling 的餘數抽樣階段使用。
//
// 演算法原理：
//   - 空間換時間：將權重展開為一個長陣列，每個索引出現的次數等於其權重。
//   - 抽樣：直接生成一個隨機索引存取陣列，即為 O(1) 操作，且只需一次 IntN。
//
// residual resampling 的餘數 q_i - floor(q_i) 是 [0,1) 的浮點數，要套用 LUT
// 必須先量化成整數張數（乘上一個固定精度後四捨五入）；R（待抽的餘數名額數）
// 相對 N 很小時，這個量化誤差可以忽略，且比重建一次 alias table 更省事。
package sampler

import (
	"fmt"
	"math"

	"github.com/nordholm-labs/smcpf/sdk/core"
)

const maxLUTCap uint64 = 10_000_000 // 約 80MB (int slice)

// LUT 是展開後的查找表：lut[j] 代表第 j 個「張數」對應到的原始索引。
//
// 舉例：三個殘差權重量化後為 [3,5,0]，權重總和為 8，展開為
// [0,0,0,1,1,1,1,1]，直接從 slice 中均勻取一個值即完成抽樣。
//
// 使用建議：權重總和（量化後）在 100_000 以下用 LUT；超過則改用
// AliasTable，避免 lut slice 過大。
type LUT []int

// BuildLUT 根據（已量化的）非負整數權重建立查找表，遇到負權重會 panic。
func BuildLUT[T Integers](src []T) LUT {
	if len(src) == 0 {
		return []int{}
	}

	acc := uint64(0)
	for _, v := range src {
		if v < 0 {
			panic("sampler: BuildLUT: negative value encountered")
		}
		uv := uint64(v)
		if acc > math.MaxUint64-uv {
			panic("sampler: BuildLUT: total weight overflow uint64 range")
		}
		acc += uv
	}

	if acc == 0 {
		panic("sampler: BuildLUT: all weights are zero")
	}
	if acc > maxLUTCap {
		panic(fmt.Sprintf("sampler: BuildLUT: total weight %d exceeds limit %d, use alias table instead", acc, maxLUTCap))
	}

	lut := make([]int, 0, int(acc))
	for i, v := range src {
		for j := T(0); j < v; j++ {
			lut = append(lut, i)
		}
	}
	return lut
}

// BuildLUTFromResiduals 將 [0,1) 浮點殘差權重量化為整數張數後建表。
//
// precision 是量化的縮放倍數（resample 套件固定使用 1e6）。量化後總張數為 0
// 或超過 LUT 的容量上限 maxLUTCap 時回傳空的 LUT，呼叫端據此改用
// AliasTable；負的殘差會 panic。
func BuildLUTFromResiduals(residuals []float64, precision float64) LUT {
	quantized := make([]int, len(residuals))
	total := uint64(0)
	for i, r := range residuals {
		q := int(math.Round(r * precision))
		if q < 0 {
			panic("sampler: BuildLUTFromResiduals: negative residual encountered")
		}
		quantized[i] = q
		total += uint64(q)
	}
	if total == 0 || total > maxLUTCap {
		return LUT{}
	}
	return BuildLUT(quantized)
}

// Pick 透過 Core 的 RNG 從 LUT 中隨機位置取一個值，若 lut 為空回傳 -1。
func (l LUT) Pick(c *core.Core) int {
	return c.Pick(l)
}
