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

package resample

import (
	"github.com/nordholm-labs/smcpf/sdk/core"
	"github.com/nordholm-labs/smcpf/sdk/sampler"
)

// SampleIndices 從 weights（長度 m）依 mode 抽出 k 個索引（可重複），不要求
// k == len(weights)——這與 ChildCounts 不同：ChildCounts 固定輸出 N 個 child
// count 對應 N 個輸入；SampleIndices 是「從 m 個加權項目中抽 k 個代表」，供
// driver 層的 SampleMultinomial/SampleStratified/SampleSystematic（spec
// §4.5）與 fribble 可變人口模式的最終下採樣共用。
//
// Residual 模式不在此列——residual resampling 的配額/殘差機制本質上假設
// 輸出數等於輸入數，沒有自然的 k != m 推廣，spec §4.5 也只列了另外三種。
func SampleIndices(mode Mode, c *core.Core, weights []float64, k int) []int {
	switch mode {
	case Multinomial:
		return multinomialIndices(c, weights, k)
	case Stratified:
		return cumulativeWalkIndices(c, weights, k, true)
	case Systematic:
		return cumulativeWalkIndices(c, weights, k, false)
	default:
		panic("resample: SampleIndices does not support mode " + mode.String())
	}
}

func multinomialIndices(c *core.Core, weights []float64, k int) []int {
	out := make([]int, k)
	if k == 0 {
		return out
	}
	at := sampler.BuildAliasTable(weights)
	for i := 0; i < k; i++ {
		out[i] = at.Pick(c)
	}
	return out
}

// cumulativeWalkIndices 是 cumulativeWalk 的推廣版：輸入 m 個加權項目、輸出
// k 個索引，游標走位邏輯相同，只是名額格子的寬度是 1/k 而不是 1/m。
func cumulativeWalkIndices(c *core.Core, weights []float64, k int, stratified bool) []int {
	out := make([]int, k)
	m := len(weights)
	if k == 0 || m == 0 {
		return out
	}
	total := sum(weights)
	step := 1.0 / float64(k)

	u := c.Uniform(0, step)
	idx := 0
	cum := weights[0] / total

	for j := 0; j < k; j++ {
		target := float64(j)*step + u
		for cum <= target && idx < m-1 {
			idx++
			cum += weights[idx] / total
		}
		out[j] = idx
		if stratified {
			u = c.Uniform(0, step)
		}
	}
	return out
}
