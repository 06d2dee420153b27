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
	"github.com/nordholm-labs/smcpf/history"
	"github.com/nordholm-labs/smcpf/resample"
)

// Integrate 計算目前 population 上的加權積分 Σ w_i·f(value_i,aux) / Σ w_i
// （spec §4.6）。population 權重全為 0 時回傳 0。
func Integrate[S any, A any](s *Sampler[S], f func(value S, aux A) float64, aux A) float64 {
	var num, den float64
	for i := range s.particles {
		w := s.particles[i].Weight()
		num += w * f(s.particles[i].Value(), aux)
		den += w
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// IntegratePathSampling 委派給 history.IntegratePathSampling 做梯形路徑積分
// （spec §4.4）。歷史堆疊只保存「過去」的世代（T=0..目前T-1）；目前活著的
// population（generation T）還沒被推進堆疊，因此這裡先暫時把它推進去、委派
// 計算、再彈出來還原——對應原始實作（sampler.hh）裡
// IntegratePathSampling 的 push → 委派 → pop 模式，不留下任何副作用。
func IntegratePathSampling[S any, A any](s *Sampler[S], integrand history.Integrand[S, A], width history.Width[A], aux A) (float64, error) {
	s.hist.Push(len(s.particles), s.particles, s.lastNAccepted, 0)
	defer s.hist.Pop()
	return history.IntegratePathSampling(s.hist, integrand, width, aux)
}

// SampleMultinomial 從目前 population 的權重中抽 m 個索引（可重複），不改變
// population 本身——spec §4.5 的「一次性抽樣」操作，跟驅動迭代的 resample
// 完全無關。
func (s *Sampler[S]) SampleMultinomial(m int) []int {
	return resample.SampleIndices(resample.Multinomial, s.mainRNG, s.currentWeights(), m)
}

// SampleStratified 同 SampleMultinomial，但用 stratified 游標走位抽樣。
func (s *Sampler[S]) SampleStratified(m int) []int {
	return resample.SampleIndices(resample.Stratified, s.mainRNG, s.currentWeights(), m)
}

// SampleSystematic 同 SampleMultinomial，但用 systematic 游標走位抽樣；
// stratified 參數為 true 時等同 SampleStratified（單一入口同時覆蓋兩種游標
// 變體，對應 spec §4.5 的 sample_systematic(m, stratified?)）。
func (s *Sampler[S]) SampleSystematic(m int, stratified bool) []int {
	mode := resample.Systematic
	if stratified {
		mode = resample.Stratified
	}
	return resample.SampleIndices(mode, s.mainRNG, s.currentWeights(), m)
}

func (s *Sampler[S]) currentWeights() []float64 {
	weights := make([]float64, len(s.particles))
	for i := range s.particles {
		weights[i] = s.particles[i].Weight()
	}
	return weights
}
