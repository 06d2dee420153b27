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

// Package smc 實作 SMC 粒子取樣器的驅動層：逐代迭代、ESS 觸發的重採樣、
// 歷史堆疊串接、fribble 可變人口模式，以及並行的 move/mcmc 迴圈。
package smc

import (
	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/resample"
	"github.com/nordholm-labs/smcpf/sdk/core"
)

// MoveSet 是客戶端提供的能力包：初始化、傳播、MCMC 精煉三個 kernel。
//
// Move 與 MCMC 必須可以被不同 worker 對不同粒子同時呼叫而不共享可變狀態；
// 呼叫端傳入的 *core.Core 是該 worker 專屬的子串流（見 forkjoin.go 的 forEachParticle）。
type MoveSet[S any] interface {
	// Init 產生一個初始粒子，log-weight 必須合法（非 NaN）。
	Init(rng *core.Core) particle.Particle[S]
	// Move 把粒子的值與 log-weight 原地更新，傳播到時間 t。
	Move(t int, p *particle.Particle[S], rng *core.Core)
	// MCMC 提出一個 MCMC 精煉提案；回傳是否被接受。永遠回傳 false 的 kernel 合法。
	MCMC(t int, p *particle.Particle[S], rng *core.Core) bool
}

// ResampleMode 列舉 driver 層支援的重採樣模式，比 resample.Mode 多了 Fribble
// 這個 driver-only 的可變人口變體。
type ResampleMode uint8

const (
	Multinomial ResampleMode = iota
	Residual
	Stratified
	Systematic
	Fribble
)

var resampleModeNames = map[ResampleMode]string{
	Multinomial: "multinomial",
	Residual:    "residual",
	Stratified:  "stratified",
	Systematic:  "systematic",
	Fribble:     "fribble",
}

func (m ResampleMode) String() string {
	if s, ok := resampleModeNames[m]; ok {
		return s
	}
	return "unknown"
}

func (m ResampleMode) valid() bool {
	_, ok := resampleModeNames[m]
	return ok
}

// baseMode 把 driver 的 ResampleMode 映射到 resample 套件的四個基本演算法；
// Fribble 最終下採樣永遠走 stratified（spec §4.7 步驟 3），不會經過此映射。
func (m ResampleMode) baseMode() resample.Mode {
	switch m {
	case Multinomial:
		return resample.Multinomial
	case Residual:
		return resample.Residual
	case Stratified:
		return resample.Stratified
	case Systematic:
		return resample.Systematic
	default:
		panic("smc: baseMode called on non-base ResampleMode " + m.String())
	}
}
