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

package main

import (
	"math"

	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/sdk/core"
)

// gaussianTempering 實作一條從寬鬆高斯先驗退火到標準常態目標的 SMC 路徑：
// β_t = t/steps 是逆溫度，Move 依 Δβ 把目標對數密度累加進 log-weight，MCMC
// 用隨機漫步 Metropolis 在當前溫度下的尾隨分佈中做 rejuvenation。
//
// 這是 smc.Sampler[S] 的示範用法，不是 library 本體的一部分。
type gaussianTempering struct {
	priorSigma float64
	rwSigma    float64
	steps      int
}

func newGaussianTempering(steps int) *gaussianTempering {
	return &gaussianTempering{priorSigma: 3.0, rwSigma: 0.6, steps: steps}
}

// standardNormalLogPDF 回傳標準常態在 x 的對數密度（忽略正規化常數對
// tempering 增量沒有影響，但保留常數讓絕對密度值有意義，方便除錯輸出）。
func standardNormalLogPDF(x float64) float64 {
	return -0.5*x*x - 0.5*math.Log(2*math.Pi)
}

func priorLogPDF(x, sigma float64) float64 {
	return -0.5*(x*x)/(sigma*sigma) - math.Log(sigma) - 0.5*math.Log(2*math.Pi)
}

func (g *gaussianTempering) beta(t int) float64 {
	if t >= g.steps {
		return 1.0
	}
	return float64(t) / float64(g.steps)
}

func sampleStdNormal(rng *core.Core) float64 {
	u1 := rng.Uniform(1e-12, 1.0)
	u2 := rng.Uniform(0, 1.0)
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

func (g *gaussianTempering) Init(rng *core.Core) particle.Particle[float64] {
	x := sampleStdNormal(rng) * g.priorSigma
	return particle.New(x, 0)
}

// Move 把 (β_t − β_{t−1}) · [target(x) − prior(x)] 累加進 log-weight；這是標準
// 的退火重要性權重增量，prior 在 β=0 完全主導，target 在 β=1 完全主導。
func (g *gaussianTempering) Move(t int, p *particle.Particle[float64], rng *core.Core) {
	betaPrev := g.beta(t - 1)
	betaNow := g.beta(t)
	x := p.Value()
	delta := (betaNow - betaPrev) * (standardNormalLogPDF(x) - priorLogPDF(x, g.priorSigma))
	p.AddToLogWeight(delta)
}

func (g *gaussianTempering) temperedLogDensity(t int, x float64) float64 {
	b := g.beta(t)
	return (1-b)*priorLogPDF(x, g.priorSigma) + b*standardNormalLogPDF(x)
}

// MCMC 是隨機漫步 Metropolis，目標分佈是當前溫度 β_t 下的退火混合密度。
func (g *gaussianTempering) MCMC(t int, p *particle.Particle[float64], rng *core.Core) bool {
	x := p.Value()
	proposal := x + sampleStdNormal(rng)*g.rwSigma
	logAlpha := g.temperedLogDensity(t, proposal) - g.temperedLogDensity(t, x)
	if logAlpha >= 0 || math.Log(rng.Uniform(1e-12, 1.0)) < logAlpha {
		p.SetValue(proposal)
		return true
	}
	return false
}
