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
	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/sdk/core"
)

// uniformMoveSet 是一個最小可行的 MoveSet：值永遠是呼叫次數，log-weight
// 永遠是 0（均勻權重）——用於測試「ESS 不低於門檻時不該 resample」之類的
// 路徑，不引入任何隨機性干擾斷言。
type uniformMoveSet struct{}

func (uniformMoveSet) Init(rng *core.Core) particle.Particle[int] {
	return particle.New(0, 0)
}

func (uniformMoveSet) Move(t int, p *particle.Particle[int], rng *core.Core) {
	p.SetValue(p.Value() + 1)
}

func (uniformMoveSet) MCMC(t int, p *particle.Particle[int], rng *core.Core) bool {
	return false
}

// alwaysAcceptMoveSet 跟 uniformMoveSet 相同，但 MCMC 永遠接受——用於測試
// nAccepted 的計數路徑。
type alwaysAcceptMoveSet struct{}

func (alwaysAcceptMoveSet) Init(rng *core.Core) particle.Particle[int] {
	return particle.New(0, 0)
}

func (alwaysAcceptMoveSet) Move(t int, p *particle.Particle[int], rng *core.Core) {}

func (alwaysAcceptMoveSet) MCMC(t int, p *particle.Particle[int], rng *core.Core) bool {
	return true
}

// degenerateMoveSet 讓第一個被 Init 的粒子拿到極端大的 log-weight（20），其餘
// 粒子 log-weight 為 0（相對權重約 e^-20）；Init 依呼叫順序分配，只在序列執行（Initialise 或 numWorkers=1
// 的 Move/MCMC 迴圈）下具決定性。用於測試 ESS 退化觸發 resample / fribble
// 成長的路徑。
type degenerateMoveSet struct {
	calls int
}

func (m *degenerateMoveSet) Init(rng *core.Core) particle.Particle[float64] {
	lw := 0.0
	if m.calls == 0 {
		lw = 20
	}
	m.calls++
	return particle.New(0.0, lw)
}

func (m *degenerateMoveSet) Move(t int, p *particle.Particle[float64], rng *core.Core) {}

func (m *degenerateMoveSet) MCMC(t int, p *particle.Particle[float64], rng *core.Core) bool {
	return false
}
