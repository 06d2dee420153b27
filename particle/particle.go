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

// Package particle 定義 smcpf 的基本單元：一個狀態空間點與其 log-weight 配對。
//
// S 不受任何約束——sampler 本身不比較、不雜湊、不序列化 S，只透過呼叫端提供的
// MoveSet 觸碰它；這對應把遊戲邏輯泛型化為任意 state-space 型別的作法。
package particle

import "math"

// Particle 封裝一個從狀態空間 S 抽出的值，與其 log-weight。
//
// 權威欄位是 LogWeight；Weight() 只是 exp(LogWeight) 的便利讀法，不應被當作
// 正規化後的機率直接使用（log-weight 的正規化由 sampler 負責）。
type Particle[S any] struct {
	value     S
	logWeight float64
}

// New 建立一個帶初始 log-weight 的粒子。
func New[S any](value S, logWeight float64) Particle[S] {
	return Particle[S]{value: value, logWeight: logWeight}
}

// Value 回傳粒子目前的值。
func (p *Particle[S]) Value() S {
	return p.value
}

// SetValue 取代粒子的值（例如 resample 複製後覆寫來源粒子的值）。
func (p *Particle[S]) SetValue(v S) {
	p.value = v
}

// LogWeight 回傳目前的 log-weight；-Inf 代表此粒子對任何加權總和貢獻為零。
func (p *Particle[S]) LogWeight() float64 {
	return p.logWeight
}

// SetLogWeight 覆寫 log-weight。
func (p *Particle[S]) SetLogWeight(w float64) {
	p.logWeight = w
}

// AddToLogWeight 將 δ 累加到 log-weight；正規化階段使用，必須是精確的加法，
// 不能先 exp 再做浮點運算再取 log。
func (p *Particle[S]) AddToLogWeight(delta float64) {
	p.logWeight += delta
}

// Weight 回傳 exp(LogWeight)；-Inf 的 log-weight 產生 0。
func (p *Particle[S]) Weight() float64 {
	return math.Exp(p.logWeight)
}
