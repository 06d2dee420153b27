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
	"math"
	"testing"

	"github.com/nordholm-labs/smcpf/history"
	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/sdk/core"
)

func TestFribbleGrowsPopulationThenDownsamplesToN(t *testing.T) {
	s := New[float64](20, history.InMemory, 7)
	s.SetMoveSet(&degenerateMoveSet{})
	if err := s.SetResampleParams(Fribble, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Initialise()

	ess, err := s.IterateESS()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ess >= s.threshold {
		t.Fatalf("expected the pre-growth ESS to be below threshold, got ess=%v threshold=%v", ess, s.threshold)
	}
	if s.NumParticles() != 20 {
		t.Fatalf("expected fribble to downsample back to N=20, got %d", s.NumParticles())
	}
	if s.Time() != 1 {
		t.Fatalf("expected T=1, got %d", s.Time())
	}
	if !s.lastResampled {
		t.Fatal("expected lastResampled=true once the pool outgrew N and was downsampled")
	}
}

// TestFribbleGrowthAlwaysRunsAtLeastOneBatch 驗證成長池每次呼叫一定從空的
// 開始：就算進來時的population早就已經是uniform weight（ESS=N，遠高於門檻），
// 清空池子後 currentEss 從 0 起算，保證第一輪 for 迴圈必然執行，長出剛好一批
// （batch size 固定等於 N）就讓池子回到 N，不需要下採樣。這取代了先前把「ESS
// 已達標就完全跳過成長」當成正確行為的斷言——清空池子之後這種情形不可能發生。
func TestFribbleGrowthAlwaysRunsAtLeastOneBatch(t *testing.T) {
	s := New[int](10, history.Disabled, 3)
	s.SetMoveSet(uniformMoveSet{})
	if err := s.SetResampleParams(Fribble, 0.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Initialise()

	if _, err := s.IterateESS(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.NumParticles() != 10 {
		t.Fatalf("expected exactly one mandatory growth batch to land on N=10, got %d", s.NumParticles())
	}
	if s.lastResampled {
		t.Fatal("expected lastResampled=false: one batch landed exactly on N, no downsample needed")
	}
	// uniform weights的MoveSet從不改動log-weight，成長批次的每個粒子都繼承
	// 0，合併時 m_local == m_global == 0，平移量是 0——原始權重維持不變。
	if s.ParticleLogWeight(0) != 0 {
		t.Fatalf("expected log-weight to be left untouched, got %v", s.ParticleLogWeight(0))
	}
}

// weightBumpMoveSet 是一個會實際改動 log-weight 的 MoveSet：每次 Move 都把
// log-weight 加上一個依 slot 遞增的量，讓同一批粒子之間、以及前後兩批粒子
// 之間的 log-weight 量級彼此不同——用來逼出 mergeFribbleBatch 的兩個分支都
// 被觸發過（不像 uniformMoveSet/degenerateMoveSet 那樣 Move 完全不碰權重）。
type weightBumpMoveSet struct {
	bump float64
}

func (m weightBumpMoveSet) Init(rng *core.Core) particle.Particle[int] {
	return particle.New(0, 0)
}

func (m weightBumpMoveSet) Move(t int, p *particle.Particle[int], rng *core.Core) {
	p.AddToLogWeight(m.bump * float64(p.Value()+1))
	p.SetValue(p.Value() + 1)
}

func (m weightBumpMoveSet) MCMC(t int, p *particle.Particle[int], rng *core.Core) bool {
	return false
}

// TestMergeFribbleBatchKeepsPoolMaxAtZero 直接驗證 mergeFribbleBatch 維持的
// 不變量（SPEC_FULL testable property 7: max_i log_weight_i == 0 after every
// batch append）。用 weightBumpMoveSet 透過真正的 Move 呼叫產生兩批量級不同
// 的 log-weight（第二批的 bump 比第一批大，逼出 m_local > m_global 那一支；
// 第三批的 bump 又比第二批小，逼出 else 那一支），在每次 append 前後都檢查
// pool 的最大 log-weight 是否恰好是 0。
//
// 這裡直接呼叫套件內部的 mergeFribbleBatch，而不是透過公開的 IterateESS，
// 是因為 iterateFribble 在池子大小超過 N 時會把最終粒子的 log-weight 整批
// 重設成 0（下採樣的正規化），這會把 rescale 算式本身對不對的訊號蓋掉；
// 固定 batch size 又恆等於 N，兩批以上必然超過 N、必然觸發下採樣，所以只有
// 在 mergeFribbleBatch 這一層直接檢查，才能在不被下採樣遮蔽的情況下驗證
// 合併演算法本身。
func TestMergeFribbleBatchKeepsPoolMaxAtZero(t *testing.T) {
	rng := core.NewDefault(42)
	mv := weightBumpMoveSet{}

	var pool []particle.Particle[int]
	mGlobal := maxLogWeight(pool)

	makeBatch := func(n int, bump float64) []particle.Particle[int] {
		mv.bump = bump
		batch := make([]particle.Particle[int], n)
		for i := range batch {
			batch[i] = particle.New(i, 0)
			mv.Move(0, &batch[i], rng)
		}
		return batch
	}

	bumps := []float64{1.0, 5.0, 0.1}
	for batchIdx, bump := range bumps {
		batch := makeBatch(4, bump)
		mGlobal = mergeFribbleBatch(pool, batch, mGlobal)
		pool = append(pool, batch...)

		if got := maxLogWeight(pool); got != 0 {
			t.Fatalf("batch %d (bump=%v): expected pool max log-weight == 0, got %v", batchIdx, bump, got)
		}
		if math.IsInf(mGlobal, 0) {
			t.Fatalf("batch %d: mGlobal became non-finite: %v", batchIdx, mGlobal)
		}
	}
}

// TestMergeFribbleBatchRescalesExistingPoolOnNewMax 針對性地驗證
// mGlobal-rescale 那一支：新批次的 m_local 大於目前的 m_global 時，既有的
// pool 必須被往下平移 (m_global-m_local)，新批次必須被平移到 -m_local，而
// 不是只平移其中一邊（先前的 bug：pool 有平移但 batch 完全沒動）。
func TestMergeFribbleBatchRescalesExistingPoolOnNewMax(t *testing.T) {
	pool := []particle.Particle[int]{
		particle.New(0, 0),
		particle.New(1, -2),
	}
	mGlobal := maxLogWeight(pool) // 0

	batch := []particle.Particle[int]{
		particle.New(2, 10),
		particle.New(3, 7),
	}

	got := mergeFribbleBatch(pool, batch, mGlobal)
	if got != 10 {
		t.Fatalf("expected mGlobal to become 10 (the new batch's max), got %v", got)
	}
	if pool[0].LogWeight() != -10 {
		t.Fatalf("expected pool[0] shifted by mGlobal-mLocal=0-10=-10, got %v", pool[0].LogWeight())
	}
	if pool[1].LogWeight() != -12 {
		t.Fatalf("expected pool[1] shifted by -10, got %v", pool[1].LogWeight())
	}
	if batch[0].LogWeight() != 0 {
		t.Fatalf("expected batch[0] shifted by -mLocal=-10, got %v", batch[0].LogWeight())
	}
	if batch[1].LogWeight() != -3 {
		t.Fatalf("expected batch[1] shifted by -10, got %v", batch[1].LogWeight())
	}
}

// TestMergeFribbleBatchRescalesOnlyBatchWhenGlobalStillLeads 驗證另一支：
// 新批次的 m_local 沒有超過既有的 m_global 時，pool 完全不動，只有新批次被
// 平移到 -m_global（先前的 bug：用 mLocal-mGlobal 平移，多出一個虛假的
// +mLocal 項）。
func TestMergeFribbleBatchRescalesOnlyBatchWhenGlobalStillLeads(t *testing.T) {
	pool := []particle.Particle[int]{
		particle.New(0, 0),
		particle.New(1, -5),
	}
	mGlobal := maxLogWeight(pool) // 0

	batch := []particle.Particle[int]{
		particle.New(2, -1),
		particle.New(3, -4),
	}

	got := mergeFribbleBatch(pool, batch, mGlobal)
	if got != 0 {
		t.Fatalf("expected mGlobal to stay at 0, got %v", got)
	}
	if pool[0].LogWeight() != 0 || pool[1].LogWeight() != -5 {
		t.Fatalf("expected pool untouched, got %v %v", pool[0].LogWeight(), pool[1].LogWeight())
	}
	if batch[0].LogWeight() != -1 {
		t.Fatalf("expected batch[0] shifted by -mGlobal=0, got %v", batch[0].LogWeight())
	}
	if batch[1].LogWeight() != -4 {
		t.Fatalf("expected batch[1] shifted by -mGlobal=0, got %v", batch[1].LogWeight())
	}
}
