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
	"io"
	"log/slog"

	"github.com/nordholm-labs/smcpf/config"
	"github.com/nordholm-labs/smcpf/dump"
	"github.com/nordholm-labs/smcpf/errs"
	"github.com/nordholm-labs/smcpf/graph"
	"github.com/nordholm-labs/smcpf/history"
	"github.com/nordholm-labs/smcpf/logging"
	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/resample"
	"github.com/nordholm-labs/smcpf/sdk/core"
)

// Sampler 是泛型的 SMC 粒子取樣器驅動：持有目前的 population，串接
// history.Stack、選用的 graph.Recorder，並把重採樣/MCMC 委派給 resample 套件。
//
// S 是粒子的狀態空間型別，完全由呼叫端透過 MoveSet 控制；Sampler 本身不檢視
// S 的內容。
type Sampler[S any] struct {
	mv MoveSet[S]

	particles []particle.Particle[S]
	n         int
	t         int
	ess       float64

	resampleMode ResampleMode
	threshold    float64

	hist     *history.Stack[S]
	graphRec *graph.Recorder
	ws       *resample.Workspace

	mainRNG    *core.Core
	seeds      *seedMaker
	numWorkers int
	workerRNGs []*core.Core

	log *slog.Logger

	// lastNAccepted / lastResampled 記錄「上一次 Iterate 結束時」的狀態，
	// 供下一次 Iterate 開頭 push 歷史快照時使用——快照描述的是「進入這次
	// 迭代時的 population」，而這個 population 的由來（是否剛被 resample
	// 過、上一輪 MCMC 接受了幾次）只有上一次迭代才知道。
	lastNAccepted int
	lastResampled bool
}

// defaultThreshold 是尚未呼叫 SetResampleParams 時使用的 ESS 門檻比例
// （θ = 0.5·N），對應 spec 建議的常見預設值。
const defaultThreshold = 0.5

// defaultNMax 是 fribble 可變人口模式下允許成長到的人口上限（SPEC_FULL §4.7）。
const defaultNMax = 100000

// New 建立一個帶有 N 個粒子、指定歷史模式、指定 seed 的 Sampler。
//
// rng 使用 core.NewDefault(seed) 建構的 PCG64；worker 子串流由 seedMaker 從
// 同一個 seed 派生，因此整個 run 在給定 seed 下是決定性、可重現的。
func New[S any](n int, historyMode history.Mode, seed int64) *Sampler[S] {
	if n <= 0 {
		panic(errs.NewCode(errs.CodeInvalidConfiguration, "N must be positive"))
	}
	s := &Sampler[S]{
		n:            n,
		resampleMode: Stratified,
		threshold:    defaultThreshold * float64(n),
		hist:         history.New[S](historyMode),
		ws:           resample.NewWorkspace(n),
		mainRNG:      core.NewDefault(seed),
		seeds:        newSeedMaker(seed),
		numWorkers:   1,
		log:          logging.NewDefaultAsyncLogger(logging.ModeSilence),
	}
	return s
}

// FromConfig 依 config.SamplerConfig 建構一個 Sampler；對應 spec §6 的
// 「從設定檔建構」入口。FromConfig 會先呼叫 cfg.Validate()，設定不合法時直接
// 回傳該錯誤。
func FromConfig[S any](cfg *config.SamplerConfig) (*Sampler[S], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hm := history.Disabled
	if cfg.HistoryMode == config.HistoryInMemory {
		hm = history.InMemory
	}
	s := New[S](cfg.N, hm, cfg.Seed)
	mode, err := resampleModeFromConfig(cfg.ResampleMode)
	if err != nil {
		return nil, err
	}
	s.resampleMode = mode
	s.threshold = cfg.ResolvedThreshold()
	s.SetNumThreads(cfg.NumWorkers)
	return s, nil
}

func resampleModeFromConfig(m config.ResampleMode) (ResampleMode, error) {
	switch m {
	case config.Multinomial:
		return Multinomial, nil
	case config.Residual:
		return Residual, nil
	case config.Stratified:
		return Stratified, nil
	case config.Systematic:
		return Systematic, nil
	case config.Fribble:
		return Fribble, nil
	default:
		return 0, errs.NewCode(errs.CodeInvalidConfiguration, "unknown resample mode: "+string(m))
	}
}

// SetMoveSet 註冊初始化/傳播/MCMC 的 kernel。必須在 Initialise 之前呼叫。
func (s *Sampler[S]) SetMoveSet(mv MoveSet[S]) {
	s.mv = mv
}

// SetResampleParams 設定重採樣模式與 ESS 門檻；threshold < 1 視為相對 N 的
// 比例（自動換算成絕對門檻 θ·N），>= 1 視為絕對門檻（對應 config 套件的慣例）。
func (s *Sampler[S]) SetResampleParams(mode ResampleMode, threshold float64) error {
	if !mode.valid() {
		return errs.NewCode(errs.CodeInvalidConfiguration, "unknown resample mode: "+mode.String())
	}
	if threshold <= 0 {
		return errs.NewCode(errs.CodeInvalidConfiguration, "threshold must be > 0")
	}
	s.resampleMode = mode
	if threshold < 1 {
		s.threshold = threshold * float64(s.n)
	} else {
		s.threshold = threshold
	}
	return nil
}

// SetNumThreads 設定 Move/MCMC 並行迴圈使用的 worker 數；<= 1 時序列執行。
// 改變 worker 數會重新派生 worker 的 RNG 子串流。
func (s *Sampler[S]) SetNumThreads(n int) {
	if n <= 0 {
		n = 1
	}
	s.numWorkers = n
	s.workerRNGs = nil
}

// SetLogger 替換預設的（silent）async logger。
func (s *Sampler[S]) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	s.log = l
}

// EnableGraphRecording 開啟 parent→child 圖紀錄（spec §4.8），回傳底層的
// graph.Recorder 供後續 Export。圖的更新只發生在 IterateESS 內的單一呼叫點
// （見 iterate.go），Initialise 不會碰圖；第一次 IterateESS 只會建立
// generation-1 的頂點，要到第二次 IterateESS 才會出現第一批邊。
func (s *Sampler[S]) EnableGraphRecording() *graph.Recorder {
	s.graphRec = graph.New()
	return s.graphRec
}

// NumParticles 回傳目前 population 大小（fribble 模式下可能大於建構時的 N，
// 每次迭代結束都會被下採樣回固定的 N）。
func (s *Sampler[S]) NumParticles() int { return len(s.particles) }

// Time 回傳目前的離散時間索引 T。
func (s *Sampler[S]) Time() int { return s.t }

// ESS 回傳最近一次 Iterate 計算出的有效樣本數；Initialise 之後、第一次
// Iterate 之前為 0。
func (s *Sampler[S]) ESS() float64 { return s.ess }

// History 回傳底層的歷史堆疊，供唯讀檢視（例如手動走訪 snapshot）使用。
func (s *Sampler[S]) History() *history.Stack[S] { return s.hist }

// ParticleValue 回傳第 i 個粒子目前的值。
func (s *Sampler[S]) ParticleValue(i int) S { return s.particles[i].Value() }

// ParticleLogWeight 回傳第 i 個粒子目前的 log-weight。
func (s *Sampler[S]) ParticleLogWeight(i int) float64 { return s.particles[i].LogWeight() }

// ParticleWeight 回傳第 i 個粒子目前的 weight = exp(log_weight)。
func (s *Sampler[S]) ParticleWeight(i int) float64 { return s.particles[i].Weight() }

// Dump 把目前的 population 渲染成人類可讀的表格寫到 w（見 dump 套件）。
func (s *Sampler[S]) Dump(w io.Writer) {
	dump.DumpPopulation(w, s.particles, s.mainRNG)
}
