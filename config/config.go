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

// Package config 提供 Sampler 的設定面：程式化建構（SamplerConfig 本身即可
// 直接構造）與 YAML 載入（給批次/benchmark harness 用來掃描設定組合）。
package config

import (
	"io/fs"

	"github.com/nordholm-labs/smcpf/errs"
	"gopkg.in/yaml.v3"
)

// ResampleMode 對應 resample.Mode 加上 driver 層獨有的 fribble 變體。
type ResampleMode string

const (
	Multinomial ResampleMode = "multinomial"
	Residual    ResampleMode = "residual"
	Stratified  ResampleMode = "stratified"
	Systematic  ResampleMode = "systematic"
	Fribble     ResampleMode = "fribble"
)

var validResampleModes = map[ResampleMode]bool{
	Multinomial: true,
	Residual:    true,
	Stratified:  true,
	Systematic:  true,
	Fribble:     true,
}

// HistoryMode 對應 history.Mode 的 YAML 可讀名稱。
type HistoryMode string

const (
	HistoryNone     HistoryMode = "none"
	HistoryInMemory HistoryMode = "in_memory"
)

// SamplerConfig 是 Sampler 的完整靜態設定；可直接以字面值建構，也可用 Load
// 從 YAML 讀入。
type SamplerConfig struct {
	N            int          `yaml:"n"`
	HistoryMode  HistoryMode  `yaml:"history_mode"`
	ResampleMode ResampleMode `yaml:"resample_mode"`
	// Threshold 可以是 [0,1) 的比例（相對 N 縮放成 θ·N）或 ≥1 的絕對數量；
	// 語意由 Validate 依數值範圍判定。
	Threshold  float64 `yaml:"threshold"`
	NumWorkers int     `yaml:"num_workers"`
	Seed       int64   `yaml:"seed"`
}

// Load 從 fsys 中的 path 讀取一份 YAML 設定檔並反解成 SamplerConfig；不做
// Validate（呼叫端應明確呼叫 Validate 以取得 INVALID_CONFIGURATION）。
func Load(fsys fs.FS, path string) (*SamplerConfig, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, errs.Wrap(err, "config: failed to read "+path)
	}
	cfg := &SamplerConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(err, "config: failed to unmarshal yaml")
	}
	return cfg, nil
}

// ResolvedThreshold 回傳以絕對粒子數表示的門檻：分數門檻 [0,1) 依 N 縮放成
// θ·N；絕對門檻 ≥1 原樣回傳。呼叫前必須先通過 Validate。
func (c *SamplerConfig) ResolvedThreshold() float64 {
	if c.Threshold < 1 {
		return c.Threshold * float64(c.N)
	}
	return c.Threshold
}

// Validate 檢查 spec §7 列出的三種 INVALID_CONFIGURATION 情形（N 非正、
// threshold <= 0、未知的 resample mode），另外也拒絕未知的 history mode 與
// 負的 num_workers。正的 threshold 不做範圍檢查：落在 [0,1) 視為分數門檻，
// ≥1 視為絕對門檻。
func (c *SamplerConfig) Validate() error {
	if c.N <= 0 {
		return errs.NewCode(errs.CodeInvalidConfiguration, "N must be positive")
	}
	// threshold <= 0 非法；否則依數值自動分類為 [0,1) 的分數門檻或 >=1 的絕對
	// 門檻，兩個桶覆蓋所有正實數，不需要額外的範圍檢查——收緊之處在於下面的
	// ResampleMode/HistoryMode/NumWorkers 檢查，原始實作對這些並未驗證。
	if c.Threshold <= 0 {
		return errs.NewCode(errs.CodeInvalidConfiguration, "threshold must be > 0")
	}
	if !validResampleModes[c.ResampleMode] {
		return errs.NewCode(errs.CodeInvalidConfiguration, "unknown resample mode: "+string(c.ResampleMode))
	}
	if c.HistoryMode != HistoryNone && c.HistoryMode != HistoryInMemory {
		return errs.NewCode(errs.CodeInvalidConfiguration, "unknown history mode: "+string(c.HistoryMode))
	}
	if c.NumWorkers < 0 {
		return errs.NewCode(errs.CodeInvalidConfiguration, "num_workers must be >= 0")
	}
	return nil
}
