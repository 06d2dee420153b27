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

// Package graph 實作 spec §4.8 的選用性 parent→child 圖紀錄器，背後是
// gonum.org/v1/gonum/graph/simple.DirectedGraph，節點是 (generation, slot)
// 配對。選用性的 Export 用 gonum 的 DOT encoder 輸出 Graphviz 原始碼。
package graph

import (
	"bytes"
	"io"

	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// Vertex 是一個 (generation, slot) 配對。
type Vertex struct {
	Generation int
	Slot       int
}

// Recorder 把粒子在世代之間的親緣關係記錄成有向圖。
//
// 契約（SPEC_FULL §4.8 / spec §9 設計筆記）：
//   - 必須在 T 遞增「之前」更新，呼叫點固定在 driver 內單一位置。
//   - 沒有 resample 發生時，parent[i] = i（identity mapping）。
//   - IterateBack 從不回滾圖——圖是只增不減的稽核結構（SPEC_FULL §9 決議 2）。
type Recorder struct {
	g      *simple.DirectedGraph
	nextID map[Vertex]int64
	lastID int64
}

// New 建立一個空的 Recorder。
func New() *Recorder {
	return &Recorder{
		g:      simple.NewDirectedGraph(),
		nextID: make(map[Vertex]int64),
	}
}

func (r *Recorder) idFor(v Vertex) int64 {
	if id, ok := r.nextID[v]; ok {
		return id
	}
	id := r.lastID
	r.lastID++
	r.nextID[v] = id
	r.g.AddNode(simple.Node(id))
	return id
}

// AddGeneration0 在第一次迭代（T=0 → T=1）時，為每個 slot 加一個 generation-1
// 頂點；之後的世代一律透過 AddEdge 接上親緣關係。
func (r *Recorder) AddGeneration0(n int) {
	for i := 0; i < n; i++ {
		r.idFor(Vertex{Generation: 1, Slot: i})
	}
}

// AddEdge 加一條從 (t, parent) 到 (t+1, slot) 的邊；parent==slot 代表未發生
// resample（identity mapping）。
func (r *Recorder) AddEdge(t int, parent int, slot int) {
	from := r.idFor(Vertex{Generation: t, Slot: parent})
	to := r.idFor(Vertex{Generation: t + 1, Slot: slot})
	r.g.SetEdge(simple.Edge{F: simple.Node(from), T: simple.Node(to)})
}

// RecordIteration 是驅動層呼叫的單一入口：parent 長度須等於目前 population
// 大小；parent[i] 是 slot i 在 generation t 的來源 slot（無 resample 時為 i 本身）。
func (r *Recorder) RecordIteration(t int, parent []int) {
	if t == 0 {
		r.AddGeneration0(len(parent))
		return
	}
	for slot, p := range parent {
		r.AddEdge(t, p, slot)
	}
}

// NumNodes、NumEdges 是唯讀的觀測用輔助方法。
func (r *Recorder) NumNodes() int { return r.g.Nodes().Len() }
func (r *Recorder) NumEdges() int { return r.g.Edges().Len() }

// Export 把累積的圖以 Graphviz DOT 格式寫到 w，供客戶端以外部工具視覺化。
func (r *Recorder) Export(w io.Writer) error {
	data, err := dot.Marshal(r.g, "smc_history", "", "  ")
	if err != nil {
		return err
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	return err
}
