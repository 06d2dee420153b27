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

// Package dump 實作 spec §6 的「人類可讀輸出」：串流單個粒子或整個
// population。表格繪製沿用 teacher 的 stats/stat.go fmtTable 做法：
// mattn/go-runewidth 量寬（CJK 字元佔兩格），golang.org/x/text/message 做
// locale-aware 數字格式化。
package dump

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nordholm-labs/smcpf/particle"
	"github.com/nordholm-labs/smcpf/sdk/core"
	"github.com/nordholm-labs/smcpf/sdk/sampler"
)

var lang = language.English

// maxFullDump 之下整個 population 逐行列出；之上改用 WeightedSample 抽出一個
// 代表性子集（依權重優先權抽樣），避免表格膨脹到不可讀。
const maxFullDump = 64

// representativeSampleSize 是大型 population 降採樣後顯示的列數。
const representativeSampleSize = 32

// DumpParticle 把單個粒子（索引、值、log-weight、weight）渲染成一張單列表格。
func DumpParticle[S any](w io.Writer, i int, p *particle.Particle[S]) {
	keys := []string{"index", "value", "log_weight", "weight"}
	msg := map[string]string{
		"index":      fmt.Sprintf("%d", i),
		"value":      fmt.Sprintf("%v", p.Value()),
		"log_weight": fmt.Sprintf("%.6f", p.LogWeight()),
		"weight":     fmt.Sprintf("%.6f", p.Weight()),
	}
	fmt.Fprint(w, fmtTable(fmt.Sprintf("particle[%d]", i), keys, msg))
}

// DumpPopulation 把整個 population 渲染成一張多列表格。population 超過
// maxFullDump 時改用 WeightedSample 抽出 representativeSampleSize 個代表性
// 粒子（依權重優先抽樣，見 sdk/sampler.WeightedSample），並在標題註明這是子集。
func DumpPopulation[S any](w io.Writer, particles []particle.Particle[S], c *core.Core) {
	n := len(particles)
	if n == 0 {
		fmt.Fprintln(w, "(empty population)")
		return
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	title := fmt.Sprintf("population (N=%d)", n)

	if n > maxFullDump {
		weights := make([]float64, n)
		for i := range particles {
			weights[i] = particles[i].Weight()
		}
		k := representativeSampleSize
		if k > n {
			k = n
		}
		sample := sampler.WeightedSampleFloat64(c, weights, k)
		sort.Ints(sample)
		indices = sample
		title = fmt.Sprintf("population (N=%d, showing %d representative particles)", n, len(indices))
	}

	fmt.Fprintln(w, renderRows(title, particles, indices))
}

func renderRows[S any](title string, particles []particle.Particle[S], indices []int) string {
	p := message.NewPrinter(lang)
	header := []string{"index", "value", "log_weight", "weight"}

	rows := make([][]string, 0, len(indices))
	for _, i := range indices {
		rows = append(rows, []string{
			p.Sprintf("%d", i),
			fmt.Sprintf("%v", particles[i].Value()),
			p.Sprintf("%.6f", particles[i].LogWeight()),
			p.Sprintf("%.6f", particles[i].Weight()),
		})
	}
	return fmtMultiTable(title, header, rows)
}

// fmtTable 是 teacher stats/stat.go 同名函式的單列特化版：key/value 對齊的
// box-drawing 表格。
func fmtTable(title string, keys []string, msg map[string]string) string {
	pr := message.NewPrinter(lang)
	maxKeyLen, maxValLen := 0, 0
	for _, k := range keys {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(msg[k]); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)
	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	out := top
	out += pr.Sprintf("|%s%s%s|\n", blank(left), title, blank(right))
	out += divider
	for _, k := range keys {
		out += pr.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k])))
	}
	out += divider
	return out
}

// fmtMultiTable 是多列版本：每個 header 一欄，欄寬各自取該欄所有值（含標頭）
// 的最大寬度。
func fmtMultiTable(title string, header []string, rows [][]string) string {
	pr := message.NewPrinter(lang)
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	totalInner := 0
	for _, w := range widths {
		totalInner += w
	}
	totalInner += len(widths) - 1

	var b strings.Builder
	b.WriteString("+" + strings.Repeat("-", totalInner+2) + "+\n")
	titleW := runewidth.StringWidth(title)
	left := (totalInner + 2 - titleW) / 2
	right := totalInner + 2 - titleW - left
	b.WriteString(pr.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	b.WriteString(rowDivider(widths))
	b.WriteString(formatRow(pr, header, widths))
	b.WriteString(rowDivider(widths))
	for _, row := range rows {
		b.WriteString(formatRow(pr, row, widths))
	}
	b.WriteString(rowDivider(widths))
	return b.String()
}

func rowDivider(widths []int) string {
	var b strings.Builder
	b.WriteString("+")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w))
		b.WriteString("+")
	}
	b.WriteString("\n")
	return b.String()
}

func formatRow(pr *message.Printer, cells []string, widths []int) string {
	var b strings.Builder
	b.WriteString("|")
	for i, cell := range cells {
		pad := widths[i] - 2 - runewidth.StringWidth(cell)
		b.WriteString(pr.Sprintf(" %s%s |", cell, blank(pad)))
	}
	b.WriteString("\n")
	return b.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}
