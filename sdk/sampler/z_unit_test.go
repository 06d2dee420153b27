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

package sampler

import (
	"crypto/rand"
	"math"
	"math/big"
	"slices"
	"testing"

	"github.com/nordholm-labs/smcpf/sdk/core"
)

// -----------------------------------------------------------------------------
// Helper Functions
// -----------------------------------------------------------------------------

// assertPanic 驗證函數是否如預期觸發 panic
func assertPanic(t *testing.T, f func(), msg string) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic for %s, but got none", msg)
		}
	}()
	f()
}

// checkDistributionInt 驗證整數權重抽樣結果的分佈是否符合預期
func checkDistributionInt(t *testing.T, name string, weights []int, samples []int, tolerance float64) {
	t.Helper()
	totalW := 0
	for _, w := range weights {
		totalW += w
	}
	if totalW == 0 {
		return
	}

	counts := make(map[int]int)
	for _, idx := range samples {
		counts[idx]++
	}

	totalSamples := len(samples)
	for i, w := range weights {
		if w == 0 {
			if counts[i] > 0 {
				t.Errorf("[%s] expected 0 samples for index %d (weight 0), got %d", name, i, counts[i])
			}
			continue
		}
		expectedProb := float64(w) / float64(totalW)
		actualProb := float64(counts[i]) / float64(totalSamples)
		diff := math.Abs(expectedProb - actualProb)
		if diff > tolerance {
			t.Errorf("[%s] index %d: expected prob %.3f, got %.3f (diff %.3f > tol %.3f)",
				name, i, expectedProb, actualProb, diff, tolerance)
		}
	}
}

// checkDistributionFloat 驗證浮點權重抽樣結果的分佈是否符合預期
func checkDistributionFloat(t *testing.T, name string, weights []float64, samples []int, tolerance float64) {
	t.Helper()
	totalW := 0.0
	for _, w := range weights {
		totalW += w
	}
	if totalW == 0 {
		return
	}

	counts := make(map[int]int)
	for _, idx := range samples {
		counts[idx]++
	}

	totalSamples := len(samples)
	for i, w := range weights {
		if w == 0 {
			if counts[i] > 0 {
				t.Errorf("[%s] expected 0 samples for index %d (weight 0), got %d", name, i, counts[i])
			}
			continue
		}
		expectedProb := w / totalW
		actualProb := float64(counts[i]) / float64(totalSamples)
		diff := math.Abs(expectedProb - actualProb)
		if diff > tolerance {
			t.Errorf("[%s] index %d: expected prob %.3f, got %.3f (diff %.3f > tol %.3f)",
				name, i, expectedProb, actualProb, diff, tolerance)
		}
	}
}

// setEqual 檢查兩個 slice 是否包含相同的元素（不考慮順序）
func setEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for _, v := range a {
		if !slices.Contains(b, v) {
			return false
		}
	}
	return true
}

func randSeed() int64 {
	seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	return seed.Int64()
}

// -----------------------------------------------------------------------------
// Tests for WeightedShuffle
// -----------------------------------------------------------------------------

func TestWeightedShuffle_Basic(t *testing.T) {
	c := core.New(core.Default().New(1))
	weights := []int{10, 90}
	trials := 10000
	firstIdxCount := 0

	for i := 0; i < trials; i++ {
		res := WeightedShuffle(c, weights)
		if len(res) != 2 {
			t.Fatalf("expected length 2, got %d", len(res))
		}
		if res[0] == 1 {
			firstIdxCount++
		}
	}

	rate := float64(firstIdxCount) / float64(trials)
	if rate < 0.85 || rate > 0.95 {
		t.Errorf("WeightedShuffle prob mismatch: expected ~0.90, got %.4f", rate)
	}
}

func TestWeightedShuffleZerosAtEnd(t *testing.T) {
	c := core.New(core.Default().New(1))
	weights := []int{0, 3, 0, 2}

	got := WeightedShuffle(c, weights)
	if len(got) != len(weights) {
		t.Fatalf("length mismatch, got %d want %d", len(got), len(weights))
	}

	seen := map[int]bool{}
	for _, idx := range got {
		if idx < 0 || idx >= len(weights) {
			t.Fatalf("index out of range: %d", idx)
		}
		if seen[idx] {
			t.Fatalf("duplicate index: %d", idx)
		}
		seen[idx] = true
	}

	prefix := got[:2]
	for _, idx := range prefix {
		if idx == 0 || idx == 2 {
			t.Fatalf("zero-weight index appeared before positives: %v", got)
		}
	}
	suffix := got[2:]
	for _, idx := range suffix {
		if idx != 0 && idx != 2 {
			t.Fatalf("positive index appeared after zeros: %v", got)
		}
	}
}

func TestWeightedShuffle_NegativePanic(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	assertPanic(t, func() {
		WeightedShuffle(c, []int{10, -1})
	}, "Negative Weight")
}

// -----------------------------------------------------------------------------
// Tests for WeightedShuffleWithFilter
// -----------------------------------------------------------------------------

func TestWeightedShuffleWithFilterSkipsZeros(t *testing.T) {
	c := core.New(core.Default().New(2))
	weights := []int{0, 1, 0, 2}

	got := WeightedShuffleWithFilter(c, weights)
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if !setEqual(got, []int{1, 3}) {
		t.Fatalf("unexpected indices: %v", got)
	}
}

func TestWeightedShuffleWithFilter_NegativePanic(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	assertPanic(t, func() {
		WeightedShuffleWithFilter(c, []int{10, -1})
	}, "Negative Weight")
}

// -----------------------------------------------------------------------------
// Tests for WeightedSample
// -----------------------------------------------------------------------------

func TestWeightedSample_Basic(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	weights := []int{10, 10, 80}
	trials := 100000
	samples := make([]int, 0, trials)

	for i := 0; i < trials; i++ {
		res := WeightedSample(c, weights, 1)
		if len(res) > 0 {
			samples = append(samples, res[0])
		}
	}
	checkDistributionInt(t, "WeightedSample K=1", weights, samples, 0.01)
}

func TestWeightedSampleMatchesFilteredShuffle(t *testing.T) {
	weights := []int{5, 0, 1, 4}
	const seed = 7

	order := WeightedShuffleWithFilter(core.New(core.Default().New(seed)), weights)
	got := WeightedSample(core.New(core.Default().New(seed)), weights, 2)

	expected := order[:2]
	if !slices.Equal(expected, got) {
		t.Fatalf("expected %v, got %v (WeightedSample should pick top-k of shuffle order)", expected, got)
	}
}

func TestWeightedSampleKExceedsPositives(t *testing.T) {
	weights := []int{0, 2, 0}
	got := WeightedSample(core.New(core.Default().New(11)), weights, 5)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected only index 1, got %v", got)
	}
}

func TestWeightedSampleAllZero(t *testing.T) {
	weights := []int{0, 0, 0}
	got := WeightedSample(core.New(core.Default().New(13)), weights, 3)
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestWeightedSampleNegativePanics(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	assertPanic(t, func() {
		WeightedSample(c, []int{1, -1, 2}, 2)
	}, "Negative Weight")
}

// -----------------------------------------------------------------------------
// Tests for WeightedSampleFloat64
// -----------------------------------------------------------------------------

func TestWeightedSampleFloat64_Basic(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	weights := []float64{0.1, 0.1, 0.8}
	trials := 100000
	samples := make([]int, 0, trials)

	for i := 0; i < trials; i++ {
		res := WeightedSampleFloat64(c, weights, 1)
		if len(res) > 0 {
			samples = append(samples, res[0])
		}
	}
	checkDistributionFloat(t, "WeightedSampleFloat64 K=1", weights, samples, 0.01)
}

func TestWeightedSampleFloat64KExceedsPositives(t *testing.T) {
	weights := []float64{0, 2.5, 0}
	got := WeightedSampleFloat64(core.New(core.Default().New(11)), weights, 5)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected only index 1, got %v", got)
	}
}

func TestWeightedSampleFloat64AllZero(t *testing.T) {
	weights := []float64{0, 0, 0}
	got := WeightedSampleFloat64(core.New(core.Default().New(13)), weights, 3)
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

func TestWeightedSampleFloat64NegativePanics(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	assertPanic(t, func() {
		WeightedSampleFloat64(c, []float64{1, -1, 2}, 2)
	}, "Negative Weight")
}

// -----------------------------------------------------------------------------
// Tests for AliasTable (float64 weights)
// -----------------------------------------------------------------------------

func TestAliasTable_Distribution(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	weights := []float64{0.1, 0.2, 0.7}
	at := BuildAliasTable(weights)

	trials := 100000
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		samples[i] = at.Pick(c)
	}
	checkDistributionFloat(t, "AliasTable", weights, samples, 0.01)
}

func TestAliasTable_UnnormalizedWeights(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	weights := []float64{10, 20, 70} // does not sum to 1, must still work
	at := BuildAliasTable(weights)

	trials := 100000
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		samples[i] = at.Pick(c)
	}
	checkDistributionFloat(t, "AliasTable unnormalized", weights, samples, 0.01)
}

func TestAliasTable_Panics(t *testing.T) {
	assertPanic(t, func() {
		BuildAliasTable([]float64{0, 0, 0})
	}, "All zero weights")

	assertPanic(t, func() {
		BuildAliasTable([]float64{10, -1})
	}, "Negative weight")
}

func TestAliasTable_Empty(t *testing.T) {
	at := BuildAliasTable([]float64{})
	if got := at.Pick(core.New(core.Default().New(1))); got != -1 {
		t.Fatalf("expected -1 for empty table, got %d", got)
	}
}

// -----------------------------------------------------------------------------
// Tests for Look-Up Table (LUT)
// -----------------------------------------------------------------------------

func TestLUT_Distribution(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	weights := []int{1, 2, 7}
	lut := BuildLUT(weights)

	trials := 10000
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		samples[i] = lut.Pick(c)
	}
	checkDistributionInt(t, "LUT", weights, samples, 0.015)
}

func TestLUTFromResiduals_Distribution(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	residuals := []float64{0.1, 0.25, 0.65}
	lut := BuildLUTFromResiduals(residuals, 1e4)

	trials := 20000
	samples := make([]int, trials)
	for i := 0; i < trials; i++ {
		samples[i] = lut.Pick(c)
	}
	checkDistributionFloat(t, "LUTFromResiduals", residuals, samples, 0.02)
}

func TestLUT_Panics(t *testing.T) {
	assertPanic(t, func() {
		weights := []int{int(maxLUTCap) + 1}
		BuildLUT(weights)
	}, "Exceed MaxLUTCapacity")

	assertPanic(t, func() {
		BuildLUT([]int{10, -10})
	}, "Negative weight")

	assertPanic(t, func() {
		BuildLUT([]int{0, 0})
	}, "All zero weights")
}

// -----------------------------------------------------------------------------
// Tests for Shuffle
// -----------------------------------------------------------------------------

func TestShuffle_Basic(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	src := []int{1, 2, 3, 4, 5}
	original := slices.Clone(src)

	Shuffle(c, src)

	sum1, sum2 := 0, 0
	for _, v := range original {
		sum1 += v
	}
	for _, v := range src {
		sum2 += v
	}
	if sum1 != sum2 {
		t.Fatal("Shuffle altered elements values")
	}
	if len(src) != len(original) {
		t.Fatal("Length mismatch")
	}
}

func TestShuffle_GenericType(t *testing.T) {
	c := core.New(core.Default().New(randSeed()))
	src := []string{"a", "b", "c", "d"}
	Shuffle(c, src)

	want := []string{"a", "b", "c", "d"}
	got := slices.Clone(src)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		t.Fatalf("shuffle changed elements: %v", src)
	}
}
