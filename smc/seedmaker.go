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

import "sync/atomic"

// mask63 把一個 uint64 限制在 [0, 2^63) 內。
const mask63 = uint64(1<<63) - 1

// seedMaker 讓多個 worker goroutine 併發呼叫 next() 時，各自拿到不重複、
// 決定性可重現的子 seed——每個 worker 私有一個 *core.Core 子串流，避免
// 共享 PRNG 狀態造成資料競爭或結果依賴排程順序。
//
// 內部用一個全週期 LCG（mod 2^63）走訪狀態空間不重複，再用可逆的 mix63
// 把相鄰狀態打散成看起來不相關的輸出；state 的推進用 CAS 迴圈保證原子性。
type seedMaker struct {
	state atomic.Uint64
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next))
		}
	}
}

// mix63 只用可逆的位元操作與乘奇數（mod 2^63 下可逆），把 LCG 的連續輸出
// 打散成統計上不相關的序列。
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
