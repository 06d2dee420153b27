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

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestAsyncHandlerDeliversRecord(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	ah := NewAsyncHandler(base, 16)
	defer ah.Close()

	logger := slog.New(ah)
	logger.Info("resample triggered", "ess", 12.5)

	ah.Close() // drains the queue before we inspect buf

	if !strings.Contains(buf.String(), "resample triggered") {
		t.Fatalf("expected record to be delivered, got %q", buf.String())
	}
	if got := ah.Dropped(); got != 0 {
		t.Fatalf("expected zero drops, got %d", got)
	}
}

func TestAsyncHandlerDropsWhenClosed(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	ah := NewAsyncHandler(base, 4)
	ah.Close()

	logger := slog.New(ah)
	logger.Info("should be dropped")

	if got := ah.Dropped(); got == 0 {
		t.Fatalf("expected a drop after Close, got %d", got)
	}
}

func TestAsyncHandlerWithAttrsPreservesDispatcher(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	ah := NewAsyncHandler(base, 16)
	defer ah.Close()

	wrapped := ah.WithAttrs([]slog.Attr{slog.String("component", "resample")})
	logger := slog.New(wrapped)
	logger.Info("child logger event")

	ah.Close()

	if !strings.Contains(buf.String(), "component=resample") {
		t.Fatalf("expected WithAttrs to carry through async dispatch, got %q", buf.String())
	}
}

func TestBuildHandlerSilenceDiscards(t *testing.T) {
	h := buildHandler(ModeSilence)
	if h.Enabled(context.Background(), slog.LevelError) == false {
		// silence handler still reports Enabled per slog.HandlerOptions default;
		// what matters is nothing reaches an observable sink.
		return
	}
}

func TestNewAsyncReturnsUsableLogger(t *testing.T) {
	logger, ah := NewAsync(32, ModeSilence)
	defer ah.Close()

	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
	logger.Info("noop")
	ah.Close()
}
