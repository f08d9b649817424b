// SPDX-FileCopyrightText: 2025 Humaid Alqasimi
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/humaidq/labinsight/db"
	"github.com/humaidq/labinsight/labs"
	"github.com/humaidq/labinsight/storage"
	"github.com/humaidq/labinsight/summary"
)

type recorded struct {
	key   string
	text  string
	png   []byte
	model string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorded
	err   error
}

func (f *fakeRecorder) RecordSummary(_ context.Context, objectKey, text string, chartPNG []byte, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, recorded{key: objectKey, text: text, png: chartPNG, model: model})

	return f.err
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string) (string, error) {
	return "", errors.New("model unavailable")
}

func (failingGenerator) Model() string { return "broken" }

type promptCapture struct {
	mu      sync.Mutex
	prompts []string
}

func (p *promptCapture) Generate(_ context.Context, prompt string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.prompts = append(p.prompts, prompt)

	return "Summary text", nil
}

func (p *promptCapture) Model() string { return "capture" }

func seedStore(t *testing.T, store storage.Store, names ...string) {
	t.Helper()

	ctx := context.Background()
	for _, name := range names {
		if err := store.Put(ctx, storage.RawKey(name), []byte(labs.SampleCSV)); err != nil {
			t.Fatalf("failed to seed raw table: %v", err)
		}

		if err := store.Put(ctx, storage.TriggerKey(name), nil); err != nil {
			t.Fatalf("failed to seed trigger: %v", err)
		}
	}
}

func newTestWorker(t *testing.T, cfg Config) *Worker {
	t.Helper()

	if cfg.Pipeline == nil {
		cfg.Pipeline = labs.NewPipeline(labs.DefaultVocabulary())
	}

	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	return w
}

func TestRunOnceProcessesTriggers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	seedStore(t, store, "a.csv", "b.csv")

	// Not a trigger: missing the .txt suffix.
	if err := store.Put(ctx, storage.TriggerPrefix+"notes.md", []byte("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	gen := &promptCapture{}
	recorder := &fakeRecorder{}
	w := newTestWorker(t, Config{Store: store, Generator: gen, Recorder: recorder})

	report, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if report.Processed != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for _, name := range []string{"a.csv", "b.csv"} {
		text, err := store.Get(ctx, storage.SummaryKey(name))
		if err != nil || string(text) != "Summary text" {
			t.Fatalf("summary for %s = %q, %v", name, text, err)
		}

		processed, err := store.Get(ctx, storage.ProcessedKey(name))
		if err != nil || !bytes.Contains(processed, []byte("canonical_test_name")) {
			t.Fatalf("processed table for %s missing: %v", name, err)
		}

		if _, err := store.Get(ctx, storage.TriggerKey(name)); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("trigger for %s should be removed, got %v", name, err)
		}
	}

	if _, err := store.Get(ctx, storage.TriggerPrefix+"notes.md"); err != nil {
		t.Fatalf("non-trigger object should be untouched: %v", err)
	}

	if len(gen.prompts) != 2 || !strings.Contains(gen.prompts[0], "Glucose: 91.8 mg/dL (Reference Range: 70.2 - 99)") {
		t.Fatalf("unexpected prompts: %q", gen.prompts)
	}

	if len(recorder.calls) != 2 {
		t.Fatalf("expected 2 recorded summaries, got %d", len(recorder.calls))
	}

	call := recorder.calls[0]
	if call.key != storage.RawKey("a.csv") || call.model != "capture" || !bytes.HasPrefix(call.png, []byte("\x89PNG")) {
		t.Fatalf("unexpected recorded summary: key=%s model=%s png=%d bytes", call.key, call.model, len(call.png))
	}
}

func TestRunOnceKeepsFailedTriggers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()

	// Trigger without a raw table.
	if err := store.Put(ctx, storage.TriggerKey("orphan.csv"), nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	seedStore(t, store, "ok.csv")

	w := newTestWorker(t, Config{Store: store, Generator: failingGenerator{}})

	report, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if report.Processed != 0 || report.Failed != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	for _, name := range []string{"orphan.csv", "ok.csv"} {
		if _, err := store.Get(ctx, storage.TriggerKey(name)); err != nil {
			t.Fatalf("trigger for %s should be kept: %v", name, err)
		}
	}

	if _, err := store.Get(ctx, storage.SummaryKey("ok.csv")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("no summary expected after generator failure, got %v", err)
	}
}

func TestProcessRecorderErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("missing upload is tolerated", func(t *testing.T) {
		t.Parallel()

		store := storage.NewMemoryStore()
		seedStore(t, store, "direct.csv")

		w := newTestWorker(t, Config{
			Store:     store,
			Generator: &summary.Static{Text: "ok"},
			Recorder:  &fakeRecorder{err: db.ErrUploadNotFound},
		})

		if err := w.Process(ctx, "direct.csv"); err != nil {
			t.Fatalf("Process failed: %v", err)
		}

		if _, err := store.Get(ctx, storage.TriggerKey("direct.csv")); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("trigger should be removed, got %v", err)
		}
	})

	t.Run("other errors keep the trigger", func(t *testing.T) {
		t.Parallel()

		store := storage.NewMemoryStore()
		seedStore(t, store, "x.csv")

		w := newTestWorker(t, Config{
			Store:     store,
			Generator: &summary.Static{Text: "ok"},
			Recorder:  &fakeRecorder{err: errors.New("db down")},
		})

		if err := w.Process(ctx, "x.csv"); err == nil {
			t.Fatalf("expected error")
		}

		if _, err := store.Get(ctx, storage.TriggerKey("x.csv")); err != nil {
			t.Fatalf("trigger should be kept: %v", err)
		}
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	store := storage.NewMemoryStore()
	seedStore(t, store, "loop.csv")

	gen := &summary.Static{Text: "done"}
	w := newTestWorker(t, Config{
		Store:        store,
		Generator:    gen,
		PollInterval: 10 * time.Millisecond,
		Limiter:      rate.NewLimiter(rate.Every(time.Millisecond), 1),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if gen.Calls() != 1 {
		t.Fatalf("expected exactly one generation, got %d", gen.Calls())
	}

	if _, err := store.Get(context.Background(), storage.SummaryKey("loop.csv")); err != nil {
		t.Fatalf("summary missing: %v", err)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); !errors.Is(err, ErrIncompleteConfig) {
		t.Fatalf("expected ErrIncompleteConfig, got %v", err)
	}
}
