package newsimport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockImporter は取り込み呼び出しを記録するスタブ。
type mockImporter struct {
	mu       sync.Mutex
	calls    int
	lastURL  string
	imported int
	err      error
}

func (m *mockImporter) Import(_ context.Context, feedURL string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastURL = feedURL
	return m.imported, m.err
}

func (m *mockImporter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockRecorder は計測フックの呼び出しを記録するスタブ。
type mockRecorder struct {
	mu        sync.Mutex
	successes int
	failures  int
	latencies int
	items     int
}

func (m *mockRecorder) RecordImportSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *mockRecorder) RecordImportFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *mockRecorder) RecordImportLatency(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *mockRecorder) RecordImportedItems(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items += count
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRunOnce_RecordsSuccess(t *testing.T) {
	importer := &mockImporter{imported: 5}
	recorder := &mockRecorder{}
	s := NewScheduler(importer, recorder, testLogger(), "https://school.example.com/feed.rss")

	s.RunOnce(context.Background())

	if importer.callCount() != 1 {
		t.Errorf("imports = %d, want 1", importer.callCount())
	}
	if importer.lastURL != "https://school.example.com/feed.rss" {
		t.Errorf("feed URL = %q", importer.lastURL)
	}
	if recorder.successes != 1 || recorder.failures != 0 {
		t.Errorf("successes/failures = %d/%d, want 1/0", recorder.successes, recorder.failures)
	}
	if recorder.items != 5 {
		t.Errorf("imported items = %d, want 5", recorder.items)
	}
	if recorder.latencies != 1 {
		t.Errorf("latency records = %d, want 1", recorder.latencies)
	}
}

func TestRunOnce_RecordsFailure(t *testing.T) {
	importer := &mockImporter{err: errors.New("fetch failed")}
	recorder := &mockRecorder{}
	s := NewScheduler(importer, recorder, testLogger(), "https://school.example.com/feed.rss")

	s.RunOnce(context.Background())

	if recorder.failures != 1 || recorder.successes != 0 {
		t.Errorf("failures/successes = %d/%d, want 1/0", recorder.failures, recorder.successes)
	}
	// レイテンシは成否に関わらず記録される。
	if recorder.latencies != 1 {
		t.Errorf("latency records = %d, want 1", recorder.latencies)
	}
	if recorder.items != 0 {
		t.Errorf("imported items = %d, want 0", recorder.items)
	}
}

func TestStart_SkipsWhenFeedURLEmpty(t *testing.T) {
	importer := &mockImporter{}
	s := NewScheduler(importer, &mockRecorder{}, testLogger(), "")

	done := make(chan struct{})
	go func() {
		s.Start(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when feed URL is empty")
	}
	if importer.callCount() != 0 {
		t.Errorf("imports = %d, want 0", importer.callCount())
	}
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	importer := &mockImporter{}
	s := NewScheduler(importer, &mockRecorder{}, testLogger(), "https://school.example.com/feed.rss")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.After(time.Second)
	for importer.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("Start should run an import immediately")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should stop after cancel")
	}
}
