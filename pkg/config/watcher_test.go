package config

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	var calls atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Trigger(func() {
			calls.Add(1)
			last.Store(n)
		})
	}

	time.Sleep(100 * time.Millisecond)

	if got := calls.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("ran callback %d, want the latest (5)", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Stop()
	d.Trigger(func() { calls.Add(1) })

	time.Sleep(60 * time.Millisecond)

	if got := calls.Load(); got != 0 {
		t.Errorf("callback ran %d times after Stop, want 0", got)
	}
}

func TestNewWatcherRequiresPath(t *testing.T) {
	if _, err := NewWatcher("", 0); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: memory\nretention:\n  max_age_minutes: 60\n")

	w, err := NewWatcher(path, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Stop()

	reloaded := make(chan *Config, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Watch(ctx, func(cfg *Config) error {
			reloaded <- cfg
			return nil
		})
	}()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)

	// An invalid edit is rejected and never reaches the callback.
	if err := os.WriteFile(path, []byte("retention:\n  max_batch_delete: -1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid config delivered: %+v", cfg.Retention)
	case <-time.After(150 * time.Millisecond):
	}

	if err := os.WriteFile(path, []byte("storage:\n  backend: memory\nretention:\n  max_age_minutes: 15\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Retention.MaxAgeMinutes != 15 {
			t.Errorf("MaxAgeMinutes = %d, want 15", cfg.Retention.MaxAgeMinutes)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: memory\n")

	w, err := NewWatcher(path, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}

	var calls atomic.Int32
	go func() {
		_ = w.Watch(context.Background(), func(*Config) error {
			calls.Add(1)
			return nil
		})
	}()
	time.Sleep(50 * time.Millisecond)

	sibling := path + ".bak"
	if err := os.WriteFile(sibling, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("reloaded %d times for a sibling file, want 0", got)
	}
}
