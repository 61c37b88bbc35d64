package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/Pocket/content-monorepo-sub003/pkg/cli"
	"github.com/Pocket/content-monorepo-sub003/pkg/config"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/ingest"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/retention"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/storage"
	"github.com/Pocket/content-monorepo-sub003/pkg/prospect/store"
)

const testSurface = "NEW_TAB_EN_US"

// run executes the command tree with args and returns the exit code and
// captured stdout.
func run(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))

	code := execute(context.Background(), cmd, args)
	if code != cli.ExitOK {
		t.Logf("stderr: %s", errOut.String())
	}
	return code, out.String()
}

// writeTestConfig writes a config using a pure-Go SQLite database in a
// temporary directory.
func writeTestConfig(t *testing.T) (configPath, dbPath string) {
	t.Helper()

	dir := t.TempDir()
	dbPath = filepath.Join(dir, "db", "prospects.db")
	content := fmt.Sprintf(`storage:
  backend: sqlite
  sqlite:
    path: %s
    driver: sqlite
retention:
  max_age_minutes: 60
  partitions:
    - surface_guid: %s
      candidate_types: [global, syndicated-new]
telemetry:
  logging:
    level: error
`, dbPath, testSurface)

	configPath = filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return configPath, dbPath
}

func testMessage(id string, n int) string {
	msg := ingest.Message{ID: id, Version: ingest.SchemaVersion, Type: ingest.MessageType, Run: "run-1"}
	for i := 0; i < n; i++ {
		msg.Candidates = append(msg.Candidates, ingest.Candidate{
			ProspectID:           fmt.Sprintf("%s-%d", id, i),
			ScheduledSurfaceGUID: testSurface,
			ProspectSource:       string(prospect.TypeGlobal),
			URL:                  fmt.Sprintf("https://example.com/%s/%d", id, i),
			Rank:                 i + 1,
		})
	}
	b, _ := json.Marshal(msg)
	return string(b)
}

func TestVersionCommand(t *testing.T) {
	code, out := run(t, "", "version")
	if code != cli.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "Prospects "+Version) || !strings.Contains(out, runtime.Version()) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestVersionCommandJSON(t *testing.T) {
	code, out := run(t, "", "version", "-o", "json")
	if code != cli.ExitOK {
		t.Fatalf("exit code = %d", code)
	}

	var info map[string]string
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if info["version"] != Version || info["commit"] != GitCommit {
		t.Errorf("info = %v", info)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	if code, _ := run(t, "", "version", "-o", "xml"); code != cli.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, cli.ExitUsage)
	}
}

func TestOpenBackend(t *testing.T) {
	b, err := openBackend(&config.StorageConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if b.Name() != "memory" {
		t.Errorf("Name() = %q", b.Name())
	}

	b, err = openBackend(&config.StorageConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "p.db"), Driver: "sqlite", JournalMode: "delete"},
	})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	defer b.Close()
	if b.Name() != "sqlite" {
		t.Errorf("Name() = %q", b.Name())
	}

	_, err = openBackend(&config.StorageConfig{Backend: "dynamodb"})
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want config.ValidationError", err)
	}
}

func TestStoreConfigRetries(t *testing.T) {
	cfg := &config.Config{}
	cfg.Retention.MaxBatchDelete = 25
	cfg.Storage.Retry.MaxRetries = 5
	if got := storeConfig(cfg).MaxRetries; got != 5 {
		t.Errorf("MaxRetries = %d, want 5", got)
	}

	cfg.Storage.Retry.MaxRetries = 0
	if got := storeConfig(cfg).MaxRetries; got != store.NoRetries {
		t.Errorf("MaxRetries = %d, want NoRetries", got)
	}
}

func TestSplitMessages(t *testing.T) {
	raws, err := splitMessages(strings.NewReader(testMessage("a", 1) + "\n" + testMessage("b", 2) + "\n"))
	if err != nil {
		t.Fatalf("splitMessages failed: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("got %d messages, want 2", len(raws))
	}

	if _, err := splitMessages(strings.NewReader("  \n")); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := splitMessages(strings.NewReader(`{"id":"a"} {"id":`)); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestIngestGetSweep(t *testing.T) {
	configPath, dbPath := writeTestConfig(t)

	input := testMessage("msg-1", 2) + "\n" + testMessage("msg-2", 1)
	code, out := run(t, input, "ingest", "-c", configPath, "--file", "-", "-o", "json")
	if code != cli.ExitOK {
		t.Fatalf("ingest exit code = %d\n%s", code, out)
	}

	var report ingestReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if report.Tally != (cli.Tally{Total: 2, Succeeded: 2}) {
		t.Errorf("tally = %+v", report.Tally)
	}
	if report.Results[0].Summary.Inserted != 2 || report.Results[1].Summary.Inserted != 1 {
		t.Errorf("results = %+v", report.Results)
	}

	backend, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: dbPath, Driver: storage.DriverPureGo})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	records, err := backend.QueryPartition(context.Background(), prospect.Partition{SurfaceGUID: testSurface, CandidateType: prospect.TypeGlobal})
	backend.Close()
	if err != nil {
		t.Fatalf("QueryPartition failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("stored %d records, want 3", len(records))
	}

	code, out = run(t, "", "get", "-c", configPath, "-o", "json", records[0].ID)
	if code != cli.ExitOK {
		t.Fatalf("get exit code = %d", code)
	}
	var got prospect.CandidateRecord
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if got.ID != records[0].ID {
		t.Errorf("got record %q, want %q", got.ID, records[0].ID)
	}

	code, out = run(t, "", "sweep", "-c", configPath, "--surface", testSurface, "--type", "global", "-o", "json")
	if code != cli.ExitOK {
		t.Fatalf("sweep exit code = %d", code)
	}
	var result prospect.EvictionResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if result.DeletedCount != 0 {
		t.Errorf("configured threshold deleted %d fresh records", result.DeletedCount)
	}

	code, out = run(t, "", "sweep", "-c", configPath, "--all", "--max-age", "0", "-o", "json")
	if code != cli.ExitOK {
		t.Fatalf("sweep --all exit code = %d", code)
	}
	var summary retention.RunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if summary.Partitions != 2 || summary.DeletedCount != 3 {
		t.Errorf("summary = %+v, want 2 partitions and 3 deleted", summary)
	}

	if code, _ := run(t, "", "get", "-c", configPath, records[0].ID); code != cli.ExitFailure {
		t.Errorf("get after sweep exit code = %d, want %d", code, cli.ExitFailure)
	}
}

func TestIngestRejectsInvalidMessage(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	code, out := run(t, `{"id":"bad","version":2,"type":"prospect","candidates":[]}`, "ingest", "-c", configPath, "--file", "-")
	if code != cli.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, cli.ExitUsage)
	}
	if !strings.Contains(out, "1 messages, 0 succeeded, 1 failed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestIngestPartialFailure(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	input := testMessage("good", 1) + `{"id":"bad"}`
	if code, _ := run(t, input, "ingest", "-c", configPath, "--file", "-"); code != cli.ExitPartial {
		t.Errorf("exit code = %d, want %d", code, cli.ExitPartial)
	}
}

func TestSweepFlagValidation(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing surface", []string{"--type", "global"}},
		{"missing type", []string{"--surface", testSurface}},
		{"unknown type", []string{"--surface", testSurface, "--type", "bogus"}},
		{"csv output", []string{"--all", "-o", "csv"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"sweep", "-c", configPath}, tt.args...)
			if code, _ := run(t, "", args...); code != cli.ExitUsage {
				t.Errorf("exit code = %d, want %d", code, cli.ExitUsage)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("retention:\n  max_batch_delete: -5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if code, _ := run(t, "", "get", "-c", path, "some-id"); code != cli.ExitUsage {
		t.Errorf("exit code = %d, want %d", code, cli.ExitUsage)
	}
}

func TestRunDryRun(t *testing.T) {
	configPath, _ := writeTestConfig(t)

	code, out := run(t, "", "run", "-c", configPath, "--dry-run")
	if code != cli.ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(out, "sqlite storage reachable") {
		t.Errorf("unexpected output: %q", out)
	}
}
