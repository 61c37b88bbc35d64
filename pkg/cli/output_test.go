package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

func testRecord() *prospect.CandidateRecord {
	return &prospect.CandidateRecord{
		ID:                "rec-1",
		CandidateSourceID: "src-1",
		SurfaceGUID:       "NEW_TAB_EN_US",
		CandidateType:     prospect.TypeGlobal,
		Topic:             "SCIENCE",
		URL:               "https://example.com/a,b",
		SaveCount:         7,
		Rank:              2,
		CreatedAt:         1700000000,
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"junit", "", true},
	}

	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOutputFormat(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	formatter := &TextFormatter{}

	output, err := formatter.Format("test message")
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if string(output) != "test message\n" {
		t.Errorf("Format() = %q", string(output))
	}
}

func TestTextFormatterEvictionResult(t *testing.T) {
	buf := &bytes.Buffer{}
	result := prospect.EvictionResult{DeletedCount: 3, FailedIDs: []string{"x"}, Chunks: 2}

	if err := (&TextFormatter{}).FormatTo(buf, result); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}

	want := "deleted=3 failed=1 chunks=2\nfailed x\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}
}

func TestTextFormatterRecord(t *testing.T) {
	output, err := (&TextFormatter{}).Format(testRecord())
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := "rec-1 NEW_TAB_EN_US global rank=2 saves=7 https://example.com/a,b\n"
	if string(output) != want {
		t.Errorf("Format() = %q, want %q", string(output), want)
	}
}

func TestJSONFormatter(t *testing.T) {
	formatter := &JSONFormatter{Indent: false}

	output, err := formatter.Format(prospect.EvictionResult{DeletedCount: 1, Chunks: 1})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(output, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["deleted_count"] != float64(1) {
		t.Errorf("deleted_count = %v", got["deleted_count"])
	}
	if _, ok := got["failed_ids"]; ok {
		t.Error("empty failed_ids should be omitted")
	}
}

func TestJSONFormatterIndent(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&JSONFormatter{Indent: true}).FormatTo(buf, map[string]int{"a": 1}); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Errorf("FormatTo() = %q", buf.String())
	}
}

func TestCSVFormatter(t *testing.T) {
	output, err := NewFormatter(FormatCSV).Format([]*prospect.CandidateRecord{testRecord()})
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want header and one row:\n%s", len(lines), output)
	}
	if lines[0] != strings.Join(RecordHeaders, ",") {
		t.Errorf("header = %q", lines[0])
	}
	want := `rec-1,src-1,NEW_TAB_EN_US,global,SCIENCE,"https://example.com/a,b",7,2,1700000000`
	if lines[1] != want {
		t.Errorf("row = %q, want %q", lines[1], want)
	}
}

func TestCSVFormatterUnsupported(t *testing.T) {
	if _, err := (&CSVFormatter{}).Format(prospect.EvictionResult{}); err == nil {
		t.Error("expected error for non-record data")
	}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format OutputFormat
		want   string
	}{
		{FormatText, "*cli.TextFormatter"},
		{FormatJSON, "*cli.JSONFormatter"},
		{FormatCSV, "*cli.CSVFormatter"},
		{"", "*cli.TextFormatter"},
	}

	for _, tt := range tests {
		got := NewFormatter(tt.format)
		if typeName(got) != tt.want {
			t.Errorf("NewFormatter(%q) = %s, want %s", tt.format, typeName(got), tt.want)
		}
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *TextFormatter:
		return "*cli.TextFormatter"
	case *JSONFormatter:
		return "*cli.JSONFormatter"
	case *CSVFormatter:
		return "*cli.CSVFormatter"
	}
	return "unknown"
}
