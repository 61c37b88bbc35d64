package cli

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/Pocket/content-monorepo-sub003/pkg/prospect"
)

// OutputFormat represents the output format for command results.
type OutputFormat string

const (
	// FormatText is plain text output (default).
	FormatText OutputFormat = "text"
	// FormatJSON is JSON output.
	FormatJSON OutputFormat = "json"
	// FormatCSV is CSV output. Only candidate records can be written as CSV.
	FormatCSV OutputFormat = "csv"
)

// RecordHeaders is the CSV header row for candidate records.
var RecordHeaders = []string{
	"id", "candidate_source_id", "surface_guid", "candidate_type",
	"topic", "url", "save_count", "rank", "created_at",
}

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", NewFlagError("output", fmt.Sprintf("unknown format %q (want text, json or csv)", s))
	}
}

// Formatter formats command output.
type Formatter interface {
	Format(data interface{}) ([]byte, error)
	FormatTo(w io.Writer, data interface{}) error
}

// TextFormatter formats output as plain text.
type TextFormatter struct{}

// Format converts data to text format.
func (f *TextFormatter) Format(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatTo writes data to writer in text format.
func (f *TextFormatter) FormatTo(w io.Writer, data interface{}) error {
	switch v := data.(type) {
	case prospect.EvictionResult:
		if _, err := fmt.Fprintf(w, "deleted=%d failed=%d chunks=%d\n", v.DeletedCount, len(v.FailedIDs), v.Chunks); err != nil {
			return err
		}
		for _, id := range v.FailedIDs {
			if _, err := fmt.Fprintf(w, "failed %s\n", id); err != nil {
				return err
			}
		}
		return nil
	case *prospect.CandidateRecord:
		_, err := fmt.Fprintf(w, "%s %s %s rank=%d saves=%d %s\n",
			v.ID, v.SurfaceGUID, v.CandidateType, v.Rank, v.SaveCount, v.URL)
		return err
	case fmt.Stringer:
		_, err := fmt.Fprintln(w, v.String())
		return err
	default:
		_, err := fmt.Fprintf(w, "%v\n", data)
		return err
	}
}

// JSONFormatter formats output as JSON.
type JSONFormatter struct {
	Indent bool
}

// Format converts data to JSON format.
func (f *JSONFormatter) Format(data interface{}) ([]byte, error) {
	if f.Indent {
		return json.MarshalIndent(data, "", "  ")
	}
	return json.Marshal(data)
}

// FormatTo writes data to writer in JSON format.
func (f *JSONFormatter) FormatTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	if f.Indent {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

// CSVFormatter formats candidate records as CSV.
type CSVFormatter struct {
	Headers []string
}

// Format converts data to CSV format.
func (f *CSVFormatter) Format(data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FormatTo(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FormatTo writes data to writer in CSV format.
func (f *CSVFormatter) FormatTo(w io.Writer, data interface{}) error {
	var records []*prospect.CandidateRecord
	switch v := data.(type) {
	case *prospect.CandidateRecord:
		records = []*prospect.CandidateRecord{v}
	case []*prospect.CandidateRecord:
		records = v
	default:
		return fmt.Errorf("csv output is not supported for %T", data)
	}

	csvWriter := csv.NewWriter(w)

	if len(f.Headers) > 0 {
		if err := csvWriter.Write(f.Headers); err != nil {
			return err
		}
	}

	for _, r := range records {
		row := []string{
			r.ID,
			r.CandidateSourceID,
			r.SurfaceGUID,
			string(r.CandidateType),
			r.Topic,
			r.URL,
			strconv.Itoa(r.SaveCount),
			strconv.Itoa(r.Rank),
			strconv.FormatInt(r.CreatedAt, 10),
		}
		if err := csvWriter.Write(row); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// NewFormatter creates a new formatter for the specified format.
func NewFormatter(format OutputFormat) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatCSV:
		return &CSVFormatter{Headers: RecordHeaders}
	default:
		return &TextFormatter{}
	}
}
