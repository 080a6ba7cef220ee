package stats

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterCSVHeaderOnlyOnEmptyResult(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatCSV, []string{"player_id", "hits"})
	if err := w.WriteHeader(); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := buf.String(); got != "player_id,hits\n" {
		t.Fatalf("expected header-only csv, got %q", got)
	}
}

func TestWriterCSVRows(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatCSV, []string{"player_id", "hits"})
	_ = w.WriteHeader()
	if err := w.WriteRow([]any{"p1", 3}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := w.WriteRow([]any{"p2", 5}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	_ = w.Close()

	want := "player_id,hits\np1,3\np2,5\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestWriterJSONPreservesColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatJSON, []string{"player_id", "hits", "walks"})
	_ = w.WriteHeader()
	if err := w.WriteRow([]any{"p1", 3, 1}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	if err := w.WriteRow([]any{"p2", 5, 2}); err != nil {
		t.Fatalf("WriteRow: %v", err)
	}
	_ = w.Close()

	want := `[{"player_id":"p1","hits":3,"walks":1},{"player_id":"p2","hits":5,"walks":2}]`
	if buf.String() != want {
		t.Fatalf("expected %s, got %s", want, buf.String())
	}
}

func TestWriterNDJSONEmitsOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, FormatNDJSON, []string{"player_id", "hits"})
	_ = w.WriteHeader()
	_ = w.WriteRow([]any{"p1", 3})
	_ = w.WriteRow([]any{"p2", 5})
	_ = w.Close()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	if lines[0] != `{"player_id":"p1","hits":3}` {
		t.Fatalf("unexpected first line: %s", lines[0])
	}
}

func TestOutputColumnsMatchesFieldsAndGroups(t *testing.T) {
	req := Request{
		Fields: []Field{FieldHits, FieldWalks},
		Group:  []GroupColumn{GroupPlayer},
		Names:  true,
	}
	cols := OutputColumns(req)
	want := []string{"player_id", "player_name", "hits", "walks"}
	if len(cols) != len(want) {
		t.Fatalf("expected %v, got %v", want, cols)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cols)
		}
	}
}

func TestContentTypeCSVIsTextPlain(t *testing.T) {
	if FormatCSV.ContentType() != "text/plain; charset=utf-8" {
		t.Fatalf("csv must render inline in a browser, got %s", FormatCSV.ContentType())
	}
}
