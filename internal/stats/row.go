package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// Format selects the stats response's wire encoding.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatNDJSON Format = "ndjson"
)

// ParseFormat defaults to CSV, the same default the query-string parser
// uses when `format` is omitted.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatNDJSON:
		return FormatNDJSON, nil
	default:
		return "", fmt.Errorf("unknown stats format %q", s)
	}
}

// ContentType is the response Content-Type for f. CSV is deliberately
// served as text/plain rather than text/csv so it renders inline in a
// browser instead of triggering a download (ground:
// original_source/chron-api/src/stats.rs's comment to the same effect).
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatNDJSON:
		return "application/x-ndjson; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// OutputColumns returns the ordered column names a query built from req
// will project, in the exact order BuildQuery's SELECT list uses — the
// schema a Writer needs to label each row (ground: stats.rs
// StatOutputRow::serialize's field ordering).
func OutputColumns(req Request) []string {
	groups := expandGroups(req.Group)

	var cols []string
	for _, g := range groups {
		for _, col := range groupColumnSQL[g] {
			cols = append(cols, col.alias)
		}
	}
	if hasGroup(groups, GroupPlayer) && req.Names {
		cols = append(cols, "player_name")
	}
	if hasGroup(groups, GroupTeam) && req.Names {
		cols = append(cols, "team_name")
	}
	for _, f := range req.Fields {
		cols = append(cols, string(f))
	}
	return cols
}

// Writer streams stats rows to w in the configured format. Rows arrive as
// a column-ordered []any (driver-scanned values) matching the columns
// passed to NewWriter; the
// caller is never asked to fit a variable-width row into a fixed struct,
// per spec.md §4.J's "dynamic response shape" design note.
type Writer struct {
	w       io.Writer
	format  Format
	columns []string

	csv        *csv.Writer
	wroteFirst bool
}

// NewWriter constructs a streaming writer for the given format and column
// schema. Call WriteHeader once (even for zero rows — CSV must still emit
// its header), then WriteRow per row, then Close.
func NewWriter(w io.Writer, format Format, columns []string) *Writer {
	sw := &Writer{w: w, format: format, columns: columns}
	if format == FormatCSV {
		sw.csv = csv.NewWriter(w)
	}
	return sw
}

// WriteHeader emits the CSV header row. For JSON/NDJSON this only opens
// the streamed array (a no-op for NDJSON, which has no wrapper).
func (sw *Writer) WriteHeader() error {
	switch sw.format {
	case FormatCSV:
		if err := sw.csv.Write(sw.columns); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		sw.csv.Flush()
		return sw.csv.Error()
	case FormatJSON:
		_, err := io.WriteString(sw.w, "[")
		return err
	default:
		return nil
	}
}

// WriteRow writes one row. len(values) must equal len(sw.columns).
func (sw *Writer) WriteRow(values []any) error {
	switch sw.format {
	case FormatCSV:
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = formatCSVCell(v)
		}
		if err := sw.csv.Write(cells); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		sw.csv.Flush()
		return sw.csv.Error()
	case FormatJSON:
		prefix := ","
		if !sw.wroteFirst {
			prefix = ""
		}
		sw.wroteFirst = true
		if _, err := io.WriteString(sw.w, prefix); err != nil {
			return err
		}
		return sw.writeObject(values)
	case FormatNDJSON:
		if err := sw.writeObject(values); err != nil {
			return err
		}
		_, err := io.WriteString(sw.w, "\n")
		return err
	default:
		return fmt.Errorf("unsupported stats format %q", sw.format)
	}
}

// Close finalizes the stream — only meaningful for JSON, which must close
// its array bracket.
func (sw *Writer) Close() error {
	if sw.format == FormatJSON {
		_, err := io.WriteString(sw.w, "]")
		return err
	}
	return nil
}

// writeObject marshals values as a JSON object with keys in column order —
// not via a map, whose keys encoding/json always sorts alphabetically,
// which would scramble the grouping-then-fields order the row schema
// intends (ground: stats.rs StatOutputRow's manual field-by-field
// Serialize implementation).
func (sw *Writer) writeObject(values []any) error {
	var buf []byte
	buf = append(buf, '{')
	for i, v := range values {
		if i >= len(sw.columns) {
			break
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(sw.columns[i])
		if err != nil {
			return fmt.Errorf("marshal stats column name: %w", err)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal stats value: %w", err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	_, err := sw.w.Write(buf)
	return err
}

func formatCSVCell(v any) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
