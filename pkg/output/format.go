package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/3leaps/gosheets/pkg/sheet"
)

// Format selects how a sheet is rendered.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat resolves a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSONL, FormatTable, FormatYAML:
		return f, nil
	case "":
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want jsonl, table or yaml)", s)
	}
}

// FormatCell renders a cell as display text. Absent values render empty.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case time.Duration:
		return FormatDuration(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// FormatDuration renders d as h:mm:ss, truncated to whole seconds.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%s%d:%02d:%02d", sign, secs/3600, (secs/60)%60, secs%60)
}

// CellValue converts a cell to its serialized form. Dates and durations
// become strings; other values pass through.
func CellValue(v any) any {
	switch v.(type) {
	case time.Time, time.Duration:
		return FormatCell(v)
	default:
		return v
	}
}

// RowValues keys one row's cells by column name.
func RowValues(cols []sheet.ColumnInfo, cells []any) map[string]any {
	out := make(map[string]any, len(cols))
	for i, c := range cols {
		var v any
		if i < len(cells) {
			v = CellValue(cells[i])
		}
		out[c.Name] = v
	}
	return out
}
