package format

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// WriteTable renders a list of records as one row each, or a single record as
// field/value rows.
func WriteTable(w io.Writer, v any) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	if env, ok := x.(map[string]any); ok {
		if data, ok := env["data"]; ok {
			x = data
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})

	switch d := x.(type) {
	case []any:
		cols := columns(d)
		if len(cols) == 0 {
			_, err := fmt.Fprintln(w, "(no rows)")
			return err
		}
		t.Headers(cols...)
		for _, it := range d {
			m, _ := it.(map[string]any)
			row := make([]string, len(cols))
			for i, c := range cols {
				row[i] = cell(m[c])
			}
			t.Row(row...)
		}
	case map[string]any:
		t.Headers("field", "value")
		for _, k := range orderKeys(d) {
			t.Row(k, cell(d[k]))
		}
	default:
		_, err := fmt.Fprintln(w, cell(d))
		return err
	}
	_, err = fmt.Fprintln(w, t.String())
	return err
}

// columns is the union of keys across rows, id first.
func columns(rows []any) []string {
	seen := map[string]any{}
	for _, r := range rows {
		if m, ok := r.(map[string]any); ok {
			for k := range m {
				seen[k] = nil
			}
		}
	}
	return orderKeys(seen)
}

func orderKeys(m map[string]any) []string {
	keys := slices.Sorted(maps.Keys(m))
	if i := slices.Index(keys, "_id"); i > 0 {
		keys = append([]string{"_id"}, slices.Delete(keys, i, i+1)...)
	}
	return keys
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "yes"
		}
		return "no"
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}
