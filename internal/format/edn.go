package format

import (
	"encoding/json"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// WriteEDN writes the EDN subset our payloads need: maps with keyword keys, vectors,
// strings, numbers, booleans and nil.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	e := &ednWriter{pretty: pretty}
	e.value(x, 0)
	e.b.WriteByte('\n')
	_, err = io.WriteString(w, e.b.String())
	return err
}

type ednWriter struct {
	b      strings.Builder
	pretty bool
}

func (e *ednWriter) value(v any, depth int) {
	switch t := v.(type) {
	case nil:
		e.b.WriteString("nil")
	case bool:
		e.b.WriteString(strconv.FormatBool(t))
	case json.Number:
		e.b.WriteString(t.String())
	case string:
		e.b.WriteString(strconv.Quote(t))
	case []any:
		e.seq('[', ']', len(t), depth, func(i int) { e.value(t[i], depth+1) })
	case map[string]any:
		keys := slices.Sorted(maps.Keys(t))
		e.seq('{', '}', len(keys), depth, func(i int) {
			e.b.WriteString(keyword(keys[i]))
			e.b.WriteByte(' ')
			e.value(t[keys[i]], depth+1)
		})
	}
}

// seq writes n elements between lb and rb, one per line when pretty.
func (e *ednWriter) seq(lb, rb byte, n, depth int, elem func(int)) {
	e.b.WriteByte(lb)
	for i := 0; i < n; i++ {
		switch {
		case e.pretty:
			e.b.WriteByte('\n')
			e.b.WriteString(strings.Repeat("  ", depth+1))
		case i > 0:
			e.b.WriteByte(' ')
		}
		elem(i)
	}
	if e.pretty && n > 0 {
		e.b.WriteByte('\n')
		e.b.WriteString(strings.Repeat("  ", depth))
	}
	e.b.WriteByte(rb)
}

// keyword turns a JSON key into an EDN keyword; "_id" becomes :id.
func keyword(k string) string {
	k = strings.TrimPrefix(strings.TrimSpace(k), "_")
	return ":" + strings.ReplaceAll(k, " ", "-")
}
