// Package format renders CLI command results.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const (
	JSON  = "json"
	EDN   = "edn"
	Table = "table"
)

// Names lists the accepted --format values.
var Names = []string{JSON, EDN, Table}

// Valid reports whether name is an accepted format ("" means json).
func Valid(name string) bool {
	switch name {
	case "", JSON, EDN, Table:
		return true
	}
	return false
}

// Write writes v in the requested format. Tables render the "data" member of an
// envelope when present.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", JSON:
		return WriteJSON(w, v, pretty)
	case EDN:
		return WriteEDN(w, v, pretty)
	case Table:
		return WriteTable(w, v)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON, one document per call.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// generic round-trips v through JSON so struct tags decide field names. Numbers stay
// json.Number to keep integers exact.
func generic(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, err
	}
	return x, nil
}
