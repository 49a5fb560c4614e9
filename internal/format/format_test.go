package format

import (
	"bytes"
	"strings"
	"testing"

	"shopadmin/internal/model"
)

func TestWriteEDN(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	v := map[string]any{
		"data": []model.Category{{ID: "cat-1", Name: "Shoes"}},
		"meta": map[string]any{"count": 1, "price": 12.5, "admin": false, "none": nil},
	}
	if err := WriteEDN(&b, v, false); err != nil {
		t.Fatalf("edn: %v", err)
	}
	want := `{:data [{:id "cat-1" :name "Shoes"}] :meta {:admin false :count 1 :none nil :price 12.5}}` + "\n"
	if got := b.String(); got != want {
		t.Fatalf("edn: want %q, got %q", want, got)
	}

	b.Reset()
	if err := WriteEDN(&b, []int{}, true); err != nil {
		t.Fatalf("edn: %v", err)
	}
	if got := b.String(); got != "[]\n" {
		t.Fatalf("empty vector: want %q, got %q", "[]\n", got)
	}
}

func TestWriteEDNPretty(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	if err := WriteEDN(&b, map[string]any{"a": []int{1, 2}}, true); err != nil {
		t.Fatalf("edn: %v", err)
	}
	want := "{\n  :a [\n    1\n    2\n  ]\n}\n"
	if got := b.String(); got != want {
		t.Fatalf("pretty edn: want %q, got %q", want, got)
	}
}

func TestWriteTable_List(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	env := map[string]any{"data": []model.User{
		{ID: "usr-1", Username: "alice", Email: "a@x.io", IsAdmin: true},
		{ID: "usr-2", Username: "bob", Email: "b@x.io"},
	}}
	if err := Write(&b, env, Table, false); err != nil {
		t.Fatalf("table: %v", err)
	}
	out := b.String()
	for _, want := range []string{"_id", "username", "alice", "bob", "yes", "no"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "_id") > strings.Index(out, "email") {
		t.Fatalf("expected _id as first column:\n%s", out)
	}
}

func TestWriteTable_RecordAndEmpty(t *testing.T) {
	t.Parallel()

	var b bytes.Buffer
	if err := WriteTable(&b, model.Category{ID: "cat-1", Name: "Shoes"}); err != nil {
		t.Fatalf("table: %v", err)
	}
	if out := b.String(); !strings.Contains(out, "field") || !strings.Contains(out, "Shoes") {
		t.Fatalf("record table:\n%s", out)
	}

	b.Reset()
	if err := WriteTable(&b, []model.Category{}); err != nil {
		t.Fatalf("table: %v", err)
	}
	if got := b.String(); got != "(no rows)\n" {
		t.Fatalf("empty: want %q, got %q", "(no rows)\n", got)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	t.Parallel()
	if err := Write(&bytes.Buffer{}, 1, "xml", false); err == nil {
		t.Fatalf("expected error")
	}
	if !Valid("") || !Valid(Table) || Valid("xml") {
		t.Fatalf("Valid mismatch")
	}
}
