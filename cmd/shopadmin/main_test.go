package main

import (
	"reflect"
	"testing"
)

func TestRewriteDirectLookupArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "no args",
			in:   []string{"shopadmin"},
			want: []string{"shopadmin"},
		},
		{
			name: "product id first token",
			in:   []string{"shopadmin", "prd-abc123"},
			want: []string{"shopadmin", "products", "show", "prd-abc123"},
		},
		{
			name: "category id after value flag",
			in:   []string{"shopadmin", "--format", "table", "cat-abc123"},
			want: []string{"shopadmin", "--format", "table", "categories", "show", "cat-abc123"},
		},
		{
			name: "user id after equals flag",
			in:   []string{"shopadmin", "--server=http://localhost:5000", "usr-abc123"},
			want: []string{"shopadmin", "--server=http://localhost:5000", "users", "show", "usr-abc123"},
		},
		{
			name: "id after bool flag",
			in:   []string{"shopadmin", "--pretty", "prd-abc123"},
			want: []string{"shopadmin", "--pretty", "products", "show", "prd-abc123"},
		},
		{
			name: "id after double dash",
			in:   []string{"shopadmin", "--format", "edn", "--", "cat-abc123"},
			want: []string{"shopadmin", "--format", "edn", "--", "categories", "show", "cat-abc123"},
		},
		{
			name: "bare prefix not rewritten",
			in:   []string{"shopadmin", "prd-"},
			want: []string{"shopadmin", "prd-"},
		},
		{
			name: "normal subcommand not rewritten",
			in:   []string{"shopadmin", "products", "show", "prd-abc123"},
			want: []string{"shopadmin", "products", "show", "prd-abc123"},
		},
		{
			name: "unknown command not rewritten",
			in:   []string{"shopadmin", "wat"},
			want: []string{"shopadmin", "wat"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rewriteDirectLookupArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("rewriteDirectLookupArgs:\n got: %#v\nwant: %#v", got, tt.want)
			}
		})
	}
}
