package batch

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teemow/mailpipe/internal/mailerr"
)

func TestParseStringOrArray(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    []string
		wantErr bool
	}{
		{name: "single string", input: "m1", want: []string{"m1"}},
		{name: "array of strings", input: []any{"m1", "m2", "m3"}, want: []string{"m1", "m2", "m3"}},
		{name: "nil input", input: nil, wantErr: true},
		{name: "empty string", input: "", wantErr: true},
		{name: "empty array", input: []any{}, wantErr: true},
		{name: "array with non-string", input: []any{"m1", 123, "m3"}, wantErr: true},
		{name: "array with empty string", input: []any{"m1", "", "m3"}, wantErr: true},
		{name: "invalid type", input: 123, wantErr: true},
		{name: "JSON string array", input: `["m1", "m2"]`, want: []string{"m1", "m2"}},
		{name: "JSON string empty array", input: `[]`, wantErr: true},
		{name: "invalid JSON string is a single id", input: `[invalid json`, want: []string{`[invalid json`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStringOrArray(tt.input, "ids")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStringOrArray() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseStringOrArray() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type payload struct {
	Path string `json:"path"`
}

func TestEntries(t *testing.T) {
	results := []Result[payload]{
		NewSuccessResult("m1", payload{Path: "/tmp/m1.md"}),
		NewErrorResult[payload]("m2", mailerr.New(mailerr.NotFound, "get_email", "m2", errors.New("404"))),
		NewSuccessResult("m3", payload{Path: "/tmp/m3.md"}),
	}

	data, err := json.Marshal(Entries(results))
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("entries are not a JSON array: %v", err)
	}
	want := []map[string]any{
		{"path": "/tmp/m1.md"},
		{"id": "m2", "error": "get_email m2: not_found: 404", "kind": "not_found"},
		{"path": "/tmp/m3.md"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewErrorResult_UnclassifiedKind(t *testing.T) {
	r := NewErrorResult[payload]("x", errors.New("boom"))
	if r.Status != StatusError || r.Error != "boom" || r.Kind != "unknown" {
		t.Errorf("NewErrorResult() = %+v", r)
	}
}
