package gmail_tools

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/mailerr"
)

func TestParseSearchArgs(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantQuery string
		wantMax   int
		wantErr   bool
	}{
		{
			name:      "raw query with default max",
			args:      map[string]any{"query": "is:unread"},
			wantQuery: "is:unread",
			wantMax:   10,
		},
		{
			name:      "gmail_query synonym",
			args:      map[string]any{"gmail_query": "in:inbox", "max_results": float64(25)},
			wantQuery: "in:inbox",
			wantMax:   25,
		},
		{
			name: "structured filters in fixed order",
			args: map[string]any{
				"read_status":    "unread",
				"has_attachment": true,
				"before_date":    "2024/02/01",
				"after_date":     "2024/01/01",
				"label":          "My Label",
				"subject":        "quarterly report",
				"to_email":       "bob@example.com",
				"from_email":     "alice@example.com",
			},
			wantQuery: `from:alice@example.com to:bob@example.com subject:"quarterly report" label:My-Label after:2024/01/01 before:2024/02/01 has:attachment is:unread`,
			wantMax:   10,
		},
		{
			name:    "raw query combined with filters",
			args:    map[string]any{"gmail_query": "in:inbox", "from_email": "alice@example.com"},
			wantErr: true,
		},
		{
			name:    "conflicting synonyms",
			args:    map[string]any{"query": "a", "gmail_query": "b"},
			wantErr: true,
		},
		{
			name:    "nothing to search for",
			args:    map[string]any{},
			wantErr: true,
		},
		{
			name:    "bad date",
			args:    map[string]any{"after_date": "2024-01-01"},
			wantErr: true,
		},
		{
			name:    "bad read status",
			args:    map[string]any{"read_status": "starred"},
			wantErr: true,
		},
		{
			name:    "max results zero",
			args:    map[string]any{"query": "x", "max_results": float64(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, maxResults, err := parseSearchArgs(tt.args, DefaultMaxResults)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSearchArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if mailerr.KindOf(err) != mailerr.Validation {
					t.Errorf("parseSearchArgs() error kind = %v, want %v", mailerr.KindOf(err), mailerr.Validation)
				}
				return
			}
			if query != tt.wantQuery {
				t.Errorf("parseSearchArgs() query = %q, want %q", query, tt.wantQuery)
			}
			if maxResults != tt.wantMax {
				t.Errorf("parseSearchArgs() max = %d, want %d", maxResults, tt.wantMax)
			}
		})
	}
}

func TestParseDraftArgs(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"to":      []any{"alice@example.com"},
			"subject": "Hi",
			"body":    "Hello",
		}
	}

	tests := []struct {
		name    string
		mutate  func(map[string]any)
		want    gmail.DraftRequest
		wantErr bool
	}{
		{
			name:   "minimal",
			mutate: func(map[string]any) {},
			want:   gmail.DraftRequest{To: []string{"alice@example.com"}, Subject: "Hi", Body: "Hello"},
		},
		{
			name: "all fields",
			mutate: func(a map[string]any) {
				a["cc"] = []any{"carol@example.com"}
				a["bcc"] = "dave@example.com"
				a["html"] = true
				a["attachments"] = []any{"/tmp/report.pdf"}
				a["thread_id"] = "t1"
			},
			want: gmail.DraftRequest{
				To:          []string{"alice@example.com"},
				Cc:          []string{"carol@example.com"},
				Bcc:         []string{"dave@example.com"},
				Subject:     "Hi",
				Body:        "Hello",
				HTML:        true,
				Attachments: []string{"/tmp/report.pdf"},
				ThreadID:    "t1",
			},
		},
		{name: "no recipients", mutate: func(a map[string]any) { delete(a, "to") }, wantErr: true},
		{name: "empty recipient list", mutate: func(a map[string]any) { a["to"] = []any{} }, wantErr: true},
		{name: "invalid recipient", mutate: func(a map[string]any) { a["to"] = []any{"alice"} }, wantErr: true},
		{name: "invalid cc", mutate: func(a map[string]any) { a["cc"] = "not an address" }, wantErr: true},
		{name: "missing subject", mutate: func(a map[string]any) { a["subject"] = "" }, wantErr: true},
		{name: "bad thread id", mutate: func(a map[string]any) { a["thread_id"] = "t/1" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := valid()
			tt.mutate(args)
			got, err := parseDraftArgs(toolCreateDraft, args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDraftArgs() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseDraftArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
