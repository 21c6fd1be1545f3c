package gmail_tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"iter"
	"maps"
	"slices"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/gmail"
	"github.com/teemow/mailpipe/internal/mailerr"
	"github.com/teemow/mailpipe/internal/pipeline"
	"github.com/teemow/mailpipe/internal/scratch"
	"github.com/teemow/mailpipe/internal/server"
	"github.com/teemow/mailpipe/internal/tools/common"
)

// stubMailbox serves a fixed set of plain-text messages.
type stubMailbox struct {
	messages map[string]*gmailapi.Message
}

func (m stubMailbox) ListMessages(context.Context, string, int) iter.Seq2[gmail.MessageRef, error] {
	return func(yield func(gmail.MessageRef, error) bool) {
		for _, id := range slices.Sorted(maps.Keys(m.messages)) {
			if !yield(gmail.MessageRef{ID: id, ThreadID: m.messages[id].ThreadId}, nil) {
				return
			}
		}
	}
}

func (m stubMailbox) GetMessage(_ context.Context, id string) (*gmailapi.Message, error) {
	if msg, ok := m.messages[id]; ok {
		return msg, nil
	}
	return nil, mailerr.New(mailerr.NotFound, "get_message", id, errors.New("404"))
}

func (m stubMailbox) GetThread(ctx context.Context, id string) ([]*gmailapi.Message, error) {
	var out []*gmailapi.Message
	for _, msg := range m.messages {
		if msg.ThreadId == id {
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		return nil, mailerr.New(mailerr.NotFound, "get_thread", id, errors.New("404"))
	}
	return out, nil
}

func (stubMailbox) ListLabels(context.Context) ([]gmail.LabelInfo, error) {
	return []gmail.LabelInfo{{ID: "INBOX", Name: "INBOX", Type: gmail.LabelTypeSystem}}, nil
}

func (stubMailbox) ModifyLabels(_ context.Context, _ string, add, _ []string) ([]string, error) {
	return append([]string{"INBOX"}, add...), nil
}

func (stubMailbox) GetAttachment(context.Context, string, string) ([]byte, error) {
	return []byte("data"), nil
}

func (stubMailbox) CreateDraft(context.Context, gmail.DraftRequest) (string, error) {
	return "r1", nil
}

func (stubMailbox) Send(context.Context, gmail.DraftRequest) (gmail.SentMessage, error) {
	return gmail.SentMessage{ID: "s1", ThreadID: "t1"}, nil
}

func (stubMailbox) SendDraft(context.Context, string) (gmail.SentMessage, error) {
	return gmail.SentMessage{ID: "s1", ThreadID: "t1"}, nil
}

func plainMessage(id, subject string) *gmailapi.Message {
	return &gmailapi.Message{
		Id:       id,
		ThreadId: "t1",
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "From", Value: "alice@example.com"},
				{Name: "Subject", Value: subject},
			},
			Body: &gmailapi.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("body of " + id))},
		},
	}
}

func newTestServer(t *testing.T, readOnly bool) (*mcpserver.MCPServer, *server.ServerContext) {
	t.Helper()
	store := scratch.New(t.TempDir())
	mb := stubMailbox{messages: map[string]*gmailapi.Message{
		"m1": plainMessage("m1", "First"),
		"m2": plainMessage("m2", "Second"),
	}}
	sc := server.NewServerContext(context.Background(), pipeline.New(mb, store), store, server.WithReadOnly(readOnly))
	t.Cleanup(func() { _ = sc.Shutdown() })

	s := mcpserver.NewMCPServer("test", "0.0.0", mcpserver.WithToolCapabilities(true))
	RegisterGmailTools(s, sc, Options{})
	return s, sc
}

func call(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "tool %s not registered", name)

	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := tool.Handler(context.Background(), req)
	require.NoError(t, err, "handlers never return Go errors")
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text, result.IsError
}

func TestRegisterGmailTools(t *testing.T) {
	readTools := []string{"search_emails", "get_emails", "get_thread", "list_labels", "list_attachments", "download_attachment"}
	writeTools := []string{"add_label", "remove_label", "create_draft", "send_email", "send_draft"}

	tests := []struct {
		name     string
		readOnly bool
		want     []string
	}{
		{"read-write", false, append(slices.Clone(readTools), writeTools...)},
		{"read-only", true, readTools},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.readOnly)
			var got []string
			for name := range s.ListTools() {
				got = append(got, name)
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestGetEmails_ReportsPerIDFailures(t *testing.T) {
	s, _ := newTestServer(t, false)

	text, isErr := call(t, s, "get_emails", map[string]any{"message_ids": []any{"m1", "missing", "m2"}})
	require.False(t, isErr, text)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &entries), "get_emails returns a JSON array")
	require.Len(t, entries, 3)

	assert.Equal(t, "m1", entries[0]["id"])
	assert.True(t, strings.HasSuffix(entries[0]["path"].(string), "m1.md"))
	assert.Positive(t, entries[0]["size"])
	assert.NotContains(t, entries[0], "error")

	assert.Equal(t, "missing", entries[1]["id"])
	assert.Equal(t, "not_found", entries[1]["kind"])
	assert.Contains(t, entries[1]["error"], "missing")
	assert.NotContains(t, entries[1], "path")

	metadata, ok := entries[2]["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Second", metadata["subject"])
}

func TestDownloadAttachment_LongAttachmentID(t *testing.T) {
	s, _ := newTestServer(t, false)

	tests := []struct {
		name         string
		attachmentID string
		wantErr      string
	}{
		{"gmail length id", strings.Repeat("A", 300), ""},
		{"over the limit", strings.Repeat("A", common.MaxTokenLen+1), "download_attachment failed for attachment_id: validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, s, "download_attachment", map[string]any{
				"message_id":    "m1",
				"attachment_id": tt.attachmentID,
				"filename":      "report.pdf",
			})
			if tt.wantErr != "" {
				assert.True(t, isErr)
				assert.Contains(t, text, tt.wantErr)
				return
			}
			require.False(t, isErr, text)

			var att struct {
				Path string `json:"path"`
				Size int64  `json:"size"`
			}
			require.NoError(t, json.Unmarshal([]byte(text), &att))
			assert.NotEmpty(t, att.Path)
			assert.Equal(t, int64(len("data")), att.Size)
		})
	}
}

func TestHandlers_ValidationErrors(t *testing.T) {
	s, _ := newTestServer(t, false)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"bad thread id", "get_thread", map[string]any{"thread_id": "../x"}, "get_thread failed for thread_id: validation_error"},
		{"missing message ids", "get_emails", map[string]any{}, "get_emails failed for message_ids: validation_error"},
		{"max results too large", "search_emails", map[string]any{"query": "x", "max_results": float64(501)}, "validation_error"},
		{"send without recipients", "send_email", map[string]any{"subject": "s", "body": "b"}, "send_email failed for to: validation_error"},
		{"unknown label", "add_label", map[string]any{"message_id": "m1", "label_id": "nope"}, "add_label failed for nope: not_found"},
		{"not found thread", "get_thread", map[string]any{"thread_id": "zzz"}, "get_thread failed for zzz: not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, s, tt.tool, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, text, tt.want)
		})
	}
}

func TestSearchEmails_MaterializesAggregate(t *testing.T) {
	s, _ := newTestServer(t, false)

	text, isErr := call(t, s, "search_emails", map[string]any{"from_email": "alice@example.com"})
	require.False(t, isErr, text)

	var res pipeline.SearchResult
	require.NoError(t, json.Unmarshal([]byte(text), &res))
	assert.Equal(t, "from:alice@example.com", res.Query)
	assert.Len(t, res.Matches, 2)
	assert.NotEmpty(t, res.AggregatePath)
	assert.Positive(t, res.AggregateSize)
}
