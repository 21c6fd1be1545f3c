package render

import (
	"net/mail"
	"strings"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/gmail"
)

// Display fallbacks.
const (
	NoSubject   = "(no subject)"
	NoBody      = "_(no body)_"
	UnknownDate = "Unknown Date"
)

// DisplayDateLayout formats message dates in local time.
const DisplayDateLayout = "2006-01-02 03:04 PM MST"

// Label is a label attached to a message.
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Attachment describes an attachment part. Its bytes are never inlined.
type Attachment struct {
	Filename     string `json:"filename"`
	MimeType     string `json:"mime_type"`
	Size         int64  `json:"size"`
	AttachmentID string `json:"attachment_id"`
	PartID       string `json:"part_id,omitempty"`
}

// Metadata is the header-level summary of a message.
type Metadata struct {
	ID             string       `json:"id"`
	ThreadID       string       `json:"thread_id"`
	Subject        string       `json:"subject"`
	From           string       `json:"from"`
	To             string       `json:"to,omitempty"`
	Cc             string       `json:"cc,omitempty"`
	Date           time.Time    `json:"-"`
	DateText       string       `json:"date"`
	Labels         []Label      `json:"labels,omitempty"`
	SizeBytes      int64        `json:"size_bytes"`
	Snippet        string       `json:"snippet,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	HasAttachments bool         `json:"has_attachments"`
	WebURL         string       `json:"web_url"`
}

// LabelNames maps label ids to display names.
type LabelNames map[string]string

// WebURL returns the Gmail web link for a message.
func WebURL(messageID string) string {
	return "https://mail.google.com/mail/u/0/#all/" + messageID
}

// ExtractMetadata builds the metadata of msg. Labels are resolved through
// names; unknown ids are shown as they are.
func ExtractMetadata(msg *gmailapi.Message, names LabelNames) Metadata {
	return extractMetadata(msg, FromAPI(msg.Payload), names)
}

func extractMetadata(msg *gmailapi.Message, tree Part, names LabelNames) Metadata {
	md := Metadata{
		ID:        msg.Id,
		ThreadID:  msg.ThreadId,
		Subject:   decodeHeader(gmail.HeaderValue(msg, "Subject")),
		From:      decodeHeader(gmail.HeaderValue(msg, "From")),
		To:        decodeHeader(gmail.HeaderValue(msg, "To")),
		Cc:        decodeHeader(gmail.HeaderValue(msg, "Cc")),
		SizeBytes: msg.SizeEstimate,
		Snippet:   decodeHeader(msg.Snippet),
		WebURL:    WebURL(msg.Id),
	}
	if strings.TrimSpace(md.Subject) == "" {
		md.Subject = NoSubject
	}

	md.Date, md.DateText = parseDate(gmail.HeaderValue(msg, "Date"))

	for _, id := range msg.LabelIds {
		name := names[id]
		if name == "" {
			name = id
		}
		md.Labels = append(md.Labels, Label{ID: id, Name: name})
	}

	md.Attachments = attachments(tree)
	md.HasAttachments = len(md.Attachments) > 0
	return md
}

// parseDate parses a Date header. Missing or malformed dates yield the
// zero time and UnknownDate.
func parseDate(v string) (time.Time, string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, UnknownDate
	}
	t, err := mail.ParseDate(v)
	if err != nil {
		return time.Time{}, UnknownDate
	}
	return t, t.Local().Format(DisplayDateLayout)
}

// LabelDisplay returns the label names of md joined for display.
func (md Metadata) LabelDisplay() string {
	names := make([]string, len(md.Labels))
	for i, l := range md.Labels {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}
