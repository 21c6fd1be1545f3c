package render

import (
	"fmt"
	"strconv"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
)

// Document is a rendered markdown document of one or more messages.
type Document struct {
	Title    string
	Markdown string
	Messages []Metadata
	// Problems holds one render error per part that degraded to a placeholder.
	Problems []error

	bodies []string // rendered body per message, parallel to Messages
}

// RenderMessage renders a single message.
func RenderMessage(msg *gmailapi.Message, names LabelNames) (Document, Metadata) {
	tree := FromAPI(msg.Payload)
	md := extractMetadata(msg, tree, names)

	var r reducer
	body := joinBody(r.reduce(tree))

	var b strings.Builder
	writeMessage(&b, md, body, 1)

	return Document{
		Title:    "Email: " + md.Subject,
		Markdown: b.String(),
		Messages: []Metadata{md},
		Problems: r.problems,
		bodies:   []string{body},
	}, md
}

// RenderThread renders the messages of a thread in the given order, one
// section per message.
func RenderThread(threadID string, msgs []*gmailapi.Message, names LabelNames) Document {
	doc := Document{}
	for _, msg := range msgs {
		d, _ := RenderMessage(msg, names)
		doc.Messages = append(doc.Messages, d.Messages...)
		doc.bodies = append(doc.bodies, d.bodies...)
		doc.Problems = append(doc.Problems, d.Problems...)
	}

	subject := NoSubject
	if len(doc.Messages) > 0 {
		subject = doc.Messages[0].Subject
	}
	doc.Title = "Email Thread: " + subject

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "**Thread ID:** %s\n", threadID)
	fmt.Fprintf(&b, "**Message Count:** %d\n", len(doc.Messages))

	for i, md := range doc.Messages {
		fmt.Fprintf(&b, "\n## Message %d\n\n", i+1)
		fmt.Fprintf(&b, "**Message ID:** %s\n", md.ID)
		fmt.Fprintf(&b, "**From:** %s\n", md.From)
		fmt.Fprintf(&b, "**To:** %s\n", md.To)
		if md.Cc != "" {
			fmt.Fprintf(&b, "**Cc:** %s\n", md.Cc)
		}
		fmt.Fprintf(&b, "**Date:** %s\n", md.DateText)
		fmt.Fprintf(&b, "**Subject:** %s\n", md.Subject)
		if md.HasAttachments {
			b.WriteString("\n")
			writeAttachments(&b, md.Attachments, 3)
		}
		b.WriteString("\n")
		b.WriteString(doc.bodies[i])
		b.WriteString("\n")
		if i < len(doc.Messages)-1 {
			b.WriteString("\n---\n")
		}
	}

	doc.Markdown = b.String()
	return doc
}

// RenderSearch combines rendered messages into a search aggregate with
// exactly one section per message document.
func RenderSearch(query string, docs []Document) Document {
	agg := Document{Title: "Gmail Search Results"}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", agg.Title)
	fmt.Fprintf(&b, "**Query:** %s\n", query)
	fmt.Fprintf(&b, "**Results:** %d\n", len(docs))

	for i, d := range docs {
		fmt.Fprintf(&b, "\n## Email %d\n\n", i+1)
		for j, md := range d.Messages {
			writeMessage(&b, md, d.bodies[j], 3)
		}
		agg.Messages = append(agg.Messages, d.Messages...)
		agg.Problems = append(agg.Problems, d.Problems...)
		agg.bodies = append(agg.bodies, d.bodies...)
	}
	if len(docs) == 0 {
		b.WriteString("\nNo messages matched.\n")
	}

	agg.Markdown = b.String()
	return agg
}

// writeMessage writes the full rendering of one message with its title at
// the given heading level.
func writeMessage(b *strings.Builder, md Metadata, body string, level int) {
	fmt.Fprintf(b, "%s Email: %s\n\n", heading(level), md.Subject)
	fmt.Fprintf(b, "**Message ID:** %s\n", md.ID)
	fmt.Fprintf(b, "**Thread ID:** %s\n", md.ThreadID)
	fmt.Fprintf(b, "**From:** %s\n", md.From)
	fmt.Fprintf(b, "**To:** %s\n", md.To)
	if md.Cc != "" {
		fmt.Fprintf(b, "**Cc:** %s\n", md.Cc)
	}
	fmt.Fprintf(b, "**Date:** %s\n", md.DateText)
	if len(md.Labels) > 0 {
		fmt.Fprintf(b, "**Labels:** %s\n", md.LabelDisplay())
	}
	fmt.Fprintf(b, "**Has Attachments:** %s\n", yesNo(md.HasAttachments))
	fmt.Fprintf(b, "**Web URL:** %s\n", md.WebURL)

	if md.HasAttachments {
		b.WriteString("\n")
		writeAttachments(b, md.Attachments, level+1)
	}

	b.WriteString("\n---\n\n")
	fmt.Fprintf(b, "%s Body\n\n", heading(level+1))
	b.WriteString(body)
	b.WriteString("\n")
}

func writeAttachments(b *strings.Builder, atts []Attachment, level int) {
	fmt.Fprintf(b, "%s Attachments\n\n", heading(level))
	for _, a := range atts {
		fmt.Fprintf(b, "- %s (%s, %s, attachment_id: %s)\n", a.Filename, a.MimeType, HumanSize(a.Size), a.AttachmentID)
	}
}

func joinBody(segments []string) string {
	body := strings.TrimSpace(strings.Join(segments, "\n\n"))
	if body == "" {
		return NoBody
	}
	return body
}

func heading(level int) string {
	return strings.Repeat("#", level)
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

// HumanSize formats a byte count using binary units.
func HumanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Participants returns the distinct senders of msgs in order of first appearance.
func Participants(msgs []Metadata) []string {
	seen := make(map[string]bool)
	var out []string
	for _, md := range msgs {
		if md.From == "" || seen[md.From] {
			continue
		}
		seen[md.From] = true
		out = append(out, md.From)
	}
	return out
}
