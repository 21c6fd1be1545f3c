package render

import (
	"mime"
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/mailpipe/internal/gmail"
)

// Part is a node of a message's MIME tree. It is either a *Leaf or a *Multipart.
type Part interface {
	isPart()
}

// Leaf is a single-body MIME part.
type Leaf struct {
	MimeType     string // lowercased media type, e.g. "text/plain"
	Filename     string
	Charset      string
	Data         []byte // decoded inline body; nil when the body lives behind AttachmentID
	AttachmentID string
	PartID       string
	Size         int64
	DecodeErr    error // set when the inline body was not valid base64
}

// Multipart is a multipart/* container.
type Multipart struct {
	Subtype  string // "alternative", "mixed", "related", ...
	Children []Part
}

func (*Leaf) isPart()      {}
func (*Multipart) isPart() {}

// FromAPI converts an upstream payload into a Part tree. A nil payload
// yields nil.
func FromAPI(p *gmailapi.MessagePart) Part {
	if p == nil {
		return nil
	}

	mediaType := strings.ToLower(p.MimeType)
	if sub, ok := strings.CutPrefix(mediaType, "multipart/"); ok {
		mp := &Multipart{Subtype: sub}
		for _, child := range p.Parts {
			if c := FromAPI(child); c != nil {
				mp.Children = append(mp.Children, c)
			}
		}
		return mp
	}

	leaf := &Leaf{
		MimeType: mediaType,
		Filename: p.Filename,
		PartID:   p.PartId,
	}
	if ct := gmail.PartHeader(p, "Content-Type"); ct != "" {
		if _, params, err := mime.ParseMediaType(ct); err == nil {
			leaf.Charset = params["charset"]
		}
	}
	if p.Body != nil {
		leaf.AttachmentID = p.Body.AttachmentId
		leaf.Size = p.Body.Size
		if p.Body.Data != "" {
			leaf.Data, leaf.DecodeErr = gmail.DecodeData(p.Body.Data)
		}
	}
	return leaf
}

func (l *Leaf) isText() bool {
	return l.MimeType == "text/plain" || l.MimeType == "text/html"
}

// isAttachment reports whether the leaf belongs in the attachment manifest.
// Gmail stores large text bodies behind an attachment id too; without a
// filename those are still bodies.
func (l *Leaf) isAttachment() bool {
	if l.Filename != "" {
		return true
	}
	return l.AttachmentID != "" && !l.isText()
}
