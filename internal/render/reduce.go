package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jaytaylor/html2text"

	"github.com/teemow/mailpipe/internal/mailerr"
)

const opRender = "render"

// preference ranks how well a subtree can provide a readable body.
type preference int

const (
	prefNone preference = iota
	prefHTML
	prefPlain
)

// reducer folds a Part tree into readable text segments and collects the
// problems it hit on the way.
type reducer struct {
	problems []error
}

// reduce returns the readable segments of p in document order.
func (r *reducer) reduce(p Part) []string {
	switch p := p.(type) {
	case *Leaf:
		return r.leaf(p)
	case *Multipart:
		if p.Subtype == "alternative" {
			if best := bestAlternative(p.Children); best != nil {
				return r.reduce(best)
			}
			return nil
		}
		var out []string
		for _, c := range p.Children {
			out = append(out, r.reduce(c)...)
		}
		return out
	default:
		return nil
	}
}

func (r *reducer) leaf(l *Leaf) []string {
	if l.isAttachment() || !l.isText() {
		return nil
	}
	if l.DecodeErr != nil {
		return []string{r.problem(l, l.DecodeErr)}
	}
	if l.Data == nil {
		if l.AttachmentID != "" {
			return []string{r.problem(l, errors.New("body stored out of line"))}
		}
		return nil
	}

	text := decodeText(l.Data, l.Charset)
	if l.MimeType == "text/html" {
		converted, err := html2text.FromString(text, html2text.Options{})
		if err != nil {
			return []string{r.problem(l, err)}
		}
		text = converted
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return nil
	}
	return []string{text}
}

func (r *reducer) problem(l *Leaf, err error) string {
	r.problems = append(r.problems, mailerr.New(mailerr.Render, opRender, l.PartID, fmt.Errorf("%s part: %w", l.MimeType, err)))
	return fmt.Sprintf("[unrenderable %s part: %v]", l.MimeType, err)
}

// bestAlternative picks the child offering the most readable body. Ties go
// to the earlier child.
func bestAlternative(children []Part) Part {
	var best Part
	bestPref := prefNone
	for _, c := range children {
		if p := preferenceOf(c); p > bestPref {
			best, bestPref = c, p
		}
	}
	return best
}

func preferenceOf(p Part) preference {
	switch p := p.(type) {
	case *Leaf:
		if p.isAttachment() {
			return prefNone
		}
		switch p.MimeType {
		case "text/plain":
			return prefPlain
		case "text/html":
			return prefHTML
		}
		return prefNone
	case *Multipart:
		best := prefNone
		for _, c := range p.Children {
			best = max(best, preferenceOf(c))
		}
		return best
	default:
		return prefNone
	}
}

// attachments lists every attachment leaf of p in document order.
func attachments(p Part) []Attachment {
	var out []Attachment
	var walk func(Part)
	walk = func(p Part) {
		switch p := p.(type) {
		case *Leaf:
			if p.isAttachment() {
				out = append(out, Attachment{
					Filename:     decodeHeader(p.Filename),
					MimeType:     p.MimeType,
					Size:         p.Size,
					AttachmentID: p.AttachmentID,
					PartID:       p.PartID,
				})
			}
		case *Multipart:
			for _, c := range p.Children {
				walk(c)
			}
		}
	}
	walk(p)
	return out
}
