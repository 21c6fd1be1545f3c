package gmail

import (
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

// HeaderValue returns the first top-level header of m named header.
// Header names are compared case-insensitively.
func HeaderValue(m *gmail.Message, header string) string {
	if m == nil {
		return ""
	}
	return PartHeader(m.Payload, header)
}

// PartHeader returns the first header of part named header.
func PartHeader(part *gmail.MessagePart, header string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}
