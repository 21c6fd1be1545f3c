package gmail

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the date format accepted by Gmail's after: and before: operators.
const DateLayout = "2006/01/02"

// Read states for SearchCriteria.ReadStatus.
const (
	ReadStatusRead   = "read"
	ReadStatusUnread = "unread"
)

// SearchCriteria is a structured search that is turned into a Gmail query.
type SearchCriteria struct {
	From          string
	To            string
	Subject       string
	Label         string
	After         string // YYYY/MM/DD
	Before        string // YYYY/MM/DD
	HasAttachment bool
	ReadStatus    string // "", "read" or "unread"
}

// IsZero reports whether no criterion is set.
func (s SearchCriteria) IsZero() bool {
	return s == SearchCriteria{}
}

// Validate checks dates and the read status.
func (s SearchCriteria) Validate() error {
	if err := ValidateDate(s.After); err != nil {
		return fmt.Errorf("after_date: %w", err)
	}
	if err := ValidateDate(s.Before); err != nil {
		return fmt.Errorf("before_date: %w", err)
	}
	switch s.ReadStatus {
	case "", ReadStatusRead, ReadStatusUnread:
	default:
		return fmt.Errorf("read_status must be %q or %q, got %q", ReadStatusRead, ReadStatusUnread, s.ReadStatus)
	}
	return nil
}

// Query builds the Gmail search string. Terms appear in a fixed order.
func (s SearchCriteria) Query() string {
	var terms []string
	if s.From != "" {
		terms = append(terms, "from:"+s.From)
	}
	if s.To != "" {
		terms = append(terms, "to:"+s.To)
	}
	if s.Subject != "" {
		subject := s.Subject
		if strings.ContainsAny(subject, " \t") {
			subject = `"` + strings.ReplaceAll(subject, `"`, "") + `"`
		}
		terms = append(terms, "subject:"+subject)
	}
	if s.Label != "" {
		terms = append(terms, "label:"+strings.ReplaceAll(strings.TrimSpace(s.Label), " ", "-"))
	}
	if s.After != "" {
		terms = append(terms, "after:"+s.After)
	}
	if s.Before != "" {
		terms = append(terms, "before:"+s.Before)
	}
	if s.HasAttachment {
		terms = append(terms, "has:attachment")
	}
	if s.ReadStatus != "" {
		terms = append(terms, "is:"+s.ReadStatus)
	}
	return strings.Join(terms, " ")
}

// ValidateDate checks that d is empty or a valid YYYY/MM/DD date.
func ValidateDate(d string) error {
	if d == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, d); err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY/MM/DD", d)
	}
	return nil
}
