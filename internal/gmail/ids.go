package gmail

import "regexp"

// IDPattern is the accepted shape of message, thread and draft ids.
const IDPattern = `^[A-Za-z0-9_-]{1,256}$`

var idPattern = regexp.MustCompile(IDPattern)

// ValidID reports whether s has the shape of a Gmail id.
func ValidID(s string) bool {
	return idPattern.MatchString(s)
}
