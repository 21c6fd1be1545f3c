package instrumentation

import "strings"

// ExtractUserDomain returns the domain part of an email address, or
// "unknown". Use it wherever a user identifier would otherwise become a
// metric label.
//
//	ExtractUserDomain("jane@example.com")  // "example.com"
//	ExtractUserDomain("invalid")           // "unknown"
func ExtractUserDomain(email string) string {
	if email == "" {
		return "unknown"
	}

	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}

// Operation types recorded with tool invocations.
const (
	OperationList     = "list"
	OperationGet      = "get"
	OperationSearch   = "search"
	OperationModify   = "modify"
	OperationCreate   = "create"
	OperationSend     = "send"
	OperationDownload = "download"
)
