// Package util holds small helpers shared across packages.
package util

import "fmt"

// DefaultTruncateLen bounds provider error bodies and log excerpts.
const DefaultTruncateLen = 2048

// Truncate caps s at maxLen bytes and appends the original size, so an
// upstream that answers with a page of HTML cannot flood a log line or an
// error message.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... [truncated, %d bytes total]", len(s))
}
