/*
Package notify delivers short text messages to a contact address.

Addresses containing "@" are treated as email addresses, everything else as a
phone number in E.164 form.
*/
package notify

import (
	"context"
	"strings"
)

// Sender delivers text to address.
type Sender interface {
	Send(ctx context.Context, address, text string) error
}

// IsEmail reports whether address should be delivered by email.
func IsEmail(address string) bool {
	return strings.Contains(address, "@")
}
