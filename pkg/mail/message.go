// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/telekom/notification-mailer/pkg/utils"
)

// Message is a fully rendered outbound mail.
type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Template string `json:"template,omitempty"`
}

// Mode is the deployment mode of the running process.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeQA          Mode = "qa"
	ModeDevelopment Mode = "development"
)

// ParseMode parses a deployment mode. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeProduction:
		return ModeProduction, nil
	case ModeQA:
		return ModeQA, nil
	case ModeDevelopment, "":
		return ModeDevelopment, nil
	default:
		return "", fmt.Errorf("unknown deployment mode %q", s)
	}
}

// Sanitizer redirects outbound mail to a test address outside production.
type Sanitizer struct {
	Mode        Mode
	TestAddress string
	Allowed     []string
}

// Apply returns the message as it should be delivered under the sanitizer's mode.
func (s Sanitizer) Apply(msg Message) Message {
	return Sanitize(s.Mode, msg, s.Allowed, s.TestAddress)
}

// Sanitize passes msg through unchanged in production mode or when the
// recipient is allowlisted. Otherwise the recipient is replaced with
// testAddress and the subject is prefixed with the original recipient.
func Sanitize(mode Mode, msg Message, allowed []string, testAddress string) Message {
	if mode == ModeProduction {
		return msg
	}
	if isAllowed(msg.To, allowed) {
		return msg
	}
	msg.Subject = stripInvisible(fmt.Sprintf("[%s] %s", msg.To, msg.Subject))
	msg.To = testAddress
	return msg
}

// isAllowed matches to against the allowlist. Entries may be glob patterns
// such as "*@example.com".
func isAllowed(to string, allowed []string) bool {
	return utils.MatchAddress(allowed, to)
}

// stripInvisible removes control and format characters which some mail
// clients render as garbage in subject lines.
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return -1
		}
		return r
	}, s)
}
