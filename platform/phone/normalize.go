// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no country code.
const DefaultRegion = "BR"

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}
	if region == "" {
		region = DefaultRegion
	}

	number, err := phonenumbers.Parse(trimmed, region)
	if err != nil || !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// FromJID extracts the phone part from a WhatsApp JID such as
// "5511999998888:12@s.whatsapp.net" and returns it as bare digits.
// Group and broadcast JIDs return an empty string.
func FromJID(jid string) string {
	jid = strings.TrimSpace(jid)
	user, server, found := strings.Cut(jid, "@")
	if found && server != "s.whatsapp.net" && server != "c.us" {
		return ""
	}
	user, _, _ = strings.Cut(user, ":")
	return Digits(NormalizeE164("+"+onlyDigits(user), DefaultRegion))
}

// Digits normalizes input to E.164 and drops the leading "+", which is the
// form the send gateway and the client table use as a key. Numbers that do
// not parse fall back to their digits.
func Digits(input string) string {
	return DigitsIn(input, DefaultRegion)
}

// DigitsIn is Digits with an explicit default region.
func DigitsIn(input, region string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}
	normalized := NormalizeE164(trimmed, region)
	if strings.HasPrefix(normalized, "+") {
		return onlyDigits(normalized)
	}
	return onlyDigits(trimmed)
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
