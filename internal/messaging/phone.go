package messaging

import (
	"regexp"
	"strings"
)

var phoneDigitsRe = regexp.MustCompile(`\d+`)

const whatsAppPrefix = "whatsapp:"

func sanitizePhone(value string) string {
	if value == "" {
		return ""
	}
	return strings.Join(phoneDigitsRe.FindAllString(value, -1), "")
}

// NormalizeE164 ensures the value begins with + and only contains digits afterward.
func NormalizeE164(value string) string {
	digits := sanitizePhone(strings.TrimSpace(value))
	if digits == "" {
		return ""
	}
	return "+" + digits
}

// FormatWhatsAppAddress turns a stored phone into a Twilio WhatsApp address.
// Eleven-digit numbers are Brazilian national numbers (DDD + mobile) and get
// the 55 country code; anything else is assumed to already carry one.
func FormatWhatsAppAddress(phone string) string {
	digits := sanitizePhone(phone)
	if digits == "" {
		return ""
	}
	if len(digits) == 11 {
		return whatsAppPrefix + "+55" + digits
	}
	return whatsAppPrefix + "+" + digits
}

// StripChannel removes the whatsapp: prefix and any formatting, returning digits.
func StripChannel(address string) string {
	return sanitizePhone(address)
}
