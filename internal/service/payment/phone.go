package payment

import (
	"regexp"
	"strings"

	"github.com/Domenick1991/glamexpress/internal/domain"
)

var msisdn = regexp.MustCompile(`^\+254\d{9}$`)

// NormalizePhone brings user input to +254XXXXXXXXX. Separators are dropped, a leading 0 or a
// bare 254 prefix is rewritten, and anything else without a + is assumed to be a local number.
func NormalizePhone(input string) (string, error) {
	var b strings.Builder
	for _, r := range input {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	phone := b.String()

	switch {
	case phone == "":
	case strings.HasPrefix(phone, "+"):
	case strings.HasPrefix(phone, "0"):
		phone = "+254" + phone[1:]
	case strings.HasPrefix(phone, "254"):
		phone = "+" + phone
	default:
		phone = "+254" + phone
	}

	if !msisdn.MatchString(phone) {
		return "", domain.ErrInvalidPhoneFormat
	}
	return phone, nil
}

// maskPhone keeps the last three digits for logs.
func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
