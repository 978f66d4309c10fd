package utils

import (
	"regexp"
	"strings"
)

var nonDigits = regexp.MustCompile(`\D`)

const kenyaCountryCode = "254"

// NormalizeMSISDN turns "+254 712 345678", "0712345678" or "712345678"
// into the 2547XXXXXXXX form the mobile-money gateway expects.
func NormalizeMSISDN(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if digits == "" || strings.HasPrefix(digits, kenyaCountryCode) {
		return digits
	}
	return kenyaCountryCode + strings.TrimLeft(digits, "0")
}
