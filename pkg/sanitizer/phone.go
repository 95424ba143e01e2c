package sanitizer

import (
	"regexp"
	"strings"
)

var (
	rePhoneNoise = regexp.MustCompile(`[\s\-().]+`)
	reE164       = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// NormalizePhone strips formatting noise and returns the number in E.164
// form, or "" when the result is not a plausible E.164 number. Validation
// proper happens later; this only canonicalizes.
func NormalizePhone(phone string) string {
	phone = rePhoneNoise.ReplaceAllString(strings.TrimSpace(phone), "")
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	}
	if !reE164.MatchString(phone) {
		return ""
	}
	return phone
}
