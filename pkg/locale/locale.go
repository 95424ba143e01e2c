// Package locale infers regional defaults from phone numbers. Salons rarely
// submit a timezone explicitly, but their phone prefix pins one down well
// enough for opening-hours display.
package locale

import "strings"

const DefaultTimezone = "UTC"

type Country struct {
	Code            string
	Name            string
	PhonePrefixes   []string
	DefaultTimezone string
}

var Countries = map[string]Country{
	"IL": {
		Code:            "IL",
		Name:            "Israel",
		PhonePrefixes:   []string{"+972"},
		DefaultTimezone: "Asia/Jerusalem",
	},
	"US": {
		Code:            "US",
		Name:            "United States",
		PhonePrefixes:   []string{"+1"},
		DefaultTimezone: "America/New_York",
	},
	"GB": {
		Code:            "GB",
		Name:            "United Kingdom",
		PhonePrefixes:   []string{"+44"},
		DefaultTimezone: "Europe/London",
	},
	"DE": {
		Code:            "DE",
		Name:            "Germany",
		PhonePrefixes:   []string{"+49"},
		DefaultTimezone: "Europe/Berlin",
	},
	"FR": {
		Code:            "FR",
		Name:            "France",
		PhonePrefixes:   []string{"+33"},
		DefaultTimezone: "Europe/Paris",
	},
}

func InferTimezoneFromPhone(phone string) string {
	normalized := strings.TrimSpace(phone)

	for _, country := range Countries {
		for _, prefix := range country.PhonePrefixes {
			if strings.HasPrefix(normalized, prefix) {
				return country.DefaultTimezone
			}
		}
	}

	return DefaultTimezone
}

func InferCountryFromPhone(phone string) *Country {
	normalized := strings.TrimSpace(phone)

	for _, country := range Countries {
		for _, prefix := range country.PhonePrefixes {
			if strings.HasPrefix(normalized, prefix) {
				c := country
				return &c
			}
		}
	}

	return nil
}
