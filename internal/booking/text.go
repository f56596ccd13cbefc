package booking

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail trims, NFC-normalizes and lower-cases an email so it can be
// used as an ownership key.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	return cases.Lower(language.Und).String(norm.NFC.String(email))
}

// foldText lower-cases free text for keyword matching. A new Caser is built
// per call because Casers keep state and must not be shared.
func foldText(s string) string {
	return cases.Lower(language.Und).String(norm.NFC.String(s))
}
