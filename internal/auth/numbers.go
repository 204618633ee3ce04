package auth

import "strings"

// NormalizeDigits folds Persian and Arabic-Indic digits to their ASCII
// equivalents. Clients routinely submit phone numbers and codes typed on
// localized keyboards.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹': // Persian
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩': // Arabic-Indic
			return '0' + (r - '٠')
		default:
			return r
		}
	}, s)
}
