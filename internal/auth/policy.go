package auth

import (
	"regexp"
	"unicode"
	"unicode/utf8"
)

// PasswordSymbols is the allowed special-character set for passwords.
const PasswordSymbols = "@$!%*#?&"

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

var mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)

// ValidPassword reports whether pw satisfies the password policy: at least
// MinPasswordLength characters with one lowercase, one uppercase, one digit
// and one symbol from PasswordSymbols.
func ValidPassword(pw string) bool {
	// Length is counted in characters, not bytes.
	if utf8.RuneCountInString(pw) < MinPasswordLength {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			for _, s := range PasswordSymbols {
				if r == s {
					symbol = true
					break
				}
			}
		}
	}
	return lower && upper && digit && symbol
}

// ValidMobile reports whether m is a 10-digit mobile number starting
// with 6, 7, 8 or 9.
func ValidMobile(m string) bool {
	return mobilePattern.MatchString(m)
}
