// Package validate holds the local, step-scoped input checks. Failures never leave
// the current step.
package validate

import (
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

var (
	ErrEmptyIdentifier = errors.New("identifier is empty")
	ErrInvalidEmail    = errors.New("malformed email address")
	ErrInvalidPhone    = errors.New("malformed phone number")
	ErrInvalidCode     = errors.New("malformed verification code")
	ErrInvalidDate     = errors.New("malformed date")
	ErrDateInFuture    = errors.New("date is in the future")
	ErrTooYoung        = errors.New("minimum age not reached")
	ErrPasswordShort   = errors.New("password too short")
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
)

// Email normalizes and checks a bare email address ("Name <a@b>" forms are rejected).
func Email(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", ErrEmptyIdentifier
	}
	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Address != v || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndexByte(v, '@')
	if at <= 0 || !strings.Contains(v[at+1:], ".") {
		return "", ErrInvalidEmail
	}
	return v[:at] + "@" + strings.ToLower(v[at+1:]), nil
}

// Phone normalizes to E.164 ("+15551234567"). Spaces, dashes, dots and
// parentheses are ignored.
func Phone(raw string) (string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return "", ErrEmptyIdentifier
	}
	if !strings.HasPrefix(v, "+") {
		return "", ErrInvalidPhone
	}
	var b strings.Builder
	b.WriteByte('+')
	for _, r := range v[1:] {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}
	out := b.String()
	digits := len(out) - 1
	if digits < minPhoneDigits || digits > maxPhoneDigits || out[1] == '0' {
		return "", ErrInvalidPhone
	}
	return out, nil
}

// Code checks a numeric one-time code of exactly length digits.
func Code(raw string, length int) (string, error) {
	v := strings.TrimSpace(raw)
	if length <= 0 || len(v) != length {
		return "", ErrInvalidCode
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return "", ErrInvalidCode
		}
	}
	return v, nil
}

// BirthDate parses raw with layout and enforces minAge whole years at now.
func BirthDate(raw, layout string, minAge int, now time.Time) (time.Time, error) {
	d, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	if d.After(now) {
		return time.Time{}, ErrDateInFuture
	}
	if minAge > 0 && d.AddDate(minAge, 0, 0).After(now) {
		return time.Time{}, ErrTooYoung
	}
	return d, nil
}

// Password enforces a minimum rune count and rejects all-whitespace input.
func Password(raw string, minLength int) error {
	if utf8.RuneCountInString(raw) < minLength {
		return ErrPasswordShort
	}
	if strings.IndexFunc(raw, func(r rune) bool { return !unicode.IsSpace(r) }) < 0 {
		return ErrPasswordShort
	}
	return nil
}
