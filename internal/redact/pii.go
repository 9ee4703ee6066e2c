// Package redact masks personal data in logged questions and answers.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Kind is a category of personal data
type Kind string

const (
	KindEmail      Kind = "email"
	KindPhone      Kind = "phone"
	KindSSN        Kind = "ssn"
	KindCreditCard Kind = "credit_card"
	KindIPAddress  Kind = "ip_address"
)

// Match is one detected span of text
type Match struct {
	Kind  Kind
	Value string
	Start int
	End   int
}

type detector struct {
	kind     Kind
	pattern  *regexp.Regexp
	validate func(string) bool
}

var detectors = []detector{
	{kind: KindEmail, pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
	{kind: KindSSN, pattern: regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`)},
	{kind: KindCreditCard, pattern: regexp.MustCompile(`\b(?:[0-9][ -]?){12,18}[0-9]\b`), validate: luhn},
	{kind: KindIPAddress, pattern: regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`)},
	// phone numbers need a separator or a leading +, so bare years and IDs stay intact
	{kind: KindPhone, pattern: regexp.MustCompile(`(?:\+[0-9]{1,3}[ .-]?)?\(?[0-9]{3}\)?[ .-][0-9]{3}[ .-][0-9]{4}\b`)},
}

// Detect returns the non-overlapping matches in text, in order of position.
// When two detectors claim overlapping spans, the one listed first wins.
func Detect(text string) []Match {
	var matches []Match
	taken := func(start, end int) bool {
		for _, m := range matches {
			if start < m.End && m.Start < end {
				return true
			}
		}
		return false
	}

	for _, d := range detectors {
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if d.validate != nil && !d.validate(value) {
				continue
			}
			if taken(loc[0], loc[1]) {
				continue
			}
			matches = append(matches, Match{Kind: d.kind, Value: value, Start: loc[0], End: loc[1]})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// Contains reports whether text has any personal data
func Contains(text string) bool {
	return len(Detect(text)) > 0
}

// String replaces every match with a placeholder naming its kind, e.g. [EMAIL_REDACTED]
func String(text string) string {
	matches := Detect(text)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		b.WriteString(placeholder(m.Kind))
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String()
}

func placeholder(kind Kind) string {
	switch kind {
	case KindEmail:
		return "[EMAIL_REDACTED]"
	case KindPhone:
		return "[PHONE_REDACTED]"
	case KindSSN:
		return "[SSN_REDACTED]"
	case KindCreditCard:
		return "[CC_REDACTED]"
	case KindIPAddress:
		return "[IP_REDACTED]"
	default:
		return "[REDACTED]"
	}
}

// luhn validates a card number, ignoring spaces and dashes
func luhn(number string) bool {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
