// Package extract implements the email extraction core: scanning text for
// addresses, case-insensitive deduplication, ordering, and company label
// derivation. All operations are pure functions of their input.
package extract

import (
	"regexp"
	"slices"
	"strings"
)

// emailPattern matches local@domain.tld where the local part is one or more
// of [a-zA-Z0-9._%+-], the domain one or more of [a-zA-Z0-9.-], and the TLD
// at least two alphabetic characters. Matching is greedy, left-to-right,
// non-overlapping.
var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// Entry pairs an extracted email address with its derived company label.
type Entry struct {
	Email   string `json:"email"`
	Company string `json:"company"`
}

// Normalize normalizes an email address for consistent comparison
// by converting to lowercase and trimming whitespace
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Emails returns all email addresses found in text, deduplicated under
// case-insensitive comparison (the first-encountered casing is kept) and
// sorted ascending by lowercased value. The result is always non-nil and
// possibly empty; pure pattern matching cannot fail.
func Emails(text string) []string {
	matches := emailPattern.FindAllString(text, -1)

	seen := make(map[string]struct{}, len(matches))
	unique := make([]string, 0, len(matches))
	for _, match := range matches {
		key := strings.ToLower(match)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, match)
	}

	slices.SortFunc(unique, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return unique
}

// Company derives a display label from an email's domain: the segment of
// the domain before the first dot, with the first character uppercased and
// the rest lowercased. Returns "" when the address does not split into
// exactly one local part and one domain, or the domain has no dot. The
// label is cosmetic, not a validated field.
func Company(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	name, _, found := strings.Cut(parts[1], ".")
	if !found || name == "" {
		return ""
	}
	name = strings.ToLower(name)
	return strings.ToUpper(name[:1]) + name[1:]
}

// Entries extracts all addresses from text and pairs each with its company
// label, preserving the order of Emails.
func Entries(text string) []Entry {
	emails := Emails(text)
	entries := make([]Entry, len(emails))
	for i, email := range emails {
		entries[i] = Entry{Email: email, Company: Company(email)}
	}
	return entries
}
