// Package identity canonicalizes raw transport addresses into stable
// per-tenant contact identifiers. Conversation identity derives solely
// from the canonical id, never from display names.
package identity

import "strings"

// UserServer is the JID server for individual WhatsApp accounts.
const UserServer = "s.whatsapp.net"

// Identity is the result of normalizing a raw address. When a raw form
// cannot be reduced to a canonical phone number, Unresolved is set and the
// sanitized form is kept as the id so distinct unresolved parties are
// neither silently merged nor silently split.
type Identity struct {
	ContactID  string
	Unresolved bool
}

// Normalize canonicalizes a raw participant address into a stable contact
// identifier. It is pure and deterministic: any two raw forms the
// transport considers the same remote party reduce to the same ContactID.
//
// Handled raw shapes: bare numbers with formatting ("+55 (11) 99999-9999"),
// user JIDs ("5511999999999@s.whatsapp.net", legacy "@c.us"), device
// qualified JIDs ("5511999999999:3@s.whatsapp.net"), and numbers with a
// doubled country prefix. Group, broadcast, newsletter and hidden-user
// addresses cannot be reduced to a single party and come back Unresolved.
func Normalize(raw string) Identity {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Identity{ContactID: "", Unresolved: true}
	}

	user := s
	if at := strings.IndexByte(s, '@'); at >= 0 {
		user = s[:at]
		switch server := s[at+1:]; server {
		case UserServer, "c.us":
			// Individual account, reducible.
		default:
			// g.us, broadcast, newsletter, lid: not a single logical party.
			return Identity{ContactID: sanitize(s), Unresolved: true}
		}
	}

	// Strip the device part of AD JIDs (user:device) and agent suffixes.
	if colon := strings.IndexByte(user, ':'); colon >= 0 {
		user = user[:colon]
	}
	if dot := strings.IndexByte(user, '.'); dot >= 0 {
		user = user[:dot]
	}

	digits := keepDigits(user)
	if digits != stripFormatting(user) {
		// Letters or other non-phone characters survive formatting removal.
		return Identity{ContactID: sanitize(s), Unresolved: true}
	}

	digits = dedupCountryPrefix(digits)
	if len(digits) < 8 || len(digits) > 15 {
		return Identity{ContactID: sanitize(s), Unresolved: true}
	}
	return Identity{ContactID: digits}
}

// JID converts a resolved ContactID back into a sendable user JID.
func JID(contactID string) string {
	return contactID + "@" + UserServer
}

// dedupCountryPrefix drops one copy of a doubled leading country prefix
// when the number is otherwise too long to be a phone number. Observed on
// imports where the country code was applied twice ("55" + "55119…").
func dedupCountryPrefix(digits string) string {
	if len(digits) <= 15 {
		return digits
	}
	for _, n := range []int{2, 3, 1} {
		if len(digits) < 2*n {
			continue
		}
		if digits[:n] == digits[n:2*n] {
			stripped := digits[n:]
			if len(stripped) >= 8 && len(stripped) <= 15 {
				return stripped
			}
		}
	}
	return digits
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stripFormatting removes characters commonly found in hand-entered phone
// numbers. Anything left besides digits means the form is not a number.
func stripFormatting(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '+', ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
}

func sanitize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
