package steamauth

import (
	"regexp"
)

// SteamID is the canonical 64-bit Steam account identifier, kept as a string
// because it overflows signed 32-bit ints and is only ever compared or
// concatenated, never used arithmetically.
type SteamID string

// Steam has changed the shape of its identity URLs over the years
// (http vs https, trailing slashes, /openid/id/ vs ?id=). The one stable
// fact is that the identifier is the last run of digits in the URL, so we
// match exactly that and nothing else.
var identityPattern = regexp.MustCompile(`(\d+)\D*$`)

// ResolveSteamID extracts the SteamID from a verified OpenID identity URL.
// It is lenient about the URL shape but strict about the identifier: a URL
// with no digits is a parse failure, not an anonymous identity.
func ResolveSteamID(identityURL string) (SteamID, error) {
	m := identityPattern.FindStringSubmatch(identityURL)
	if m == nil {
		return "", NewAuthError(ErrCodeIdentityParse, "no account identifier in identity URL: "+identityURL)
	}
	return SteamID(m[1]), nil
}

// Suffix returns the last n characters of the identifier, used to
// de-collide synthesized usernames.
func (id SteamID) Suffix(n int) string {
	s := string(id)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
