package steamauth

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	nonWord       = regexp.MustCompile(`\W`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// NFD + strip combining marks + NFC: "Đặng Việt" -> "Dang Viet". Characters
// that still aren't ASCII after decomposition are dropped, not errors.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SynthesizeUsername derives a local username from an untrusted display name
// and the SteamID it came with:
//
//  1. Empty display name -> the SteamID verbatim.
//  2. Best-effort transliteration to lowercase ASCII.
//  3. Whitespace collapses to single underscores, remaining non-word
//     characters are stripped, repeated underscores collapse to one.
//  4. Nothing left after stripping -> the SteamID verbatim.
//  5. Otherwise the last 3 digits of the SteamID are appended, so two
//     identities sharing a display name rarely collide.
//
// The suffix is a collision reducer, not a uniqueness guarantee; the host's
// account-creation layer still has to tolerate duplicates.
func SynthesizeUsername(displayName string, id SteamID) string {
	if displayName == "" {
		return string(id)
	}

	folded, _, err := transform.String(asciiFold, displayName)
	if err != nil {
		folded = displayName
	}
	// Drop anything the fold couldn't bring into ASCII.
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)
	folded = strings.ToLower(strings.TrimSpace(folded))

	name := whitespaceRun.ReplaceAllString(folded, "_")
	name = nonWord.ReplaceAllString(name, "")
	name = underscoreRun.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return string(id)
	}
	return name + "_" + id.Suffix(3)
}
