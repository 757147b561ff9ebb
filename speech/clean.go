package speech

import (
	"regexp"
	"strings"
)

var (
	// regexLink matches markdown links and images, keeping the label.
	regexLink = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	// regexEmphasis matches bold, italic, strike and inline code markers.
	regexEmphasis = regexp.MustCompile("(\\*\\*|__|\\*|~~|`+)")
	// regexLinePrefix matches headings, quotes and list bullets.
	regexLinePrefix = regexp.MustCompile(`(?m)^\s*(#{1,6}\s+|>\s*|[-*+]\s+|\d+[.)]\s+)`)
	regexSpaces     = regexp.MustCompile(`[ \t]+`)
)

// CleanText removes markdown markup so it is not read aloud.
func CleanText(text string) string {
	text = regexLink.ReplaceAllString(text, "$1")
	text = regexLinePrefix.ReplaceAllString(text, "")
	text = regexEmphasis.ReplaceAllString(text, "")
	text = regexSpaces.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
