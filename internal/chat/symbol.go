package chat

import (
	"regexp"

	"golang.org/x/text/unicode/norm"
)

// Symbol is the canonical key for a reaction symbol on a message.
//
// A symbol is either a literal unicode emoji (NFC-normalized so that
// visually identical sequences compare equal) or the numeric ID of a
// custom emote, extracted from its "<:name:id>" chat markup.
type Symbol string

// emoteMarkup matches custom emote markup: "<:name:id>" with a 2-32
// character name and an up to 20 digit ID. The whole input must match.
var emoteMarkup = regexp.MustCompile(`^<:[a-zA-Z0-9_]{2,32}:(\d{1,20})>$`)

// ParseSymbol canonicalizes raw reaction input into a Symbol.
//
// Custom emote markup collapses to the emote ID; anything else is
// treated as a literal unicode emoji and NFC-normalized.
func ParseSymbol(raw string) Symbol {
	if m := emoteMarkup.FindStringSubmatch(raw); m != nil {
		return Symbol(m[1])
	}
	return Symbol(norm.NFC.String(raw))
}
