package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSymbol_CustomEmote(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Symbol
	}{
		{"simple emote", "<:partyblob:123456789>", "123456789"},
		{"underscore name", "<:blob_wave:42>", "42"},
		{"max digits", "<:ab:12345678901234567890>", "12345678901234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSymbol(tt.raw))
		})
	}
}

func TestParseSymbol_RejectsMalformedMarkup(t *testing.T) {
	// Malformed markup falls through to the literal path unchanged.
	tests := []string{
		"<:x:1>",                 // name too short
		"<:blob:>",               // missing id
		"<:blob:123",             // unterminated
		"prefix <:blob:123>",     // not a full match
		"<:blob:123456789012345678901>", // id too long
	}

	for _, raw := range tests {
		assert.Equal(t, Symbol(raw), ParseSymbol(raw), "input %q", raw)
	}
}

func TestParseSymbol_NormalizesUnicode(t *testing.T) {
	// U+00E9 (é) and U+0065 U+0301 (e + combining acute) must key
	// identically after NFC normalization.
	composed := "é"
	decomposed := "é"

	assert.Equal(t, ParseSymbol(composed), ParseSymbol(decomposed))
}

func TestParseSymbol_PlainEmoji(t *testing.T) {
	assert.Equal(t, Symbol("👍"), ParseSymbol("👍"))
}
