package synthesis

import (
	"regexp"
	"strings"
)

// Punctuation that trips up TTS engines.
const (
	emDash       = "—"
	enDash       = "–"
	figureDash   = "‒"
	ellipsisChar = "…"
)

var (
	whitespacePattern = regexp.MustCompile(`\s+`)

	punctuationReplacer = strings.NewReplacer(
		emDash, ", ",
		enDash, ", ",
		figureDash, ", ",
		ellipsisChar, "...",
	)
)

// NormalizeText prepares text for synthesis: dash variants become pauses,
// the ellipsis character becomes three dots, and all runs of whitespace
// collapse to single spaces.
func NormalizeText(text string) string {
	text = punctuationReplacer.Replace(text)
	text = whitespacePattern.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}
