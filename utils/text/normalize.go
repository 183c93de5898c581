package text

import (
	"regexp"
	"strings"
)

var markdownReplacer = strings.NewReplacer(
	"**", "", // bold
	"__", "", // underline
	"~~", "", // strikethrough
	"`", "", // inline code
	"*", "", // italic
	"#", "", // headings
)

var (
	removeEmojiRegex    = regexp.MustCompile(`[\p{So}\p{Sk}\x{FE0F}\x{200D}]`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
)

// NormalizeForTTS strips markdown markers and emoji from text and collapses
// whitespace so the synthesizer does not read them aloud.
func NormalizeForTTS(text string) string {
	text = markdownReplacer.Replace(text)
	text = removeEmojiRegex.ReplaceAllString(text, "")
	text = multipleSpacesRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
