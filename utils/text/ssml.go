package text

import (
	"fmt"
	"strings"
)

const (
	DefaultVoice    = "es-ES-ElviraNeural"
	DefaultStyle    = "general"
	DefaultLanguage = "es-ES"
)

var ssmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// EscapeSSML escapes the characters that would break SSML element content.
func EscapeSSML(s string) string {
	return ssmlEscaper.Replace(s)
}

// SSMLOptions selects the voice wrapping the spoken text.
type SSMLOptions struct {
	Language string
	Voice    string
	Style    string // mstts:express-as style; empty omits the element.
}

// BuildSSML wraps text in a speak/voice envelope for Azure Speech.
func BuildSSML(opts SSMLOptions, text string) string {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}
	if opts.Voice == "" {
		opts.Voice = DefaultVoice
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<speak version="1.0" xml:lang="%s" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts">`,
		attrEscaper.Replace(opts.Language))
	fmt.Fprintf(&b, `<voice name="%s">`, attrEscaper.Replace(opts.Voice))
	if opts.Style != "" {
		fmt.Fprintf(&b, `<mstts:express-as style="%s">`, attrEscaper.Replace(opts.Style))
		b.WriteString(EscapeSSML(text))
		b.WriteString(`</mstts:express-as>`)
	} else {
		b.WriteString(EscapeSSML(text))
	}
	b.WriteString(`</voice></speak>`)
	return b.String()
}
