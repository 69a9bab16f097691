package main

import "strings"

// Characters escaped in MarkdownV2 text outside entities. Telegram requires
// all of them but <, which it accepts escaped.
var markdownV2Escapes = map[byte]bool{
	'\\': true, '_': true, '*': true, '[': true, ']': true, '(': true,
	')': true, '~': true, '`': true, '>': true, '#': true, '+': true,
	'-': true, '=': true, '|': true, '{': true, '}': true, '.': true,
	'!': true, '<': true,
}

func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + 8)
	for i := 0; i < len(text); i++ {
		if markdownV2Escapes[text[i]] {
			b.WriteByte('\\')
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

// escapeCode escapes text placed inside a pre or code entity, where only the
// backtick and backslash are special.
func escapeCode(text string) string {
	if !strings.ContainsAny(text, "`\\") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text) + 4)
	for i := 0; i < len(text); i++ {
		if text[i] == '`' || text[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

// codeBlock wraps a status line in a pre block.
func codeBlock(text string) string {
	return "```\n" + escapeCode(text) + "\n```"
}
