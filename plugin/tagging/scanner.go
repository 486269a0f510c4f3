package tagging

import (
	"regexp"
	"strings"
)

var (
	tagPattern     = regexp.MustCompile(`[@#][A-Za-z][A-Za-z0-9_]*`)
	leadingPattern = regexp.MustCompile(`^[@#][A-Za-z][A-Za-z0-9_]*`)
	// openTriggerPattern matches a trigger still being typed at the end of the text.
	openTriggerPattern = regexp.MustCompile(`([@#])([A-Za-z0-9_]*)$`)
)

// Scan returns the mentions and hashtags found in text, ordered by position.
// Tokens must start with a letter after the trigger. Matches never overlap.
func Scan(text string) []ParsedTag {
	matches := tagPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	tags := make([]ParsedTag, 0, len(matches))
	for _, m := range matches {
		kind := ParsedMention
		if text[m[0]] == TriggerHashtag {
			kind = ParsedHashtag
		}
		name := text[m[0]+1 : m[1]]
		tags = append(tags, ParsedTag{
			Kind:    kind,
			RawName: name,
			Slug:    strings.ToLower(name),
			Span:    Span{Start: m[0], End: m[1]},
		})
	}
	return tags
}

// LeadingToken returns the byte length of the tag token at the start of b, or 0.
func LeadingToken(b []byte) int {
	loc := leadingPattern.FindIndex(b)
	if loc == nil {
		return 0
	}
	return loc[1]
}

// openTrigger reports the trigger being typed immediately before cursor.
// start is the offset of the trigger character.
func openTrigger(text string, cursor int) (trigger byte, query string, start int, ok bool) {
	if cursor < 0 || cursor > len(text) {
		return 0, "", 0, false
	}
	before := text[:cursor]
	m := openTriggerPattern.FindStringSubmatchIndex(before)
	if m == nil {
		return 0, "", 0, false
	}
	return before[m[2]], before[m[4]:m[5]], m[2], true
}

func isWordByte(b byte) bool {
	return b == '_' || ('0' <= b && b <= '9') || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isSpaceByte(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
