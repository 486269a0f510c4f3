package tagging

// Commit replaces the open trigger ending at cursor with the candidate.
//
// The replaced range is the trigger character plus queryLength word bytes before cursor.
// It becomes trigger + slug (name for topics) followed by one space; when the text after
// the cursor already starts with whitespace that whitespace is the separator. The new
// cursor sits after the separator. When no matching open trigger is found at cursor the
// input is returned unchanged with Applied set to false.
func Commit(text string, cursor int, trigger byte, queryLength int, candidate TagCandidate) Edit {
	unchanged := Edit{Text: text, Cursor: cursor}

	if trigger != TriggerMention && trigger != TriggerHashtag {
		return unchanged
	}
	if queryLength < 0 || cursor < 0 || cursor > len(text) {
		return unchanged
	}
	start := cursor - queryLength - 1
	if start < 0 || text[start] != trigger {
		return unchanged
	}
	for i := start + 1; i < cursor; i++ {
		if !isWordByte(text[i]) {
			return unchanged
		}
	}
	insert := candidate.insertText()
	if insert == "" {
		return unchanged
	}

	after := text[cursor:]
	replacement := string(trigger) + insert
	newCursor := start + len(replacement) + 1
	if len(after) == 0 || !isSpaceByte(after[0]) {
		replacement += " "
	}

	return Edit{
		Text:    text[:start] + replacement + after,
		Cursor:  newCursor,
		Applied: true,
	}
}
