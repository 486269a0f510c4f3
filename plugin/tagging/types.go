package tagging

// Span is a half-open [Start, End) byte range within a text buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// TagCandidate is a tag suggestion returned by the search endpoint.
type TagCandidate struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Kind          TagKind `json:"type"`
	Sublabel      string  `json:"sublabel,omitempty"`
	AvatarURL     string  `json:"avatarUrl,omitempty"`
	EntityID      string  `json:"entityId,omitempty"`
	EntitySubtype string  `json:"entityType,omitempty"`
}

// insertText is the text placed after the trigger when the candidate is committed.
func (c TagCandidate) insertText() string {
	if c.Kind == KindTopic || c.Slug == "" {
		return c.Name
	}
	return c.Slug
}

// ParsedKind distinguishes mentions from hashtags in scanned text.
type ParsedKind string

const (
	ParsedMention ParsedKind = "mention"
	ParsedHashtag ParsedKind = "hashtag"
)

// ParsedTag is a tag found in text. It has no backing entity until resolved.
type ParsedTag struct {
	Kind    ParsedKind `json:"kind"`
	RawName string     `json:"rawName"`
	Slug    string     `json:"slug"`
	Span    Span       `json:"span"`
}

// Trigger returns the trigger character of the parsed tag.
func (p ParsedTag) Trigger() byte {
	if p.Kind == ParsedHashtag {
		return TriggerHashtag
	}
	return TriggerMention
}

// TaggingRecord is persisted display data for a tag, keyed by slug.
type TaggingRecord struct {
	Slug          string  `json:"slug"`
	Name          string  `json:"name"`
	Kind          TagKind `json:"type"`
	EntityID      string  `json:"entityId,omitempty"`
	EntitySubtype string  `json:"entityType,omitempty"`
	AvatarURL     string  `json:"avatarUrl,omitempty"`
	Sublabel      string  `json:"sublabel,omitempty"`
}

// Edit is the result of committing a tag into a text buffer.
type Edit struct {
	Text    string
	Cursor  int
	Applied bool
}
