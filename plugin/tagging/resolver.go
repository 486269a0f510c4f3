package tagging

import "strings"

// MentionFallback decides how a mention without a persisted record is displayed.
type MentionFallback int

const (
	// MentionAsUser renders unresolved mentions as user tags.
	MentionAsUser MentionFallback = iota
	// MentionAsText leaves unresolved mentions as plain text.
	MentionAsText
)

// RenderOptions configures Render and Resolver.
type RenderOptions struct {
	UnresolvedMention MentionFallback
}

// TagRef is a tag resolved for display.
type TagRef struct {
	Kind          TagKind `json:"type"`
	Name          string  `json:"name"`
	Slug          string  `json:"slug"`
	Span          Span    `json:"span"`
	EntityID      string  `json:"entityId,omitempty"`
	EntitySubtype string  `json:"entityType,omitempty"`
	AvatarURL     string  `json:"avatarUrl,omitempty"`
	Sublabel      string  `json:"sublabel,omitempty"`
	Href          string  `json:"href,omitempty"`
	Icon          string  `json:"icon"`
	// Resolved is true when the tag was matched against a persisted record.
	Resolved bool `json:"resolved"`
}

// Segment is a piece of rendered text: plain text, or a tag when Tag is set.
type Segment struct {
	Text string  `json:"text"`
	Span Span    `json:"span"`
	Tag  *TagRef `json:"tag,omitempty"`
}

// IsTag reports whether the segment is a tag.
func (s Segment) IsTag() bool {
	return s.Tag != nil
}

// Resolver enriches parsed tags with persisted tagging records.
type Resolver struct {
	opts     RenderOptions
	topics   map[string]TaggingRecord
	mentions map[string]TaggingRecord
}

// NewResolver indexes records by slug. Topic records serve hashtags, all others mentions.
// The first record for a slug wins.
func NewResolver(records []TaggingRecord, opts RenderOptions) *Resolver {
	r := &Resolver{
		opts:     opts,
		topics:   make(map[string]TaggingRecord),
		mentions: make(map[string]TaggingRecord),
	}
	for _, rec := range records {
		key := strings.ToLower(rec.Slug)
		if key == "" {
			continue
		}
		index := r.mentions
		if rec.Kind == KindTopic {
			index = r.topics
		}
		if _, ok := index[key]; !ok {
			index[key] = rec
		}
	}
	return r
}

// Resolve returns the display reference for a parsed tag. ok is false when the tag
// should be shown as plain text.
func (r *Resolver) Resolve(p ParsedTag) (TagRef, bool) {
	index := r.mentions
	if p.Kind == ParsedHashtag {
		index = r.topics
	}
	if rec, found := index[p.Slug]; found {
		name := rec.Name
		if name == "" {
			name = p.RawName
		}
		return newTagRef(rec.Kind, name, p.Slug, p.Span, rec), true
	}

	if p.Kind == ParsedHashtag {
		return newTagRef(KindTopic, p.RawName, p.Slug, p.Span, TaggingRecord{}), true
	}
	switch r.opts.UnresolvedMention {
	case MentionAsText:
		return TagRef{}, false
	default:
		return newTagRef(KindUser, p.RawName, p.Slug, p.Span, TaggingRecord{}), true
	}
}

func newTagRef(kind TagKind, name, slug string, span Span, rec TaggingRecord) TagRef {
	return TagRef{
		Kind:          kind,
		Name:          name,
		Slug:          slug,
		Span:          span,
		EntityID:      rec.EntityID,
		EntitySubtype: rec.EntitySubtype,
		AvatarURL:     rec.AvatarURL,
		Sublabel:      rec.Sublabel,
		Href:          kind.Href(slug, rec.EntityID, rec.EntitySubtype),
		Icon:          kind.Icon(),
		Resolved:      rec.Slug != "",
	}
}

// Render splits text into plain and tag segments that tile the text exactly.
func Render(text string, known []TaggingRecord, opts RenderOptions) []Segment {
	return NewResolver(known, opts).Render(text)
}

// Render splits text into plain and tag segments using the resolver's records.
func (r *Resolver) Render(text string) []Segment {
	var segments []Segment
	last := 0
	for _, p := range Scan(text) {
		ref, ok := r.Resolve(p)
		if !ok {
			continue
		}
		if p.Span.Start > last {
			segments = append(segments, textSegment(text, last, p.Span.Start))
		}
		segments = append(segments, Segment{
			Text: text[p.Span.Start:p.Span.End],
			Span: p.Span,
			Tag:  &ref,
		})
		last = p.Span.End
	}
	if last < len(text) {
		segments = append(segments, textSegment(text, last, len(text)))
	}
	return segments
}

func textSegment(text string, start, end int) Segment {
	return Segment{Text: text[start:end], Span: Span{Start: start, End: end}}
}
