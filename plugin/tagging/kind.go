// Package tagging implements @mention and #hashtag handling for composer inputs:
// scanning text for tags, driving autocomplete sessions against a tag search endpoint,
// committing chosen suggestions back into the text, and resolving tags for display.
package tagging

import (
	"github.com/pkg/errors"
)

// TagKind is the type of entity a tag points at.
type TagKind string

const (
	KindUser         TagKind = "user"
	KindEntity       TagKind = "entity"
	KindTopic        TagKind = "topic"
	KindCollaborator TagKind = "collaborator"
	KindLocation     TagKind = "location"
	KindTaxonomy     TagKind = "taxonomy"
)

// AllKinds lists every tag kind in a stable order.
var AllKinds = []TagKind{KindUser, KindEntity, KindTopic, KindCollaborator, KindLocation, KindTaxonomy}

// Trigger characters.
const (
	TriggerMention byte = '@'
	TriggerHashtag byte = '#'
)

// ParseTagKind converts a string into a TagKind.
func ParseTagKind(s string) (TagKind, error) {
	switch k := TagKind(s); k {
	case KindUser, KindEntity, KindTopic, KindCollaborator, KindLocation, KindTaxonomy:
		return k, nil
	default:
		return "", errors.Errorf("unknown tag kind %q", s)
	}
}

// Trigger returns the character that introduces a tag of this kind in text.
func (k TagKind) Trigger() byte {
	switch k {
	case KindTopic:
		return TriggerHashtag
	case KindUser, KindEntity, KindCollaborator, KindLocation, KindTaxonomy:
		return TriggerMention
	default:
		return TriggerMention
	}
}

// Icon returns the icon name used when displaying a tag of this kind.
func (k TagKind) Icon() string {
	switch k {
	case KindUser:
		return "avatar"
	case KindEntity:
		return "at-sign"
	case KindTopic:
		return "hash"
	case KindCollaborator:
		return "users"
	case KindLocation:
		return "map-pin"
	case KindTaxonomy:
		return "folder-tree"
	default:
		return "tag"
	}
}

// Href builds the link target for a tag. An empty string means the tag is not linkable.
// User links prefer the backing entity id over the slug.
func (k TagKind) Href(slug, entityID, entitySubtype string) string {
	switch k {
	case KindUser:
		if entityID != "" {
			return "/profile/" + entityID
		}
		return "/profile/" + slug
	case KindEntity:
		if entityID != "" {
			switch entitySubtype {
			case "author":
				return "/authors/" + entityID
			case "book":
				return "/books/" + entityID
			case "group":
				return "/groups/" + entityID
			case "event":
				return "/events/" + entityID
			}
		}
		return "/entities/" + slug
	case KindTopic:
		return "/tags/" + slug
	case KindLocation:
		return "/locations/" + slug
	case KindCollaborator, KindTaxonomy:
		return ""
	default:
		return ""
	}
}

// KindsForTrigger returns the kinds searched for a trigger, filtered by the enabled flags.
func KindsForTrigger(trigger byte, opts TriggerOptions) []TagKind {
	var kinds []TagKind
	switch trigger {
	case TriggerMention:
		if opts.AllowMentions {
			kinds = append(kinds, KindUser)
		}
		if opts.AllowEntities {
			kinds = append(kinds, KindEntity)
		}
	case TriggerHashtag:
		if opts.AllowHashtags {
			kinds = append(kinds, KindTopic)
		}
	}
	return kinds
}

// TriggerOptions enables tag classes for an input.
type TriggerOptions struct {
	AllowMentions bool
	AllowEntities bool
	AllowHashtags bool
}

// DefaultTriggerOptions enables every tag class.
func DefaultTriggerOptions() TriggerOptions {
	return TriggerOptions{AllowMentions: true, AllowEntities: true, AllowHashtags: true}
}
