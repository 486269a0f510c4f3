// Package markdown renders user content to HTML with goldmark, turning @mentions
// and #hashtags into tag links.
package markdown

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/hrygo/bookcircle/plugin/tagging"
)

// Service renders markdown content.
type Service interface {
	// RenderHTML renders source, resolving tags with resolver. A nil resolver
	// renders every tag from its text alone.
	RenderHTML(source []byte, resolver *tagging.Resolver) (string, error)
	// ExtractTags returns the tags outside code spans and blocks, in document order.
	ExtractTags(source []byte, resolver *tagging.Resolver) []tagging.TagRef
}

type service struct {
	md         goldmark.Markdown
	tagsOn     bool
	renderOpts tagging.RenderOptions
}

// Option configures the markdown service.
type Option func(*service)

// WithTagExtension enables @mention and #hashtag parsing.
func WithTagExtension() Option {
	return func(s *service) {
		s.tagsOn = true
	}
}

// WithRenderOptions sets how tags are resolved when no resolver is given.
func WithRenderOptions(opts tagging.RenderOptions) Option {
	return func(s *service) {
		s.renderOpts = opts
	}
}

// NewService creates a markdown service.
func NewService(opts ...Option) Service {
	s := &service{}
	for _, opt := range opts {
		opt(s)
	}

	extensions := []goldmark.Extender{extension.Table, extension.Strikethrough, extension.TaskList}
	if s.tagsOn {
		extensions = append(extensions, &tagExtension{fallback: tagging.NewResolver(nil, s.renderOpts)})
	}
	s.md = goldmark.New(goldmark.WithExtensions(extensions...))
	return s
}

func (s *service) RenderHTML(source []byte, resolver *tagging.Resolver) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert(source, &buf, s.parseOptions(resolver)...); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return buf.String(), nil
}

func (s *service) ExtractTags(source []byte, resolver *tagging.Resolver) []tagging.TagRef {
	if !s.tagsOn {
		return nil
	}
	doc := s.md.Parser().Parse(text.NewReader(source), s.parseOptions(resolver)...)

	var refs []tagging.TagRef
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if tag, ok := n.(*TagNode); ok && entering {
			refs = append(refs, tag.Ref)
		}
		return ast.WalkContinue, nil
	})
	return refs
}

func (s *service) parseOptions(resolver *tagging.Resolver) []parser.ParseOption {
	if resolver == nil {
		return nil
	}
	return []parser.ParseOption{WithResolver(resolver)}
}

type tagExtension struct {
	fallback *tagging.Resolver
}

// Extend implements goldmark.Extender.
func (e *tagExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(&tagParser{fallback: e.fallback}, 500),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(&tagRenderer{}, 500),
	))
}
