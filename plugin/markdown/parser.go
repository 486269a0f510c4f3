package markdown

import (
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"

	"github.com/hrygo/bookcircle/plugin/tagging"
)

var resolverKey = parser.NewContextKey()

// WithResolver returns a parse option that resolves tags with r.
func WithResolver(r *tagging.Resolver) parser.ParseOption {
	pc := parser.NewContext()
	pc.Set(resolverKey, r)
	return parser.WithContext(pc)
}

type tagParser struct {
	fallback *tagging.Resolver
}

func (p *tagParser) Trigger() []byte {
	return []byte{tagging.TriggerMention, tagging.TriggerHashtag}
}

func (p *tagParser) Parse(_ ast.Node, block text.Reader, pc parser.Context) ast.Node {
	line, segment := block.PeekLine()
	n := tagging.LeadingToken(line)
	if n == 0 {
		return nil
	}
	parsed := tagging.Scan(string(line[:n]))
	if len(parsed) != 1 {
		return nil
	}
	tag := parsed[0]
	tag.Span = tagging.Span{Start: segment.Start, End: segment.Start + n}

	resolver := p.fallback
	if r, ok := pc.Get(resolverKey).(*tagging.Resolver); ok && r != nil {
		resolver = r
	}
	ref, ok := resolver.Resolve(tag)
	if !ok {
		return nil
	}

	block.Advance(n)
	raw := make([]byte, n)
	copy(raw, line[:n])
	return &TagNode{Ref: ref, Raw: raw}
}
